package routing

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupRouter(t *testing.T) {
	ready := false
	bridge := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	h := SetupRouter(Config{Bridge: bridge, Ready: func() bool { return ready }, Logger: zerolog.Nop()})

	get := func(path string) *http.Response {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec.Result()
	}

	assert.Equal(t, http.StatusServiceUnavailable, get("/healthz").StatusCode)
	ready = true
	resp := get("/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(body))

	assert.Equal(t, http.StatusAccepted, get("/ws").StatusCode)
	assert.Equal(t, http.StatusOK, get("/metrics").StatusCode)
	assert.Equal(t, http.StatusNotFound, get("/nope").StatusCode)
}
