package bridge

import (
	"context"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"countryfilter/internal/messaging"
	"countryfilter/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandler struct {
	mu   sync.Mutex
	seen []messaging.Request
}

func (h *fakeHandler) Handle(ctx context.Context, req messaging.Request) (messaging.Response, error) {
	h.mu.Lock()
	h.seen = append(h.seen, req)
	h.mu.Unlock()

	switch req.Action {
	case messaging.ActionGetStats:
		st := models.Stats{TotalScanned: 4, Hidden: 1}
		return messaging.Response{Stats: &st, DetectedCountries: models.DetectedCountries{"India": 1}}, nil
	case messaging.ActionResetStats:
		// stalls until the caller gives up
		<-ctx.Done()
		return messaging.Response{}, messaging.ErrNoReply
	case messaging.ActionScanLocations:
		return messaging.Response{Status: messaging.StatusScanning}, nil
	}
	return messaging.Response{}, messaging.ErrUnknownAction
}

func serve(t *testing.T) (*Server, string) {
	t.Helper()
	srv, err := NewServer(&fakeHandler{}, time.Second)
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		_ = srv.Close()
		ts.Close()
	})
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, endpoint string, opts Options) *Client {
	t.Helper()
	c, err := Dial(context.Background(), endpoint, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRequest(t *testing.T) {
	for _, compress := range []bool{false, true} {
		t.Run(map[bool]string{false: "plain", true: "zstd"}[compress], func(t *testing.T) {
			_, endpoint := serve(t)
			c := dial(t, endpoint, Options{Surface: "popup", Compress: compress})

			resp, err := c.Request(context.Background(), messaging.Request{Action: messaging.ActionGetStats})
			require.NoError(t, err)
			require.NotNil(t, resp.Stats)
			assert.Equal(t, uint64(4), resp.Stats.TotalScanned)
			assert.Equal(t, uint64(1), resp.DetectedCountries["India"])

			resp, err = c.Request(context.Background(), messaging.Request{Action: messaging.ActionScanLocations})
			require.NoError(t, err)
			assert.Equal(t, messaging.StatusScanning, resp.Status)
		})
	}
}

func TestRequest_RemoteError(t *testing.T) {
	_, endpoint := serve(t)
	c := dial(t, endpoint, Options{Surface: "cli"})

	_, err := c.Request(context.Background(), messaging.Request{Action: messaging.ActionGetSettings})
	assert.ErrorIs(t, err, messaging.ErrUnknownAction)
	var re *RemoteError
	assert.ErrorAs(t, err, &re)
}

func TestRequest_NoReply(t *testing.T) {
	_, endpoint := serve(t)
	c := dial(t, endpoint, Options{Surface: "cli", Timeout: 100 * time.Millisecond})

	start := time.Now()
	_, err := c.Request(context.Background(), messaging.Request{Action: messaging.ActionResetStats})
	assert.ErrorIs(t, err, messaging.ErrNoReply)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRequest_NotConnected(t *testing.T) {
	c, err := New("ws://127.0.0.1:1/ws", Options{})
	require.NoError(t, err)
	_, err = c.Request(context.Background(), messaging.Request{Action: messaging.ActionGetStats})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestBroadcast(t *testing.T) {
	srv, endpoint := serve(t)
	plain := dial(t, endpoint, Options{Surface: "badge"})
	packed := dial(t, endpoint, Options{Surface: "badge", Compress: true})
	subs := []<-chan messaging.Outbound{plain.Subscribe(), packed.Subscribe()}

	require.Eventually(t, func() bool { return srv.Connections() == 2 }, time.Second, 10*time.Millisecond)
	srv.Broadcast(messaging.Outbound{Action: messaging.ActionUpdateBadge, Count: 5})

	for _, sub := range subs {
		select {
		case o := <-sub:
			assert.Equal(t, messaging.ActionUpdateBadge, o.Action)
			assert.Equal(t, uint64(5), o.Count)
		case <-time.After(time.Second):
			t.Fatal("no broadcast received")
		}
	}
}

func TestServerClose_FailsPending(t *testing.T) {
	srv, endpoint := serve(t)
	c := dial(t, endpoint, Options{Surface: "cli", Timeout: 5 * time.Second})

	errc := make(chan error, 1)
	go func() {
		_, err := c.Request(context.Background(), messaging.Request{Action: messaging.ActionResetStats})
		errc <- err
	}()

	require.Eventually(t, func() bool { return srv.Connections() == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, srv.Close())

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, messaging.ErrNoReply)
	case <-time.After(3 * time.Second):
		t.Fatal("pending request was not failed")
	}
	require.Eventually(t, func() bool { return !c.Connected() }, time.Second, 10*time.Millisecond)
}

func TestURL(t *testing.T) {
	c, err := New("ws://localhost:18920/ws?token=x", Options{Surface: "popup", Compress: true})
	require.NoError(t, err)

	raw, err := c.URL()
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "popup", u.Query().Get("surface"))
	assert.Equal(t, "true", u.Query().Get("compress"))
	assert.Equal(t, "x", u.Query().Get("token"))
	assert.Empty(t, u.Query().Get("Timeout"))
}

func TestRun(t *testing.T) {
	_, endpoint := serve(t)
	c, err := New(endpoint, Options{Surface: "badge"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, c.Connected, 2*time.Second, 10*time.Millisecond)
	resp, err := c.Request(context.Background(), messaging.Request{Action: messaging.ActionScanLocations})
	require.NoError(t, err)
	assert.Equal(t, messaging.StatusScanning, resp.Status)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestCodec(t *testing.T) {
	c, err := newCodec()
	require.NoError(t, err)
	defer c.close()

	_, packed, err := c.marshal(messaging.Outbound{Action: messaging.ActionUpdateBadge, Count: 2}, true)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(packed), string(zstdMagic)))

	data, err := c.payload(packed)
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"updateBadge","count":2}`, string(data))

	data, err = c.payload([]byte(`{"id":1}`))
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, string(data))

	_, err = c.payload(append(append([]byte{}, zstdMagic...), 0xFF, 0xFF))
	assert.Error(t, err)
}
