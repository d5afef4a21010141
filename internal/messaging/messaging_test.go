package messaging

import (
	"encoding/json"
	"testing"

	"countryfilter/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestValidate(t *testing.T) {
	assert.NoError(t, Request{Action: ActionGetStats}.Validate())
	assert.ErrorIs(t, Request{Action: "explode"}.Validate(), ErrUnknownAction)
	assert.ErrorIs(t, Request{Action: ActionUpdateBadge}.Validate(), ErrUnknownAction)
	assert.ErrorIs(t, Request{Action: ActionUpdateSettings}.Validate(), ErrMissingSettings)

	s := models.DefaultSettings()
	assert.NoError(t, Request{Action: ActionUpdateSettings, Settings: &s}.Validate())
}

func TestDecode(t *testing.T) {
	t.Run("request", func(t *testing.T) {
		env, err := Decode([]byte(`{"id":7,"action":"updateSettings","settings":{"enabled":false,"filterMode":"removed"}}`))
		require.NoError(t, err)
		require.NotNil(t, env.Request)
		assert.Equal(t, uint64(7), env.Request.ID)
		assert.Equal(t, ActionUpdateSettings, env.Request.Action)
		require.NotNil(t, env.Request.Settings)
		assert.Equal(t, models.FilterModeRemoved, env.Request.Settings.FilterMode)
	})

	t.Run("response", func(t *testing.T) {
		env, err := Decode([]byte(`{"id":7,"status":"settings updated"}`))
		require.NoError(t, err)
		require.NotNil(t, env.Response)
		assert.Equal(t, StatusSettingsUpdated, env.Response.Status)
	})

	t.Run("outbound", func(t *testing.T) {
		env, err := Decode([]byte(`{"action":"updateBadge","count":3}`))
		require.NoError(t, err)
		require.NotNil(t, env.Outbound)
		assert.Equal(t, uint64(3), env.Outbound.Count)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := Decode([]byte(`{`))
		assert.Error(t, err)
	})
}

func TestResponseShape(t *testing.T) {
	st := models.Stats{TotalScanned: 3, Hidden: 1}
	data, err := json.Marshal(Response{
		Stats:             &st,
		DetectedCountries: models.DetectedCountries{"India": 2},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"stats":{"totalTweetsScanned":3,"tweetsHidden":1,"accountsWithLocation":0},"detectedCountries":{"India":2}}`, string(data))

	data, err = json.Marshal(Response{Status: StatusScanning})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"scanning"}`, string(data))
}
