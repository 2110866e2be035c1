package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DEVICE_API_KEY", "device-key")
	t.Setenv("DEVICE_API_URL", "http://relay.local:8080/")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://relay.local:8080", cfg.APIURL)
	assert.Equal(t, "devicesim-1", cfg.DeviceID)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.InDelta(t, 0.1, cfg.FailureRate, 1e-9)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("DEVICE_API_KEY", "")
	_, err := LoadConfig()
	assert.ErrorContains(t, err, "DEVICE_API_KEY")

	t.Setenv("RELAY_DEVICE_API_KEY", "device-key")
	t.Setenv("DEVICE_FAILURE_RATE", "1.5")
	_, err = LoadConfig()
	assert.ErrorContains(t, err, "DEVICE_FAILURE_RATE")

	t.Setenv("DEVICE_FAILURE_RATE", "0")
	t.Setenv("DEVICE_POLL_INTERVAL", "soon")
	_, err = LoadConfig()
	assert.ErrorContains(t, err, "DEVICE_POLL_INTERVAL")
}
