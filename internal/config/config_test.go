package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DEVICE_API_KEY", "device-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 20*time.Second, cfg.CooldownSpacing)
	assert.Equal(t, 5*time.Minute, cfg.DuplicateRecipientWindow)
	assert.Equal(t, 5*time.Minute, cfg.StaleProcessingTimeout)
	assert.Equal(t, 60*time.Second, cfg.BalanceJobTTL)
	assert.Equal(t, int64(1000000), cfg.MaxTransferAmount)
	assert.Equal(t, "relay:notifications", cfg.NotificationChannel)
	assert.Equal(t, 20, cfg.DeviceRateLimitRPS)
}

func TestLoadPrefixedAlias(t *testing.T) {
	t.Setenv("RELAY_JWT_SECRET", testSecret)
	t.Setenv("RELAY_DEVICE_API_KEY", "device-key")
	t.Setenv("RELAY_REAPER_INTERVAL", "30s")
	t.Setenv("RELAY_PUBLIC_RATE_LIMIT_RPS", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.ReaperInterval)
	assert.Equal(t, 1, cfg.PublicRateLimitRPS)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "missing secret", env: map[string]string{"DEVICE_API_KEY": "k"}, want: "JWT_SECRET is required"},
		{name: "short secret", env: map[string]string{"JWT_SECRET": "short", "DEVICE_API_KEY": "k"}, want: "at least 32"},
		{name: "missing device key", env: map[string]string{"JWT_SECRET": testSecret}, want: "DEVICE_API_KEY"},
		{name: "bad duration", env: map[string]string{"JWT_SECRET": testSecret, "DEVICE_API_KEY": "k", "BALANCE_JOB_TTL": "soon"}, want: "BALANCE_JOB_TTL"},
		{name: "negative duration", env: map[string]string{"JWT_SECRET": testSecret, "DEVICE_API_KEY": "k", "COOLDOWN_SPACING": "-1s"}, want: "must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
