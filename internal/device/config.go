package device

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config configures the device simulator.
type Config struct {
	APIURL       string
	APIKey       string
	DeviceID     string
	PollInterval time.Duration
	FailureRate  float64
	LogLevel     string
}

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	bindEnv(v, "device_api_url", "DEVICE_API_URL", "RELAY_DEVICE_API_URL")
	bindEnv(v, "device_api_key", "DEVICE_API_KEY", "RELAY_DEVICE_API_KEY")
	bindEnv(v, "device_id", "DEVICE_ID", "RELAY_DEVICE_ID")
	bindEnv(v, "device_poll_interval", "DEVICE_POLL_INTERVAL", "RELAY_DEVICE_POLL_INTERVAL")
	bindEnv(v, "device_failure_rate", "DEVICE_FAILURE_RATE", "RELAY_DEVICE_FAILURE_RATE")
	bindEnv(v, "log_level", "LOG_LEVEL", "RELAY_LOG_LEVEL")

	v.SetDefault("device_api_url", "http://localhost:8080")
	v.SetDefault("device_id", "devicesim-1")
	v.SetDefault("device_poll_interval", "2s")
	v.SetDefault("device_failure_rate", 0.1)
	v.SetDefault("log_level", "info")

	interval, err := time.ParseDuration(v.GetString("device_poll_interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEVICE_POLL_INTERVAL: %w", err)
	}

	cfg := &Config{
		APIURL:       strings.TrimRight(v.GetString("device_api_url"), "/"),
		APIKey:       v.GetString("device_api_key"),
		DeviceID:     v.GetString("device_id"),
		PollInterval: interval,
		FailureRate:  v.GetFloat64("device_failure_rate"),
		LogLevel:     v.GetString("log_level"),
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("DEVICE_API_KEY is required")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("DEVICE_POLL_INTERVAL must be positive")
	}
	if cfg.FailureRate < 0 || cfg.FailureRate > 1 {
		return nil, fmt.Errorf("DEVICE_FAILURE_RATE must be between 0 and 1")
	}
	return cfg, nil
}

func bindEnv(v *viper.Viper, key string, names ...string) {
	args := append([]string{key}, names...)
	_ = v.BindEnv(args...)
}
