package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode                 string        `mapstructure:"mode"`
	DebugPort            int           `mapstructure:"debug_port"`
	UserID               string        `mapstructure:"user_id"`
	AccessToken          string        `mapstructure:"access_token"`
	SignalingURL         string        `mapstructure:"signaling_url"`
	TelemetryURL         string        `mapstructure:"telemetry_url"`
	APIBaseURL           string        `mapstructure:"api_base_url"`
	ConcurrentSessions   bool          `mapstructure:"concurrent_sessions"`
	PersistentConnection bool          `mapstructure:"persistent_connection"`
	DisabledSessionTypes []string      `mapstructure:"disabled_session_types"`
	PendingExpiry        time.Duration `mapstructure:"pending_expiry"`
	EndSessionTimeout    time.Duration `mapstructure:"end_session_timeout"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("debug_port", 8086)
	v.SetDefault("signaling_url", "wss://localhost:8443/signal")
	v.SetDefault("telemetry_url", "wss://localhost:8443/notifications")
	v.SetDefault("api_base_url", "https://localhost:8443")
	v.SetDefault("pending_expiry", "1s")
	v.SetDefault("end_session_timeout", "5s")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
