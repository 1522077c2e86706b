package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	PostgresURL string `mapstructure:"postgres_url"`
	RedisAddr   string `mapstructure:"redis_addr"`

	HTTPPort string `mapstructure:"http_port"`
	Instance string `mapstructure:"instance"`

	UpstreamBaseURL string `mapstructure:"upstream_base_url"`
	UpstreamAPIKey  string `mapstructure:"upstream_api_key"`
	TopAssetLimit   int    `mapstructure:"top_asset_limit"`

	RefreshInterval  time.Duration `mapstructure:"refresh_interval"`
	CycleDeadline    time.Duration `mapstructure:"cycle_deadline"`
	StalenessWindow  time.Duration `mapstructure:"staleness_window"`
	SummarySchedule  string        `mapstructure:"summary_schedule"`
	RateLimitPerMin  int           `mapstructure:"rate_limit_per_min"`
	DebugLogging     bool          `mapstructure:"debug_logging"`

	ResendAPIKey    string `mapstructure:"resend_api_key"`
	ResendFromEmail string `mapstructure:"resend_from_email"`
	DashboardURL    string `mapstructure:"dashboard_url"`

	AuthBaseURL    string `mapstructure:"auth_base_url"`
	AuthServiceKey string `mapstructure:"auth_service_key"`

	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

const (
	DefaultRefreshInterval = 5 * time.Minute
	DefaultCycleDeadline   = 2 * time.Minute
	DefaultStalenessWindow = 5 * time.Minute
	DefaultTopAssetLimit   = 100
	DefaultRateLimitPerMin = 120
)

// Load reads the YAML config at path, layering PRICEGUARD_* environment
// variables over it. A missing file is fine when env vars cover the
// required keys.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("priceguard")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := map[string]interface{}{
		"http_port":          "8080",
		"instance":           "priceguard-1",
		"redis_addr":         "localhost:6379",
		"refresh_interval":   DefaultRefreshInterval,
		"cycle_deadline":     DefaultCycleDeadline,
		"staleness_window":   DefaultStalenessWindow,
		"top_asset_limit":    DefaultTopAssetLimit,
		"rate_limit_per_min": DefaultRateLimitPerMin,
		"summary_schedule":   "0 9 * * *",
		"resend_from_email":  "noreply@priceguard.app",
		"dashboard_url":      "http://localhost:8080",
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, validate(&cfg)
}

func validate(cfg *Config) error {
	if cfg.PostgresURL == "" {
		return errors.New("missing postgres_url in configuration")
	}
	if cfg.UpstreamBaseURL == "" {
		return errors.New("missing upstream_base_url in configuration")
	}
	if cfg.RefreshInterval <= 0 {
		return errors.New("invalid refresh_interval")
	}
	if cfg.CycleDeadline <= 0 || cfg.CycleDeadline > cfg.RefreshInterval {
		return errors.New("cycle_deadline must be positive and not exceed refresh_interval")
	}
	if cfg.StalenessWindow <= 0 {
		return errors.New("invalid staleness_window")
	}
	if cfg.TopAssetLimit <= 0 {
		return errors.New("invalid top_asset_limit")
	}
	if cfg.RateLimitPerMin <= 0 {
		return errors.New("invalid rate_limit_per_min")
	}
	return nil
}
