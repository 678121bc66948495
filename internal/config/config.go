package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"x402index/internal/logging"
)

const (
	// MaxIngestPages is the hard upper bound on pages fetched per source.
	MaxIngestPages = 30
)

// Config materialises application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Logging     logging.Config    `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Sources     SourcesConfig     `mapstructure:"sources"`
	Ingestion   IngestionConfig   `mapstructure:"ingestion"`
	HealthCheck HealthCheckConfig `mapstructure:"healthcheck"`
	Alerting    AlertingConfig    `mapstructure:"alerting"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Export      ExportConfig      `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// SourcesConfig lists the upstream registries.
type SourcesConfig struct {
	Bazaar   SourceConfig `mapstructure:"bazaar"`
	X402APIs SourceConfig `mapstructure:"x402apis"`
}

// SourceConfig configures one upstream registry adapter.
type SourceConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BaseURL        string        `mapstructure:"base_url"`
	PageSize       int           `mapstructure:"page_size"`
	PageInterval   time.Duration `mapstructure:"page_interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	Retry          RetryConfig   `mapstructure:"retry"`
}

// RetryConfig bounds the rate-limit backoff of an adapter.
type RetryConfig struct {
	Attempts  int           `mapstructure:"attempts"`
	BaseDelay time.Duration `mapstructure:"base_delay"`
	MaxDelay  time.Duration `mapstructure:"max_delay"`
}

// IngestionConfig governs the ingestion job.
type IngestionConfig struct {
	MaxPages        int           `mapstructure:"max_pages"`
	Interval        time.Duration `mapstructure:"interval"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	SnapshotPrices  bool          `mapstructure:"snapshot_prices"`
}

// HealthCheckConfig governs the probe job.
type HealthCheckConfig struct {
	BatchSize            int           `mapstructure:"batch_size"`
	Timeout              time.Duration `mapstructure:"timeout"`
	Concurrency          int           `mapstructure:"concurrency"`
	InactiveThreshold    int           `mapstructure:"inactive_threshold"`
	UserAgent            string        `mapstructure:"user_agent"`
	BlockPrivateNetworks bool          `mapstructure:"block_private_networks"`
	Interval             time.Duration `mapstructure:"interval"`
	AdvisoryLockKey      int64         `mapstructure:"advisory_lock_key"`
	MetricsWindow        time.Duration `mapstructure:"metrics_window"`
	PingRetention        time.Duration `mapstructure:"ping_retention"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Channels []string       `mapstructure:"channels"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig holds Telegram bot credentials.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// TelemetryConfig toggles the Prometheus listener.
type TelemetryConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
	DefaultDays   int `mapstructure:"default_days"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("X402INDEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "x402index")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)

	for _, src := range []struct {
		key, url string
		pageSize int
		enabled  bool
	}{
		{"bazaar", "https://api.cdp.coinbase.com/platform/v2/x402/discovery/resources", 100, true},
		// x402apis lists no providers yet; opt in with X402INDEX_SOURCES_X402APIS_ENABLED=true.
		{"x402apis", "https://x402apis.io/api/providers", 100, false},
	} {
		prefix := "sources." + src.key + "."
		v.SetDefault(prefix+"enabled", src.enabled)
		v.SetDefault(prefix+"base_url", src.url)
		v.SetDefault(prefix+"page_size", src.pageSize)
		v.SetDefault(prefix+"page_interval", "500ms")
		v.SetDefault(prefix+"request_timeout", "30s")
		v.SetDefault(prefix+"user_agent", "x402index/1.0")
		v.SetDefault(prefix+"retry.attempts", 3)
		v.SetDefault(prefix+"retry.base_delay", "2s")
		v.SetDefault(prefix+"retry.max_delay", "30s")
	}

	v.SetDefault("ingestion.max_pages", 20)
	v.SetDefault("ingestion.interval", "6h")
	v.SetDefault("ingestion.advisory_lock_key", int64(0x78343032))
	v.SetDefault("ingestion.snapshot_prices", true)

	v.SetDefault("healthcheck.batch_size", 50)
	v.SetDefault("healthcheck.timeout", "5s")
	v.SetDefault("healthcheck.concurrency", 10)
	v.SetDefault("healthcheck.inactive_threshold", 10)
	v.SetDefault("healthcheck.user_agent", "x402index-healthcheck/1.0")
	v.SetDefault("healthcheck.block_private_networks", false)
	v.SetDefault("healthcheck.interval", "5m")
	v.SetDefault("healthcheck.advisory_lock_key", int64(0x78343033))
	v.SetDefault("healthcheck.metrics_window", "720h")
	v.SetDefault("healthcheck.ping_retention", "2160h")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.listen_addr", ":9402")

	v.SetDefault("export.max_data_points", 100000)
	v.SetDefault("export.default_days", 30)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Ingestion.Interval <= 0 {
		return fmt.Errorf("ingestion.interval must be greater than zero")
	}
	if c.HealthCheck.Interval <= 0 {
		return fmt.Errorf("healthcheck.interval must be greater than zero")
	}
	if c.HealthCheck.BatchSize <= 0 {
		return fmt.Errorf("healthcheck.batch_size must be greater than zero")
	}
	if c.HealthCheck.Timeout <= 0 {
		return fmt.Errorf("healthcheck.timeout must be greater than zero")
	}
	if c.HealthCheck.Concurrency <= 0 {
		return fmt.Errorf("healthcheck.concurrency must be greater than zero")
	}
	if c.HealthCheck.InactiveThreshold <= 0 {
		return fmt.Errorf("healthcheck.inactive_threshold must be greater than zero")
	}
	if c.HealthCheck.MetricsWindow < 30*24*time.Hour {
		return fmt.Errorf("healthcheck.metrics_window must cover at least 30 days")
	}
	if c.HealthCheck.PingRetention > 0 && c.HealthCheck.PingRetention < c.HealthCheck.MetricsWindow {
		return fmt.Errorf("healthcheck.ping_retention must not be shorter than healthcheck.metrics_window")
	}
	if c.Ingestion.AdvisoryLockKey != 0 && c.Ingestion.AdvisoryLockKey == c.HealthCheck.AdvisoryLockKey {
		return fmt.Errorf("ingestion and healthcheck advisory lock keys must differ")
	}
	for name, src := range map[string]SourceConfig{"bazaar": c.Sources.Bazaar, "x402apis": c.Sources.X402APIs} {
		if !src.Enabled {
			continue
		}
		if src.BaseURL == "" {
			return fmt.Errorf("sources.%s.base_url is required", name)
		}
		if src.PageSize <= 0 {
			return fmt.Errorf("sources.%s.page_size must be greater than zero", name)
		}
		if src.Retry.Attempts < 0 {
			return fmt.Errorf("sources.%s.retry.attempts cannot be negative", name)
		}
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

// ResolveMaxPages clamps a requested page count to 1..MaxIngestPages,
// falling back to the configured default when override is not positive.
func (c *Config) ResolveMaxPages(override int) int {
	pages := c.Ingestion.MaxPages
	if override > 0 {
		pages = override
	}
	return ClampPages(pages)
}

// ClampPages bounds a page count to 1..MaxIngestPages.
func ClampPages(pages int) int {
	switch {
	case pages < 1:
		return 1
	case pages > MaxIngestPages:
		return MaxIngestPages
	default:
		return pages
	}
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
