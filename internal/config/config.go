package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kickslayer1/bigdatahacathon-2025/internal/forecast"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/logging"
)

// EnvPrefix prefixes every environment override, e.g. TRADECAST_DATABASE_DSN.
const EnvPrefix = "TRADECAST"

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Forecast  forecast.Config `mapstructure:"forecast"`
	Source    SourceConfig    `mapstructure:"source"`
	Cache     CacheConfig     `mapstructure:"cache"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
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
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs the refresh cadence. A non-empty Cron takes precedence over Interval.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	Cron            string        `mapstructure:"cron"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// SourceConfig describes where series are read from when they are not in the database.
type SourceConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	Scale          float64       `mapstructure:"scale"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
}

// CacheConfig sizes the forecast cache.
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Size      int           `mapstructure:"size"`
	TTL       time.Duration `mapstructure:"ttl"`
	RedisAddr string        `mapstructure:"redis_addr"`
	RedisDB   int           `mapstructure:"redis_db"`
	Password  string        `mapstructure:"redis_password"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Listen         string        `mapstructure:"listen"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	Burst          int           `mapstructure:"burst"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxPoints      int           `mapstructure:"max_points"`
	MaxHorizon     int           `mapstructure:"max_horizon"`
}

// AlertingConfig defines alert thresholds and routing.
type AlertingConfig struct {
	Enabled         bool           `mapstructure:"enabled"`
	SwingPct        float64        `mapstructure:"swing_threshold_pct"`
	AlertOnDegraded bool           `mapstructure:"alert_on_degraded"`
	Channels        []string       `mapstructure:"channels"`
	Timeout         time.Duration  `mapstructure:"timeout"`
	Telegram        TelegramConfig `mapstructure:"telegram"`
	Slack           SlackConfig    `mapstructure:"slack"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// SlackConfig describes the Slack alert channel.
type SlackConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	Channel string `mapstructure:"channel"`
	APIURL  string `mapstructure:"api_url"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from an optional .env file, the config file, environment, and defaults.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
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

// loadDotEnv exports variables from ./.env without overriding the real environment.
func loadDotEnv() error {
	name := os.Getenv(EnvPrefix + "_ENV_FILE")
	if name == "" {
		name = ".env"
	}
	if err := godotenv.Load(name); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", name, err)
	}
	return nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "tradecast")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("scheduler.interval", "24h")
	v.SetDefault("scheduler.cron", "")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x74636173))
	v.SetDefault("scheduler.startup_delay", "0s")

	fc := forecast.DefaultConfig()
	v.SetDefault("forecast.horizon", fc.Horizon)
	v.SetDefault("forecast.decomposition_weight", fc.DecompositionWeight)
	v.SetDefault("forecast.band_fraction", fc.BandFraction)
	v.SetDefault("forecast.changepoint_prior_scale", fc.ChangepointPriorScale)
	v.SetDefault("forecast.seasonality_prior_scale", fc.SeasonalityPriorScale)
	v.SetDefault("forecast.interval_width", fc.IntervalWidth)
	v.SetDefault("forecast.fourier_order", fc.FourierOrder)
	v.SetDefault("forecast.max_changepoints", fc.MaxChangepoints)
	v.SetDefault("forecast.changepoint_range", fc.ChangepointRange)
	v.SetDefault("forecast.max_iterations", fc.MaxIterations)
	v.SetDefault("forecast.tolerance", fc.Tolerance)
	v.SetDefault("forecast.naive_window", fc.NaiveWindow)
	v.SetDefault("forecast.trade_window", fc.TradeWindow)
	v.SetDefault("forecast.trade_weight", fc.TradeWeight)

	v.SetDefault("source.request_timeout", "10s")
	v.SetDefault("source.user_agent", "tradecast/1.0")
	v.SetDefault("source.scale", 1.0)
	v.SetDefault("source.max_body_bytes", 8<<20)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.size", 512)
	v.SetDefault("cache.ttl", "6h")
	v.SetDefault("cache.key_prefix", "tradecast:forecast:")

	v.SetDefault("http.listen", ":8080")
	v.SetDefault("http.request_timeout", "5s")
	v.SetDefault("http.rate_limit", 20.0)
	v.SetDefault("http.burst", 40)
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "15s")
	v.SetDefault("http.max_points", 400)
	v.SetDefault("http.max_horizon", 40)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.swing_threshold_pct", 15.0)
	v.SetDefault("alerting.alert_on_degraded", true)
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.timeout", "10s")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.slack.enabled", false)

	v.SetDefault("export.max_data_points", 10000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
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
	if c.Scheduler.Cron == "" && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero when scheduler.cron is empty")
	}
	if err := c.Forecast.Validate(); err != nil {
		return err
	}
	if c.Source.Scale <= 0 {
		return fmt.Errorf("source.scale must be greater than zero")
	}
	if c.Cache.Enabled && c.Cache.Size <= 0 {
		return fmt.Errorf("cache.size must be greater than zero")
	}
	if c.HTTP.RateLimit < 0 || c.HTTP.Burst < 0 {
		return fmt.Errorf("http.rate_limit and http.burst cannot be negative")
	}
	if c.HTTP.MaxHorizon < 0 {
		return fmt.Errorf("http.max_horizon cannot be negative")
	}
	if c.HTTP.MaxHorizon > 0 && c.Forecast.Horizon > c.HTTP.MaxHorizon {
		return fmt.Errorf("forecast.horizon (%d) exceeds http.max_horizon (%d)", c.Forecast.Horizon, c.HTTP.MaxHorizon)
	}
	if c.Alerting.SwingPct < 0 {
		return fmt.Errorf("alerting.swing_threshold_pct cannot be negative")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	if c.Alerting.Slack.Enabled {
		if c.Alerting.Slack.Token == "" || c.Alerting.Slack.Channel == "" {
			return fmt.Errorf("alerting.slack.token and alerting.slack.channel are required")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
