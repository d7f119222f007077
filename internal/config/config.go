package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Data      DataConfig      `yaml:"data" mapstructure:"data"`
	Browser   BrowserConfig   `yaml:"browser" mapstructure:"browser"`
	Scan      ScanConfig      `yaml:"scan" mapstructure:"scan"`
	YouTube   YouTubeConfig   `yaml:"youtube" mapstructure:"youtube"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Classify  ClassifyConfig  `yaml:"classify" mapstructure:"classify"`
	Report    ReportConfig    `yaml:"report" mapstructure:"report"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// StoreConfig configures the run ledger backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// DataConfig locates the stage artifacts and the channel category cache.
type DataConfig struct {
	Dir       string `yaml:"dir" mapstructure:"dir"`
	CacheFile string `yaml:"cache_file" mapstructure:"cache_file"`
}

// BrowserConfig configures the history scrape source.
type BrowserConfig struct {
	HistoryURL       string `yaml:"history_url" mapstructure:"history_url"`
	UserDataDir      string `yaml:"user_data_dir" mapstructure:"user_data_dir"`
	Headless         bool   `yaml:"headless" mapstructure:"headless"`
	SnapshotDir      string `yaml:"snapshot_dir" mapstructure:"snapshot_dir"`
	LoginTimeoutSecs int    `yaml:"login_timeout_secs" mapstructure:"login_timeout_secs"`
	LoadWaitMs       int    `yaml:"load_wait_ms" mapstructure:"load_wait_ms"`
}

// ScanConfig bounds the boundary scan.
type ScanConfig struct {
	MaxIterations int `yaml:"max_iterations" mapstructure:"max_iterations"`
	EmptyRetryMs  int `yaml:"empty_retry_ms" mapstructure:"empty_retry_ms"`
	StallWaitMs   int `yaml:"stall_wait_ms" mapstructure:"stall_wait_ms"`
}

// YouTubeConfig holds YouTube Data API settings.
type YouTubeConfig struct {
	APIKey             string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL            string `yaml:"base_url" mapstructure:"base_url"`
	BatchSize          int    `yaml:"batch_size" mapstructure:"batch_size"`
	MinBatchIntervalMs int    `yaml:"min_batch_interval_ms" mapstructure:"min_batch_interval_ms"`
	RetryAttempts      int    `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMs     int    `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	RetryMaxBackoffMs  int    `yaml:"retry_max_backoff_ms" mapstructure:"retry_max_backoff_ms"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ClassifyConfig configures the channel classifier and its retry policy.
type ClassifyConfig struct {
	Labels            []string `yaml:"labels" mapstructure:"labels"`
	FallbackLabel     string   `yaml:"fallback_label" mapstructure:"fallback_label"`
	MalformedAttempts int      `yaml:"malformed_attempts" mapstructure:"malformed_attempts"`
	MalformedDelayMs  int      `yaml:"malformed_delay_ms" mapstructure:"malformed_delay_ms"`
	RateLimitBaseMs   int      `yaml:"rate_limit_base_ms" mapstructure:"rate_limit_base_ms"`
	RateLimitMaxMs    int      `yaml:"rate_limit_max_ms" mapstructure:"rate_limit_max_ms"`
	QuotaSleepSecs    int      `yaml:"quota_sleep_secs" mapstructure:"quota_sleep_secs"`
	ErrorDelayMs      int      `yaml:"error_delay_ms" mapstructure:"error_delay_ms"`
	SampleTitles      int      `yaml:"sample_titles" mapstructure:"sample_titles"`
	MinCallIntervalMs int      `yaml:"min_call_interval_ms" mapstructure:"min_call_interval_ms"`
}

// ReportConfig configures the summary tables.
type ReportConfig struct {
	TopN     int    `yaml:"top_n" mapstructure:"top_n"`
	Workbook string `yaml:"workbook" mapstructure:"workbook"`
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

// legacyEnv maps config keys to additional env names read from .env files.
var legacyEnv = map[string][]string{
	"youtube.api_key": {"YOU_TUBE_API_KEY", "YOUTUBE_API_KEY"},
	"anthropic.key":   {"ANTHROPIC_API_KEY"},
}

// Load reads configuration from .env, config.yaml, and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("WATCHLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		envs := append([]string{"WATCHLOG_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "data/watchlog.db")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("data.dir", "data")
	v.SetDefault("data.cache_file", "channel_categories.json")
	v.SetDefault("browser.history_url", "https://www.youtube.com/feed/history")
	v.SetDefault("browser.user_data_dir", "chrome_profile")
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.snapshot_dir", "")
	v.SetDefault("browser.login_timeout_secs", 240)
	v.SetDefault("browser.load_wait_ms", 3000)
	v.SetDefault("scan.max_iterations", 100)
	v.SetDefault("scan.empty_retry_ms", 2000)
	v.SetDefault("scan.stall_wait_ms", 2000)
	v.SetDefault("youtube.api_key", "")
	v.SetDefault("youtube.base_url", "")
	v.SetDefault("youtube.batch_size", 50)
	v.SetDefault("youtube.min_batch_interval_ms", 500)
	v.SetDefault("youtube.retry_attempts", 3)
	v.SetDefault("youtube.retry_backoff_ms", 1000)
	v.SetDefault("youtube.retry_max_backoff_ms", 30000)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5")
	v.SetDefault("anthropic.max_tokens", 16)
	v.SetDefault("classify.labels", []string{
		"AI and coding", "F1", "Football", "Basketball", "News",
		"Humor", "Popular Science", "History", "Superheroes", "Other",
	})
	v.SetDefault("classify.fallback_label", "Other")
	v.SetDefault("classify.malformed_attempts", 5)
	v.SetDefault("classify.malformed_delay_ms", 1500)
	v.SetDefault("classify.rate_limit_base_ms", 60000)
	v.SetDefault("classify.rate_limit_max_ms", 300000)
	v.SetDefault("classify.quota_sleep_secs", 600)
	v.SetDefault("classify.error_delay_ms", 10000)
	v.SetDefault("classify.sample_titles", 10)
	v.SetDefault("classify.min_call_interval_ms", 4500)
	v.SetDefault("report.top_n", 10)
	v.SetDefault("report.workbook", "")
	v.SetDefault("metrics.textfile", "")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings needed by the given stage or command are
// present. An empty mode checks only the shared settings.
func (c *Config) Validate(mode string) error {
	var missing []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store.driver %q (want sqlite or postgres)", c.Store.Driver)
	}
	if c.Store.DatabaseURL == "" {
		missing = append(missing, "store.database_url")
	}
	if c.Data.Dir == "" {
		missing = append(missing, "data.dir")
	}

	switch mode {
	case "", "extract", "dedup", "report", "runs", "cache":
	case "scrape":
		if c.Browser.SnapshotDir == "" && c.Browser.UserDataDir == "" {
			missing = append(missing, "browser.user_data_dir or browser.snapshot_dir")
		}
		if c.Scan.MaxIterations <= 0 {
			return eris.New("config: scan.max_iterations must be positive")
		}
	case "enrich":
		if c.YouTube.APIKey == "" {
			missing = append(missing, "youtube.api_key")
		}
		if c.YouTube.BatchSize < 1 || c.YouTube.BatchSize > 50 {
			return eris.Errorf("config: youtube.batch_size must be between 1 and 50, got %d", c.YouTube.BatchSize)
		}
	case "classify":
		if c.Anthropic.Key == "" {
			missing = append(missing, "anthropic.key")
		}
		if len(c.Classify.Labels) == 0 {
			missing = append(missing, "classify.labels")
		}
	case "export":
		if c.Store.Driver != "postgres" {
			return eris.New("config: export requires store.driver=postgres")
		}
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: missing required settings for %s: %s", modeName(mode), strings.Join(missing, ", "))
	}
	return nil
}

func modeName(mode string) string {
	if mode == "" {
		return "watchlog"
	}
	return mode
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
