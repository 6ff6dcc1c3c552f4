package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files, environment
// variables and command-line flags.
type Config struct {
	AppName        string `mapstructure:"app_name"`
	Env            string `mapstructure:"app_env"`
	LogLevel       string `mapstructure:"log_level"`
	LogOutput      string `mapstructure:"log_output"`
	PublishersFile string `mapstructure:"publishers_file"`

	APIKey             string        `mapstructure:"bv_api_key"`
	V1BaseURL          string        `mapstructure:"bv_v1_base_url"`
	V3BaseURL          string        `mapstructure:"bv_v3_base_url"`
	HTTPTimeoutSeconds int64         `mapstructure:"http_timeout_seconds"`
	HTTPTimeout        time.Duration `mapstructure:"-"`

	RetryEnabled        bool          `mapstructure:"retry_enabled"`
	RetryMaxAttempts    int           `mapstructure:"retry_max_attempts"`
	RetryMaxWaitSeconds int64         `mapstructure:"retry_max_wait_seconds"`
	RetryMaxWait        time.Duration `mapstructure:"-"`

	PollIntervalSeconds int64         `mapstructure:"poll_interval_seconds"`
	PollTimeoutSeconds  int64         `mapstructure:"poll_timeout_seconds"`
	PollInterval        time.Duration `mapstructure:"-"`
	PollTimeout         time.Duration `mapstructure:"-"`

	ResumeIntervalSeconds int64         `mapstructure:"resume_interval_seconds"`
	ResumeInterval        time.Duration `mapstructure:"-"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	SQLDSN                 string        `mapstructure:"sql_dsn"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`

	FakeAddr          string `mapstructure:"fake_addr"`
	FakeCompleteAfter int    `mapstructure:"fake_complete_after"`
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"config":         "config_file",
	"api-key":        "bv_api_key",
	"v1-base-url":    "bv_v1_base_url",
	"v3-base-url":    "bv_v3_base_url",
	"log-level":      "log_level",
	"timeout":        "http_timeout_seconds",
	"retry":          "retry_enabled",
	"poll-interval":  "poll_interval_seconds",
	"poll-timeout":   "poll_timeout_seconds",
	"every":          "resume_interval_seconds",
	"storage-type":   "storage_type",
	"bbolt-path":     "bbolt_path",
	"sql-dsn":        "sql_dsn",
	"publishers":     "publishers_file",
	"addr":           "fake_addr",
	"complete-after": "fake_complete_after",
}

// RegisterFlags defines the global flags Load understands. Values left unset
// on the command line fall through to the environment and defaults.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "optional YAML/JSON config file")
	fs.String("api-key", "", "BriteVerify API key (env BV_API_KEY)")
	fs.String("v1-base-url", "", "override the v1 API base url")
	fs.String("v3-base-url", "", "override the v3 API base url")
	fs.String("log-level", "", "debug, info, warn or error")
	fs.Int64("timeout", 0, "per-request timeout in seconds")
	fs.Bool("retry", false, "retry throttled (429) requests")
	fs.Int64("poll-interval", 0, "seconds between bulk status polls")
	fs.Int64("poll-timeout", 0, "seconds to wait for a bulk list (0 waits until interrupted)")
	fs.Int64("every", 0, "seconds between ledger passes of the watch command")
	fs.String("storage-type", "", "job ledger backend: bbolt, sqlite, postgres or none")
	fs.String("bbolt-path", "", "bbolt ledger file")
	fs.String("sql-dsn", "", "sqlite path or postgres dsn for the job ledger")
	fs.String("publishers", "", "publishers YAML/JSON file")
}

// RegisterFakeFlags defines the flags of the fake API server.
func RegisterFakeFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "optional YAML/JSON config file")
	fs.String("api-key", "", "API key the fake server accepts")
	fs.String("log-level", "", "debug, info, warn or error")
	fs.String("addr", "", "listen address")
	fs.Int("complete-after", 0, "status polls before a started list completes")
}

// Load reads configuration from .env files, environment variables, an
// optional config file and any flags in fs that were explicitly set.
func Load(fs *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "briteverify-go")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_output", "stderr")
	v.SetDefault("publishers_file", "")
	v.SetDefault("bv_api_key", "")
	v.SetDefault("bv_v1_base_url", "https://bpi.briteverify.com/api/v1")
	v.SetDefault("bv_v3_base_url", "https://bulk-api.briteverify.com/api/v3")
	v.SetDefault("http_timeout_seconds", 30)
	v.SetDefault("retry_enabled", false)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_max_wait_seconds", 120)
	v.SetDefault("poll_interval_seconds", 5)
	v.SetDefault("poll_timeout_seconds", int64((30*time.Minute)/time.Second))
	v.SetDefault("resume_interval_seconds", 60)
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/jobs.db")
	v.SetDefault("sql_dsn", "")
	v.SetDefault("storage_ttl_seconds", int64((7*24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))
	v.SetDefault("fake_addr", ":8089")
	v.SetDefault("fake_complete_after", 2)

	v.AutomaticEnv()

	if fs != nil {
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed || bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(key, f)
		})
		if bindErr != nil {
			return nil, fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	if file := strings.TrimSpace(v.GetString("config_file")); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) finalize() error {
	if cfg.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid http_timeout_seconds (must be positive seconds)")
	}
	if cfg.PollIntervalSeconds <= 0 {
		return fmt.Errorf("invalid poll_interval_seconds (must be positive seconds)")
	}
	if cfg.PollTimeoutSeconds < 0 {
		return fmt.Errorf("invalid poll_timeout_seconds (must be zero or positive seconds)")
	}
	if cfg.RetryEnabled && cfg.RetryMaxAttempts <= 0 {
		return fmt.Errorf("invalid retry_max_attempts (must be positive when retry_enabled)")
	}
	if cfg.ResumeIntervalSeconds <= 0 {
		return fmt.Errorf("invalid resume_interval_seconds (must be positive seconds)")
	}
	if cfg.StorageTTLSeconds <= 0 {
		return fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if cfg.StorageCleanupSeconds <= 0 {
		return fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	if cfg.FakeCompleteAfter < 0 {
		return fmt.Errorf("invalid fake_complete_after (must not be negative)")
	}

	cfg.StorageType = strings.ToLower(strings.TrimSpace(cfg.StorageType))
	cfg.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSeconds) * time.Second
	cfg.RetryMaxWait = time.Duration(cfg.RetryMaxWaitSeconds) * time.Second
	cfg.PollInterval = time.Duration(cfg.PollIntervalSeconds) * time.Second
	cfg.PollTimeout = time.Duration(cfg.PollTimeoutSeconds) * time.Second
	cfg.ResumeInterval = time.Duration(cfg.ResumeIntervalSeconds) * time.Second
	cfg.StorageTTL = time.Duration(cfg.StorageTTLSeconds) * time.Second
	cfg.StorageCleanupInterval = time.Duration(cfg.StorageCleanupSeconds) * time.Second
	return nil
}
