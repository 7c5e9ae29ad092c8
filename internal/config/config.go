// Package config loads and validates enricher configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Output backends.
const (
	BackendXLSX     = "xlsx"
	BackendPostgres = "postgres"
)

// Config captures all enricher configuration knobs loaded via Viper.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Input   InputConfig   `mapstructure:"input"`
	Output  OutputConfig  `mapstructure:"output"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Postal  PostalConfig  `mapstructure:"postal"`
	Proxy   ProxyConfig   `mapstructure:"proxy"`
	Search  SearchConfig  `mapstructure:"search"`
	DB      DBConfig      `mapstructure:"db"`
	Storage StorageConfig `mapstructure:"storage"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// InputConfig locates the input workbook.
type InputConfig struct {
	Path string `mapstructure:"path"`
}

// OutputConfig selects where rows are persisted and where the report is rendered.
type OutputConfig struct {
	Backend    string `mapstructure:"backend"`
	Path       string `mapstructure:"path"`
	ReportPath string `mapstructure:"report_path"`
}

// RetryConfig bounds every retried lookup.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Delay       time.Duration `mapstructure:"delay"`
}

// PostalConfig drives the headless ZIP lookup.
type PostalConfig struct {
	URL         string        `mapstructure:"url"`
	UserAgent   string        `mapstructure:"user_agent"`
	NavTimeout  time.Duration `mapstructure:"nav_timeout"`
	WaitTimeout time.Duration `mapstructure:"wait_timeout"`
}

// ProxyConfig configures the scraping proxy.
type ProxyConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Country  string        `mapstructure:"country"`
	Timeout  time.Duration `mapstructure:"timeout"`
	RPS      float64       `mapstructure:"rps"`
	Burst    int           `mapstructure:"burst"`
}

// SearchConfig configures the people-search site.
type SearchConfig struct {
	BaseURL        string   `mapstructure:"base_url"`
	AllowedDomains []string `mapstructure:"allowed_domains"`
}

// DBConfig controls access to the Postgres output store.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// StorageConfig sets where rendered reports are uploaded.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for per-record notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MetricsConfig controls the end-of-run metrics dump.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are ignored; existing variables win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ENRICHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Every key needs a default so AutomaticEnv can bind it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("input.path", "")
	v.SetDefault("output.backend", BackendXLSX)
	v.SetDefault("output.path", "output/rows.xlsx")
	v.SetDefault("output.report_path", "output/report.xlsx")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.delay", "5s")
	v.SetDefault("postal.url", "https://tools.usps.com/zip-code-lookup.htm?citybyzipcode")
	v.SetDefault("postal.user_agent", "")
	v.SetDefault("postal.nav_timeout", "60s")
	v.SetDefault("postal.wait_timeout", "20s")
	v.SetDefault("proxy.endpoint", "https://proxy.scrapeops.io/v1/")
	v.SetDefault("proxy.api_key", "")
	v.SetDefault("proxy.country", "us")
	v.SetDefault("proxy.timeout", "90s")
	v.SetDefault("proxy.rps", 0.5)
	v.SetDefault("proxy.burst", 1)
	v.SetDefault("search.base_url", "https://www.fastpeoplesearch.com")
	v.SetDefault("search.allowed_domains", []string{
		"@yahoo.com", "@hotmail.com", "@gmail.com", "@aol.com", "@msn.com", "@outlook.com", "@live.com",
	})
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "enriched_rows")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "reports")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("metrics.textfile", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	switch c.Output.Backend {
	case BackendXLSX:
		if strings.TrimSpace(c.Output.Path) == "" {
			return fmt.Errorf("output.path is required for the xlsx backend")
		}
	case BackendPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("output.backend must be %q or %q, got %q", BackendXLSX, BackendPostgres, c.Output.Backend)
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be > 0")
	}
	if c.Retry.Delay < 0 {
		return fmt.Errorf("retry.delay must be >= 0")
	}
	if c.Proxy.RPS < 0 {
		return fmt.Errorf("proxy.rps must be >= 0")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// ValidateEnrich checks the extra values needed to run lookups.
func (c Config) ValidateEnrich() error {
	if strings.TrimSpace(c.Input.Path) == "" {
		return fmt.Errorf("input.path is required")
	}
	if c.Proxy.APIKey == "" {
		return fmt.Errorf("proxy.api_key is required (set ENRICHER_PROXY_API_KEY)")
	}
	return nil
}
