package shared

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"restaurant_catalog/internal/matcher"
)

type ProviderConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	RPS     int    `yaml:"rps"`
	// Quota caps requests per QuotaWindow; 0 disables it.
	Quota int64 `yaml:"quota"`
}

type Config struct {
	AppEnv      string `yaml:"app_env"`
	LogLevel    string `yaml:"log_level"`
	HTTPAddr    string `yaml:"http_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	Store     string `yaml:"store"` // mysql | memory
	MySQLDSN  string `yaml:"mysql_dsn"`
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`
	RedisPass string `yaml:"redis_password"`

	Yelp            ProviderConfig `yaml:"yelp"`
	Google          ProviderConfig `yaml:"google"`
	ProviderTimeout time.Duration  `yaml:"provider_timeout"`
	QuotaWindow     time.Duration  `yaml:"quota_window"`

	Matcher matcher.Config `yaml:"matcher"`

	IndexPageSize   int `yaml:"index_page_size"`
	IndexMaxPages   int `yaml:"index_max_pages"`
	IndexProbeLimit int `yaml:"index_probe_limit"`

	JobWorkers       int           `yaml:"job_workers"`
	JobTimeout       time.Duration `yaml:"job_timeout"`
	JobTTL           time.Duration `yaml:"job_ttl"`
	JobSweepInterval time.Duration `yaml:"job_sweep_interval"`

	CacheTTL time.Duration `yaml:"cache_ttl"`
}

func Defaults() Config {
	return Config{
		AppEnv:      "prod",
		LogLevel:    "info",
		HTTPAddr:    ":8080",
		MetricsAddr: ":9100",
		Store:       "mysql",
		MySQLDSN:    "root:root@tcp(localhost:3306)/catalog?parseTime=true&charset=utf8mb4,utf8&loc=UTC",
		RedisAddr:   "localhost:6379",
		Yelp: ProviderConfig{
			BaseURL: "https://api.yelp.com/v3",
			RPS:     5,
			Quota:   5000,
		},
		Google: ProviderConfig{
			BaseURL: "https://maps.googleapis.com/maps/api/place",
			RPS:     10,
		},
		ProviderTimeout:  20 * time.Second,
		QuotaWindow:      24 * time.Hour,
		Matcher:          matcher.DefaultConfig(),
		IndexPageSize:    50,
		IndexMaxPages:    1,
		IndexProbeLimit:  5,
		JobWorkers:       3,
		JobTimeout:       10 * time.Minute,
		JobTTL:           24 * time.Hour,
		JobSweepInterval: 10 * time.Minute,
		CacheTTL:         900 * time.Second,
	}
}

// Load builds the config from defaults, then the YAML file named by
// CATALOG_CONFIG if set, then environment variables. A broken file is
// logged and skipped.
func Load() Config {
	c, err := LoadFrom(os.Getenv("CATALOG_CONFIG"), os.Getenv)
	if err != nil {
		log.Error().Err(err).Msg("config file ignored")
	}
	if c.Yelp.APIKey == "" && c.Google.APIKey == "" {
		log.Warn().Msg("neither YELP_API_KEY nor GOOGLE_PLACES_KEY is set; indexing is disabled")
	}
	return c
}

// LoadFrom is Load with an explicit file path and environment lookup. On a
// file error the returned Config still carries defaults and env values.
func LoadFrom(path string, getenv func(string) string) (Config, error) {
	c := Defaults()
	var fileErr error
	if path != "" {
		fileErr = overlayFile(&c, path)
	}
	overlayEnv(&c, getenv)
	return c, fileErr
}

func overlayFile(c *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	next := *c
	if err := yaml.Unmarshal(b, &next); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	*c = next
	return nil
}

func overlayEnv(c *Config, getenv func(string) string) {
	str := func(k string, dst *string) {
		if v := getenv(k); v != "" {
			*dst = v
		}
	}
	atoi := func(k string, dst *int) {
		if v := getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	atoi64 := func(k string, dst *int64) {
		if v := getenv(k); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				*dst = n
			}
		}
	}
	dur := func(k string, dst *time.Duration) {
		if v := getenv(k); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	seconds := func(k string, dst *time.Duration) {
		if v := getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = time.Duration(n) * time.Second
			}
		}
	}

	str("APP_ENV", &c.AppEnv)
	str("LOG_LEVEL", &c.LogLevel)
	str("HTTP_ADDR", &c.HTTPAddr)
	str("METRICS_ADDR", &c.MetricsAddr)
	str("CATALOG_STORE", &c.Store)
	str("MYSQL_DSN", &c.MySQLDSN)
	str("REDIS_ADDR", &c.RedisAddr)
	str("REDIS_PASSWORD", &c.RedisPass)
	atoi("REDIS_DB", &c.RedisDB)

	str("YELP_API_KEY", &c.Yelp.APIKey)
	str("YELP_BASE_URL", &c.Yelp.BaseURL)
	atoi("YELP_RPS", &c.Yelp.RPS)
	atoi64("YELP_QUOTA", &c.Yelp.Quota)
	str("GOOGLE_PLACES_KEY", &c.Google.APIKey)
	str("GOOGLE_PLACES_BASE_URL", &c.Google.BaseURL)
	atoi("GOOGLE_RPS", &c.Google.RPS)
	atoi64("GOOGLE_QUOTA", &c.Google.Quota)
	dur("PROVIDER_TIMEOUT", &c.ProviderTimeout)
	dur("QUOTA_WINDOW", &c.QuotaWindow)

	atoi("MATCH_THRESHOLD", &c.Matcher.Threshold)

	atoi("INDEX_PAGE_SIZE", &c.IndexPageSize)
	atoi("INDEX_MAX_PAGES", &c.IndexMaxPages)
	atoi("INDEX_PROBE_LIMIT", &c.IndexProbeLimit)

	atoi("JOB_WORKERS", &c.JobWorkers)
	dur("JOB_TIMEOUT", &c.JobTimeout)
	dur("JOB_TTL", &c.JobTTL)
	dur("JOB_SWEEP_INTERVAL", &c.JobSweepInterval)

	seconds("CACHE_TTL_SECONDS", &c.CacheTTL)
}
