package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	defaultAPITimeout      = 10 * time.Second
	defaultCacheTTL        = 30 * time.Second
	defaultFetchLimit      = 30
	defaultPageSize        = 10
	defaultFreshness       = 30 * time.Second
	defaultBulkConcurrency = 8
	defaultLogLevel        = "info"
	defaultServiceName     = "employee-directory"
)

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	API       APIConfig       `yaml:"api"`
	Cache     CacheConfig     `yaml:"cache"`
	Store     StoreConfig     `yaml:"store"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig は gRPC サーバーに関する設定です。
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" env:"DIRECTORY_LISTEN_ADDR"`
}

// APIConfig は社員 REST API への接続設定です。
type APIConfig struct {
	BaseURL    string        `yaml:"base_url" env:"DIRECTORY_API_BASE_URL"`
	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout" env:"DIRECTORY_API_TIMEOUT"`
}

// CacheConfig はレスポンスキャッシュの設定です。
type CacheConfig struct {
	TTL    time.Duration `yaml:"-"`
	TTLRaw string        `yaml:"ttl" env:"DIRECTORY_CACHE_TTL"`
}

// StoreConfig は社員ストアの設定です。
type StoreConfig struct {
	FetchLimit      int           `yaml:"fetch_limit" env:"DIRECTORY_FETCH_LIMIT"`
	PageSize        int           `yaml:"page_size" env:"DIRECTORY_PAGE_SIZE"`
	BulkConcurrency int           `yaml:"bulk_concurrency" env:"DIRECTORY_BULK_CONCURRENCY"`
	Freshness       time.Duration `yaml:"-"`
	FreshnessRaw    string        `yaml:"freshness" env:"DIRECTORY_FRESHNESS"`
}

// LogConfig はロガーの設定です。
type LogConfig struct {
	Level string `yaml:"level" env:"DIRECTORY_LOG_LEVEL"`
}

// TelemetryConfig はトレース送信の設定です。OTLPEndpoint が空の場合は送信しません。
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"DIRECTORY_OTLP_ENDPOINT"`
	ServiceName  string `yaml:"service_name" env:"DIRECTORY_SERVICE_NAME"`
}

// Load は指定されたパスから設定ファイルを読み込み、環境変数で上書きします。
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := ParseEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ParseEnv は環境変数の値を target に反映します。設定されていない変数は既存値を維持します。
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c *Config) validateAndNormalize() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("config: server.listen_addr must be set")
	}

	if err := c.API.validateAndNormalize(); err != nil {
		return err
	}

	ttl, err := parseDurationDefault(c.Cache.TTLRaw, defaultCacheTTL)
	if err != nil {
		return fmt.Errorf("config: cache.ttl: %w", err)
	}
	c.Cache.TTL = ttl

	if err := c.Store.validateAndNormalize(); err != nil {
		return err
	}

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}

	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = defaultServiceName
	}

	return nil
}

func (a *APIConfig) validateAndNormalize() error {
	a.BaseURL = strings.TrimSpace(a.BaseURL)
	if a.BaseURL == "" {
		return fmt.Errorf("config: api.base_url must be set")
	}
	u, err := url.Parse(a.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: api.base_url must be an absolute url: %q", a.BaseURL)
	}

	timeout, err := parseDurationDefault(a.TimeoutRaw, defaultAPITimeout)
	if err != nil {
		return fmt.Errorf("config: api.timeout: %w", err)
	}
	a.Timeout = timeout
	return nil
}

func (s *StoreConfig) validateAndNormalize() error {
	if s.FetchLimit < 0 {
		return fmt.Errorf("config: store.fetch_limit must not be negative")
	}
	if s.FetchLimit == 0 {
		s.FetchLimit = defaultFetchLimit
	}
	if s.PageSize < 0 {
		return fmt.Errorf("config: store.page_size must not be negative")
	}
	if s.PageSize == 0 {
		s.PageSize = defaultPageSize
	}
	if s.BulkConcurrency < 0 {
		return fmt.Errorf("config: store.bulk_concurrency must not be negative")
	}
	if s.BulkConcurrency == 0 {
		s.BulkConcurrency = defaultBulkConcurrency
	}

	freshness, err := parseDurationDefault(s.FreshnessRaw, defaultFreshness)
	if err != nil {
		return fmt.Errorf("config: store.freshness: %w", err)
	}
	s.Freshness = freshness
	return nil
}

func parseDurationDefault(raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", raw)
	}
	return d, nil
}
