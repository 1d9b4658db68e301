// Package main provides the sitecraft server CLI.
package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/good-yellow-bee/sitecraft/internal/sitecache"
)

// envPrefix prefixes every environment override.
const envPrefix = "SITECRAFT_"

// Config represents the server configuration.
type Config struct {
	Server   ServerConfig     `yaml:"server"`
	Database DatabaseConfig   `yaml:"database"`
	Auth     AuthConfig       `yaml:"auth"`
	Cache    sitecache.Config `yaml:"cache"`
	Metrics  MetricsConfig    `yaml:"metrics"`
	Log      LogConfig        `yaml:"log"`
	Verbose  bool             `yaml:"-"` // set via CLI flag
}

// ServerConfig contains HTTP settings.
type ServerConfig struct {
	HTTPAddress   string        `yaml:"http_address"`    // listen address (default: :8080)
	PublicBaseURL string        `yaml:"public_base_url"` // prefix of published live URLs
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	TLS           TLSConfig     `yaml:"tls"`
}

// TLSConfig contains TLS settings for the HTTP listener.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// DatabaseConfig contains storage settings.
type DatabaseConfig struct {
	Path string `yaml:"path"` // SQLite file (default: ./data/sitecraft.db)
}

// AuthConfig contains token and login protection settings.
type AuthConfig struct {
	JWTSecret        string        `yaml:"jwt_secret"`
	AccessTokenTTL   time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL  time.Duration `yaml:"refresh_token_ttl"`
	LockoutThreshold int           `yaml:"lockout_threshold"`
	LockoutDuration  time.Duration `yaml:"lockout_duration"`
	RateLimitPerIP   int           `yaml:"rate_limit_per_ip"`   // requests/minute on /api/auth
	RateLimitPerUser int           `yaml:"rate_limit_per_user"` // requests/minute per signed-in user
	BcryptCost       int           `yaml:"bcrypt_cost"`
	// TokenCleanupSchedule is a cron expression for purging expired refresh tokens.
	TokenCleanupSchedule string `yaml:"token_cleanup_schedule"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // default :9090
	Path    string `yaml:"path"`    // default /metrics
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// LoadConfig loads configuration from a YAML file. ${VAR} references are
// expanded from the environment before parsing.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a configuration with default values and
// environment overrides applied.
func DefaultConfig() (*Config, error) {
	cfg := &Config{}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return cfg, nil
}

// applyEnv overrides fields from SITECRAFT_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	var errs []string
	dur := func(name string, dst *time.Duration) {
		v, ok := lookup(envPrefix + name)
		if !ok || v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s%s: %v", envPrefix, name, err))
			return
		}
		*dst = d
	}
	num := func(name string, dst *int) {
		v, ok := lookup(envPrefix + name)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s%s: %v", envPrefix, name, err))
			return
		}
		*dst = n
	}
	flag := func(name string, dst *bool) {
		v, ok := lookup(envPrefix + name)
		if !ok || v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s%s: %v", envPrefix, name, err))
			return
		}
		*dst = b
	}

	str("HTTP_ADDRESS", &c.Server.HTTPAddress)
	str("PUBLIC_BASE_URL", &c.Server.PublicBaseURL)
	str("DB_PATH", &c.Database.Path)
	str("JWT_SECRET", &c.Auth.JWTSecret)
	dur("ACCESS_TOKEN_TTL", &c.Auth.AccessTokenTTL)
	dur("REFRESH_TOKEN_TTL", &c.Auth.RefreshTokenTTL)
	str("CACHE_DRIVER", &c.Cache.Driver)
	dur("CACHE_TTL", &c.Cache.TTL)
	str("REDIS_ADDR", &c.Cache.RedisAddr)
	str("REDIS_PASSWORD", &c.Cache.RedisPassword)
	num("REDIS_DB", &c.Cache.RedisDB)
	flag("METRICS_ENABLED", &c.Metrics.Enabled)
	str("METRICS_ADDRESS", &c.Metrics.Address)
	str("LOG_LEVEL", &c.Log.Level)
	flag("LOG_PRETTY", &c.Log.Pretty)

	if len(errs) > 0 {
		return fmt.Errorf("environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Server.HTTPAddress == "" {
		c.Server.HTTPAddress = ":8080"
	}
	if c.Server.PublicBaseURL == "" {
		c.Server.PublicBaseURL = "http://localhost" + c.Server.HTTPAddress
	}
	c.Server.PublicBaseURL = strings.TrimRight(c.Server.PublicBaseURL, "/")
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/sitecraft.db"
	}
	if c.Auth.AccessTokenTTL == 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL == 0 {
		c.Auth.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if c.Auth.TokenCleanupSchedule == "" {
		c.Auth.TokenCleanupSchedule = "@hourly"
	}
	c.Cache.SetDefaults()
	if c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters (set %sJWT_SECRET)", envPrefix)
	}
	u, err := url.Parse(c.Server.PublicBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server.public_base_url must be an absolute http(s) URL, got %q", c.Server.PublicBaseURL)
	}
	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" {
			return fmt.Errorf("server.tls.cert_file is required when TLS is enabled")
		}
		if c.Server.TLS.KeyFile == "" {
			return fmt.Errorf("server.tls.key_file is required when TLS is enabled")
		}
	}
	switch c.Cache.Driver {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("cache.driver must be memory, redis or none, got %q", c.Cache.Driver)
	}
	if c.Auth.BcryptCost != 0 && (c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31) {
		return fmt.Errorf("auth.bcrypt_cost must be between 4 and 31")
	}
	if c.Metrics.Enabled && c.Metrics.Address == c.Server.HTTPAddress {
		return fmt.Errorf("metrics.address must differ from server.http_address")
	}
	return nil
}
