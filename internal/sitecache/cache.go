// Package sitecache caches rendered live-site pages by slug. Publishing or
// deleting a project invalidates its entry.
package sitecache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache stores rendered pages.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
	// Backend names the implementation for metrics and logs.
	Backend() string
}

// Config selects and tunes the cache backend.
type Config struct {
	Driver     string        `yaml:"driver"` // memory, redis, none
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	KeyPrefix     string `yaml:"key_prefix"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "memory"
	}
	if c.TTL == 0 {
		c.TTL = 5 * time.Minute
	}
	if c.MaxEntries == 0 {
		c.MaxEntries = 1000
	}
	if c.RedisAddr == "" {
		c.RedisAddr = "localhost:6379"
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "sitecraft:site:"
	}
}

// New builds the cache named by cfg.Driver.
func New(cfg Config) (Cache, error) {
	cfg.SetDefaults()
	switch cfg.Driver {
	case "memory":
		return NewMemory(cfg.TTL, cfg.MaxEntries), nil
	case "redis":
		return NewRedis(RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.KeyPrefix,
			TTL:      cfg.TTL,
		}), nil
	case "none":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}

// SiteKey is the cache key of a live site page.
func SiteKey(slug string) string {
	return "page:" + slug
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }
func (Nop) Set(context.Context, string, []byte) error { return nil }
func (Nop) Delete(context.Context, string) error { return nil }
func (Nop) Ping(context.Context) error { return nil }
func (Nop) Close() error { return nil }
func (Nop) Backend() string { return "none" }
