package health

import (
	"context"
	"errors"
)

// Pinger is implemented by storage backends and site caches.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker reports a dependency healthy when its Ping succeeds.
type PingChecker struct {
	name   string
	pinger Pinger
}

// NewPingChecker creates a checker named name backed by p.
func NewPingChecker(name string, p Pinger) *PingChecker {
	return &PingChecker{name: name, pinger: p}
}

// NewStorageChecker checks the project database.
func NewStorageChecker(p Pinger) *PingChecker {
	return NewPingChecker("storage", p)
}

// NewCacheChecker checks the live site cache.
func NewCacheChecker(p Pinger) *PingChecker {
	return NewPingChecker("cache", p)
}

// Name returns the checker name.
func (c *PingChecker) Name() string {
	return c.name
}

// Check pings the dependency.
func (c *PingChecker) Check(ctx context.Context) error {
	if c.pinger == nil {
		return errors.New(c.name + " not configured")
	}
	return c.pinger.Ping(ctx)
}
