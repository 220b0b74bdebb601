// Package storage holds the small amount of client state the auth flows keep
// between views: the member id after login (durable) and the phone number
// between registration and OTP verification (transient).
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Keys written by the submission pipelines.
const (
	KeyMember = "member"
	KeyPhone  = "phone"
)

// Drivers accepted by Open.
const (
	DriverFile  = "file"
	DriverRedis = "redis"
)

var (
	// ErrNotFound is returned by Get when the key has no value.
	ErrNotFound = errors.New("storage: key not found")
	// ErrKey is returned for blank keys.
	ErrKey = errors.New("storage: key is required")
	// ErrDriver is returned by Open for unknown drivers.
	ErrDriver = errors.New("storage: unknown driver")
)

// Store is a string key/value store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Durable survives process restarts.
type Durable interface {
	Store
}

// Transient lives as long as the session that created it.
type Transient interface {
	Store
}

// Config selects and configures the durable driver.
type Config struct {
	Driver   string
	Path     string
	RedisURL string
	Prefix   string
}

// Open builds the durable store described by cfg. The returned close func
// releases driver resources and is never nil.
func Open(ctx context.Context, cfg Config) (Durable, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverFile:
		fs, err := NewFile(cfg.Path)
		if err != nil {
			return nil, noop, err
		}
		return fs, noop, nil
	case DriverRedis:
		rs, err := DialRedis(ctx, cfg.RedisURL, cfg.Prefix)
		if err != nil {
			return nil, noop, err
		}
		return rs, rs.Close, nil
	default:
		return nil, noop, fmt.Errorf("%w: %q", ErrDriver, cfg.Driver)
	}
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrKey
	}
	return nil
}
