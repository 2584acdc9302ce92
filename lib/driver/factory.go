// Package driver opens the raw database connections a pool manages.
//
// Each opener dials exactly one connection per call and never retries;
// sizing, reuse and timeouts are the pool's business. NewFactory adapts an
// opener to pool.Factory and optionally guards it with a circuit breaker so
// that a dead backend fails fast instead of costing a dial timeout per
// Acquire.
package driver

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/go-i2p/dbpool/lib/errors"
	"github.com/go-i2p/dbpool/lib/pool"
	"github.com/go-i2p/dbpool/lib/resilience"
	"github.com/go-i2p/dbpool/lib/validation"
)

// Supported driver types.
const (
	TypeMySQL  = "mysql"
	TypeSQLite = "sqlite"
)

// DefaultDialTimeout bounds a single MySQL dial.
const DefaultDialTimeout = 5 * time.Second

// ErrUnsupportedDriver is returned for an unknown driver type.
var ErrUnsupportedDriver = apperrors.ErrUnsupportedDriver

// Config describes how to reach the database.
type Config struct {
	// Type is TypeMySQL or TypeSQLite.
	Type string
	// Host, Port, User, Password and Database address a MySQL server.
	Host     string
	Port     int
	User     string
	Password string
	Database string
	// Params are extra MySQL session parameters.
	Params map[string]string
	// DialTimeout bounds a single MySQL dial.
	DialTimeout time.Duration
	// Path is the SQLite database file.
	Path string
}

// Validate checks that cfg has what its driver type needs.
func (c Config) Validate() error {
	if err := validation.OneOf("database.type", c.Type, TypeMySQL, TypeSQLite); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsupportedDriver, err)
	}

	var errs validation.Errors
	switch c.Type {
	case TypeMySQL:
		errs.Add(validation.Host("database.host", c.Host))
		errs.Add(validation.Port("database.port", c.Port))
		errs.Add(validation.Identifier("database.user", c.User))
		errs.Add(validation.Identifier("database.name", c.Database))
		errs.Add(validation.DurationRange("database.dial_timeout", c.DialTimeout, time.Millisecond, validation.MaxDuration))
	case TypeSQLite:
		errs.Add(validation.Required("database.path", c.Path))
	}
	if errs.HasErrors() {
		return fmt.Errorf("%w: %w", apperrors.ErrConfiguration, errs.Err())
	}
	return nil
}

// Opener opens one connection per call.
type Opener interface {
	Open(ctx context.Context) (*Conn, error)
}

// NewOpener returns the opener for cfg.Type.
func NewOpener(cfg Config) (Opener, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}

	switch cfg.Type {
	case TypeMySQL:
		m, err := NewMySQL(cfg)
		if err != nil {
			return nil, err
		}
		return m, nil
	case TypeSQLite:
		return NewSQLite(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Type)
	}
}

// NewFactory returns a pool.Factory that opens connections described by cfg.
// If breaker is non-nil every dial goes through it and an open breaker
// rejects dials with ErrCircuitOpen.
func NewFactory(cfg Config, breaker *resilience.Breaker) (pool.Factory, error) {
	opener, err := NewOpener(cfg)
	if err != nil {
		return nil, err
	}
	return FactoryFor(opener, breaker), nil
}

// FactoryFor adapts opener to pool.Factory.
func FactoryFor(opener Opener, breaker *resilience.Breaker) pool.Factory {
	if breaker == nil {
		return func(ctx context.Context) (pool.Connection, error) {
			conn, err := opener.Open(ctx)
			if err != nil {
				return nil, err
			}
			return conn, nil
		}
	}

	return func(ctx context.Context) (pool.Connection, error) {
		var conn *Conn
		err := breaker.Do(ctx, func(ctx context.Context) error {
			c, err := opener.Open(ctx)
			conn = c
			return err
		})
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}
