package driver

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	apperrors "github.com/go-i2p/dbpool/lib/errors"
)

// Errors returned by driver connections.
var (
	// ErrNoRows is returned by QueryString when the query produced no rows.
	ErrNoRows = apperrors.ErrNoRows
	// ErrNotSupported is returned when the underlying driver lacks a capability.
	ErrNotSupported = apperrors.ErrNotSupported
)

// Conn is a single raw database connection. It satisfies pool.Connection.
// A Conn is not safe for concurrent use; the pool hands it to one caller at
// a time.
type Conn struct {
	raw    driver.Conn
	kind   string
	probe  string
	bad    atomic.Bool
	closed atomic.Bool
}

func newConn(raw driver.Conn, kind, probe string) *Conn {
	return &Conn{raw: raw, kind: kind, probe: probe}
}

// Kind returns the driver type, "mysql" or "sqlite".
func (c *Conn) Kind() string {
	return c.kind
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.raw.Close()
}

// IsAlive reports whether the connection may be reused. It does no I/O: a
// connection is dead once it is closed, once the driver returned
// driver.ErrBadConn, or when the driver's own validity check fails.
func (c *Conn) IsAlive() bool {
	if c.closed.Load() || c.bad.Load() {
		return false
	}
	if v, ok := c.raw.(driver.Validator); ok {
		return v.IsValid()
	}
	return true
}

// Ping checks the connection with a round trip to the server.
func (c *Conn) Ping(ctx context.Context) error {
	p, ok := c.raw.(driver.Pinger)
	if !ok {
		return fmt.Errorf("%s: ping: %w", c.kind, ErrNotSupported)
	}
	return c.check(p.Ping(ctx))
}

// QueryString runs query and returns the first column of the first row as a
// string. NULL is returned as the empty string.
func (c *Conn) QueryString(ctx context.Context, query string, args ...any) (string, error) {
	q, ok := c.raw.(driver.QueryerContext)
	if !ok {
		return "", fmt.Errorf("%s: query: %w", c.kind, ErrNotSupported)
	}

	named, err := namedValues(args)
	if err != nil {
		return "", err
	}

	rows, err := q.QueryContext(ctx, query, named)
	if err != nil {
		return "", c.check(err)
	}
	defer rows.Close()

	cols := rows.Columns()
	if len(cols) == 0 {
		return "", ErrNoRows
	}
	dest := make([]driver.Value, len(cols))
	if err := rows.Next(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return "", ErrNoRows
		}
		return "", c.check(err)
	}

	switch v := dest[0].(type) {
	case nil:
		return "", nil
	case []byte:
		return string(v), nil
	case string:
		return v, nil
	default:
		return fmt.Sprint(v), nil
	}
}

// Exec runs a statement and returns the number of affected rows.
func (c *Conn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	e, ok := c.raw.(driver.ExecerContext)
	if !ok {
		return 0, fmt.Errorf("%s: exec: %w", c.kind, ErrNotSupported)
	}

	named, err := namedValues(args)
	if err != nil {
		return 0, err
	}

	res, err := e.ExecContext(ctx, query, named)
	if err != nil {
		return 0, c.check(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, c.check(err)
	}
	return n, nil
}

// ServerVersion runs the driver's probe query and returns the server version.
func (c *Conn) ServerVersion(ctx context.Context) (string, error) {
	return c.QueryString(ctx, c.probe)
}

// check marks the connection bad when the driver says so.
func (c *Conn) check(err error) error {
	if errors.Is(err, driver.ErrBadConn) {
		c.bad.Store(true)
		log.WithField("driver", c.kind).WithError(err).Debug("connection marked bad")
	}
	return err
}

func namedValues(args []any) ([]driver.NamedValue, error) {
	named := make([]driver.NamedValue, len(args))
	for i, arg := range args {
		v, err := driver.DefaultParameterConverter.ConvertValue(arg)
		if err != nil {
			return nil, fmt.Errorf("converting argument %d: %w", i+1, err)
		}
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return named, nil
}
