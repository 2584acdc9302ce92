package pool

import (
	"context"
	"sync"

	apperrors "github.com/go-i2p/dbpool/lib/errors"
)

// The process-wide pool. Prefer passing a *Pool explicitly; this exists for
// programs that want a single pool reachable from anywhere.
var (
	defaultMu   sync.Mutex
	defaultPool *Pool
)

// Init creates the process-wide pool. It may be called once; later calls
// return ErrAlreadyInitialized and leave the existing pool untouched.
func Init(factory Factory, cfg Config) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultPool != nil {
		return apperrors.ErrAlreadyInitialized
	}

	p, err := New(factory, cfg)
	if err != nil {
		return err
	}
	defaultPool = p
	return nil
}

// Default returns the process-wide pool, or nil before Init.
func Default() *Pool {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultPool
}

// Acquire acquires a connection from the process-wide pool.
func Acquire(ctx context.Context) (*Conn, error) {
	p := Default()
	if p == nil {
		return nil, apperrors.ErrNotInitialized
	}
	return p.Acquire(ctx)
}

// Shutdown closes the process-wide pool. The pool stays registered, so a
// later Init still reports ErrAlreadyInitialized.
func Shutdown() error {
	p := Default()
	if p == nil {
		return nil
	}
	return p.Close()
}
