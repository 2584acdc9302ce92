package pool

import (
	"runtime"
	"sync/atomic"
	"time"
)

// Conn is a checked-out connection. It is handed back to the pool with
// Release or dropped with Discard; whichever is called first wins and later
// calls return ErrConnReleased.
//
//	conn, err := p.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer conn.Release()
//
// A Conn that becomes unreachable without being released is closed by a
// runtime cleanup and counted as a leak.
type Conn struct {
	pool       *Pool
	conn       Connection
	acquiredAt time.Time
	released   atomic.Bool
	unusable   atomic.Bool
	cleanup    runtime.Cleanup
}

// leaked is the state a cleanup needs to close a dropped connection.
// It must not reference the Conn itself.
type leaked struct {
	pool *Pool
	conn Connection
}

func newConn(p *Pool, c Connection) *Conn {
	h := &Conn{
		pool:       p,
		conn:       c,
		acquiredAt: time.Now(),
	}
	h.cleanup = runtime.AddCleanup(h, func(l leaked) {
		l.pool.reclaimLeaked(l.conn)
	}, leaked{pool: p, conn: c})
	return h
}

// Raw returns the underlying driver connection. It must not be used after
// the handle is released.
func (c *Conn) Raw() Connection {
	return c.conn
}

// AcquiredAt returns when the connection was checked out.
func (c *Conn) AcquiredAt() time.Time {
	return c.acquiredAt
}

// MarkUnusable flags the connection as broken so that Release closes it
// instead of returning it to the idle list.
func (c *Conn) MarkUnusable() {
	c.unusable.Store(true)
}

// Release returns the connection to the pool. If MarkUnusable was called or
// the driver reports the connection dead, it is closed instead.
func (c *Conn) Release() error {
	if !c.released.CompareAndSwap(false, true) {
		return ErrConnReleased
	}
	c.cleanup.Stop()

	if c.unusable.Load() {
		c.pool.discard(c.conn)
		return nil
	}
	c.pool.release(c.conn)
	return nil
}

// Discard closes the connection and frees its slot in the pool.
func (c *Conn) Discard() error {
	if !c.released.CompareAndSwap(false, true) {
		return ErrConnReleased
	}
	c.cleanup.Stop()
	c.pool.discard(c.conn)
	return nil
}
