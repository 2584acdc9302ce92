package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/go-i2p/dbpool/lib/errors"
)

// Errors returned by the pool. They alias the central definitions in lib/errors.
var (
	// ErrAcquireTimeout is returned when no connection became available in time.
	ErrAcquireTimeout = apperrors.ErrAcquireTimeout
	// ErrCreationFailed is returned when the driver could not open a connection.
	ErrCreationFailed = apperrors.ErrCreationFailed
	// ErrCloseFailed is logged when the driver fails to close a connection.
	ErrCloseFailed = apperrors.ErrCloseFailed
	// ErrPoolClosed is returned when operating on a closed pool.
	ErrPoolClosed = apperrors.ErrPoolClosed
	// ErrConnReleased is returned when a handle is released twice.
	ErrConnReleased = apperrors.ErrConnReleased
	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = apperrors.ErrInvalidPoolConfig
)

// Connection is a live driver connection owned by the pool while idle.
type Connection interface {
	// Close closes the underlying connection.
	Close() error
	// IsAlive reports whether the connection is still usable. It must not
	// perform I/O; drivers report what they already know.
	IsAlive() bool
}

// Factory opens a new connection.
type Factory func(ctx context.Context) (Connection, error)

// Default configuration values
const (
	DefaultMinSize         = 2
	DefaultMaxSize         = 10
	DefaultAcquireTimeout  = 5 * time.Second
	DefaultMaxIdleDuration = 60 * time.Second
)

// Config configures the connection pool. It is copied at New and never
// changes afterwards.
type Config struct {
	// MinSize is the number of connections opened at startup and never
	// reclaimed for being idle.
	MinSize int
	// MaxSize is the maximum number of live connections.
	MaxSize int
	// AcquireTimeout bounds how long Acquire waits for a connection.
	AcquireTimeout time.Duration
	// MaxIdleDuration is how long a connection may sit idle before the
	// reclaimer closes it.
	MaxIdleDuration time.Duration
	// ReclaimInterval is how often the reclaimer scans the idle list.
	// Default: MaxIdleDuration / 2
	ReclaimInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MinSize:         DefaultMinSize,
		MaxSize:         DefaultMaxSize,
		AcquireTimeout:  DefaultAcquireTimeout,
		MaxIdleDuration: DefaultMaxIdleDuration,
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.MaxSize < 1 {
		return fmt.Errorf("%w: max size must be at least 1, got %d", ErrInvalidConfig, c.MaxSize)
	}
	if c.MinSize < 0 {
		return fmt.Errorf("%w: min size must be non-negative, got %d", ErrInvalidConfig, c.MinSize)
	}
	if c.MinSize > c.MaxSize {
		return fmt.Errorf("%w: min size %d exceeds max size %d", ErrInvalidConfig, c.MinSize, c.MaxSize)
	}
	if c.AcquireTimeout < 0 {
		return fmt.Errorf("%w: acquire timeout must be non-negative", ErrInvalidConfig)
	}
	if c.MaxIdleDuration < 0 {
		return fmt.Errorf("%w: max idle duration must be non-negative", ErrInvalidConfig)
	}
	if c.ReclaimInterval < 0 {
		return fmt.Errorf("%w: reclaim interval must be non-negative", ErrInvalidConfig)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.AcquireTimeout == 0 {
		c.AcquireTimeout = DefaultAcquireTimeout
	}
	if c.MaxIdleDuration == 0 {
		c.MaxIdleDuration = DefaultMaxIdleDuration
	}
	if c.ReclaimInterval == 0 {
		c.ReclaimInterval = c.MaxIdleDuration / 2
		if c.ReclaimInterval <= 0 {
			c.ReclaimInterval = c.MaxIdleDuration
		}
	}
	return c
}

// Pool is a connection pool.
type Pool struct {
	factory Factory
	config  Config

	mu          sync.Mutex
	cond        *sync.Cond
	store       store
	closed      bool
	stopReclaim chan struct{}
	reclaimDone chan struct{}

	// Metrics
	acquireCount   uint64
	acquireSuccess uint64
	acquireFailed  uint64
	timeoutCount   uint64
	createFailed   uint64
	waitCount      uint64
	releaseCount   uint64
	discardCount   uint64
	reclaimCount   uint64
	leakCount      uint64
}

// New validates cfg, opens MinSize connections and starts the idle reclaimer.
// Failures while opening the initial connections are logged and do not abort
// initialization; the pool then starts with fewer idle connections.
func New(factory Factory, cfg Config) (*Pool, error) {
	if factory == nil {
		return nil, fmt.Errorf("%w: factory is required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	p := &Pool{
		factory:     factory,
		config:      cfg,
		stopReclaim: make(chan struct{}),
		reclaimDone: make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	p.prewarm()
	go p.reclaimLoop()

	PoolConnectionsMax.Set(int64(cfg.MaxSize))
	log.WithField("minSize", cfg.MinSize).
		WithField("maxSize", cfg.MaxSize).
		WithField("maxIdleDuration", cfg.MaxIdleDuration).
		Debug("pool created")
	return p, nil
}

// prewarm opens the initial MinSize connections.
func (p *Pool) prewarm() {
	for i := 0; i < p.config.MinSize; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), p.config.AcquireTimeout)
		conn, err := p.factory(ctx)
		cancel()
		if err != nil {
			atomic.AddUint64(&p.createFailed, 1)
			PoolCreateFailedTotal.Inc()
			log.WithError(err).WithField("index", i).Warn("failed to pre-create connection")
			continue
		}

		p.mu.Lock()
		p.store.incLive()
		p.store.addIdle(conn, time.Now())
		p.mu.Unlock()
	}
}

// Acquire returns a connection from the pool, blocking until one is idle,
// a new one can be opened, or the acquire deadline passes. The deadline is
// the earlier of ctx's deadline and now + AcquireTimeout.
//
// The returned handle must be released exactly once, typically with
// defer conn.Release().
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	start := time.Now()
	atomic.AddUint64(&p.acquireCount, 1)
	PoolAcquireTotal.Inc()

	acquireCtx, cancel := context.WithTimeout(ctx, p.config.AcquireTimeout)
	defer cancel()

	conn, err := p.acquire(acquireCtx)
	if err != nil {
		atomic.AddUint64(&p.acquireFailed, 1)
		PoolAcquireFailedTotal.Inc()
		if errors.Is(err, ErrAcquireTimeout) {
			atomic.AddUint64(&p.timeoutCount, 1)
			PoolAcquireTimeoutTotal.Inc()
		}
		return nil, err
	}

	atomic.AddUint64(&p.acquireSuccess, 1)
	PoolAcquireSuccessTotal.Inc()
	PoolAcquireLatency.ObserveSince(start)
	return newConn(p, conn), nil
}

// acquire runs the acquisition protocol. ctx carries the acquire deadline.
func (p *Pool) acquire(ctx context.Context) (Connection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	waited := false
	for {
		if p.closed {
			return nil, ErrPoolClosed
		}

		// Idle reuse is always preferred over opening a new connection
		if conn, ok := p.store.tryTakeIdle(); ok {
			log.Debug("acquired idle connection from pool")
			return conn, nil
		}

		if p.store.live < p.config.MaxSize {
			return p.createLocked(ctx)
		}

		if err := ctx.Err(); err != nil {
			p.passWakeupLocked()
			return nil, acquireError(err)
		}

		if !waited {
			waited = true
			atomic.AddUint64(&p.waitCount, 1)
			log.Debug("waiting for available connection")
		}
		p.waitWithContext(ctx)
	}
}

// createLocked reserves a slot and opens a connection outside the lock.
// The reservation counts toward the live total so concurrent creators can
// never exceed MaxSize. Caller must hold p.mu; it is held again on return.
func (p *Pool) createLocked(ctx context.Context) (Connection, error) {
	p.store.reserve()
	p.mu.Unlock()

	// An in-flight open is not cancelled by the acquire deadline.
	conn, err := p.factory(context.WithoutCancel(ctx))

	p.mu.Lock()
	p.store.settle(err == nil)
	if err != nil {
		p.cond.Signal()
		atomic.AddUint64(&p.createFailed, 1)
		PoolCreateFailedTotal.Inc()
		log.WithError(err).Debug("failed to create new connection")
		return nil, fmt.Errorf("%w: %w", ErrCreationFailed, err)
	}

	if p.closed {
		p.store.decLive(1)
		p.mu.Unlock()
		p.closeConn(conn, "created after shutdown")
		p.mu.Lock()
		return nil, ErrPoolClosed
	}

	log.Debug("created new connection")
	return conn, nil
}

// passWakeupLocked hands a pending signal on to another waiter when this
// one gives up while a connection or slot is available.
func (p *Pool) passWakeupLocked() {
	if p.store.numIdle() > 0 || p.store.live < p.config.MaxSize {
		p.cond.Signal()
	}
}

func acquireError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrAcquireTimeout
	}
	return err
}

// waitWithContext waits for a condition signal or context cancellation.
// Caller must hold p.mu.
func (p *Pool) waitWithContext(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() {
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	p.cond.Wait()
	stop()
}

// release returns conn to the idle list and wakes one waiter. Connections
// that report themselves dead are discarded instead.
func (p *Pool) release(conn Connection) {
	atomic.AddUint64(&p.releaseCount, 1)
	PoolReleaseTotal.Inc()

	if !conn.IsAlive() {
		log.Debug("released connection is no longer alive, discarding")
		p.discard(conn)
		return
	}

	p.mu.Lock()
	if p.closed {
		p.store.decLive(1)
		p.mu.Unlock()
		p.closeConn(conn, "released after shutdown")
		return
	}
	p.store.addIdle(conn, time.Now())
	p.cond.Signal()
	p.mu.Unlock()

	log.Debug("connection released to pool")
}

// discard closes conn and frees its slot.
func (p *Pool) discard(conn Connection) {
	atomic.AddUint64(&p.discardCount, 1)
	PoolDiscardTotal.Inc()

	p.mu.Lock()
	p.store.decLive(1)
	p.cond.Signal()
	p.mu.Unlock()

	p.closeConn(conn, "discarded")
}

// reclaimLeaked frees the slot of a connection whose handle was dropped
// without Release. The caller may still hold the connection through Raw, so
// it is closed rather than pooled.
func (p *Pool) reclaimLeaked(conn Connection) {
	atomic.AddUint64(&p.leakCount, 1)
	PoolLeakedTotal.Inc()
	log.Warn("connection handle collected without Release, closing it")
	p.discard(conn)
}

// closeConn closes conn; failures are logged and swallowed.
func (p *Pool) closeConn(conn Connection, reason string) {
	if err := conn.Close(); err != nil {
		log.WithError(fmt.Errorf("%w: %w", ErrCloseFailed, err)).
			WithField("reason", reason).
			Warn("failed to close connection")
		return
	}
	log.WithField("reason", reason).Debug("connection closed")
}

// Close shuts the pool down. It wakes all waiters, stops the reclaimer and
// closes every idle connection. Connections still checked out are closed as
// they are released. Calling Close more than once is a no-op.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.stopReclaim)
	p.cond.Broadcast()
	p.mu.Unlock()

	<-p.reclaimDone

	p.mu.Lock()
	idle := p.store.drain()
	p.store.decLive(len(idle))
	inUse := p.store.live
	p.mu.Unlock()

	for _, conn := range idle {
		p.closeConn(conn, "pool shutdown")
	}

	if inUse > 0 {
		log.WithField("inUse", inUse).Warn("pool closed with connections still checked out")
	}
	UpdateMetrics(p.Stats())
	log.WithField("closed", len(idle)).Debug("pool closed")
	return nil
}

// Config returns the effective pool configuration.
func (p *Pool) Config() Config {
	return p.config
}

// Stats holds pool statistics.
type Stats struct {
	// MaxSize is the maximum pool size.
	MaxSize int `json:"max_size"`
	// MinSize is the number of connections kept warm.
	MinSize int `json:"min_size"`
	// NumOpen is the current number of live connections.
	NumOpen int `json:"num_open"`
	// NumIdle is the current number of idle connections.
	NumIdle int `json:"num_idle"`
	// NumInUse is the number of connections currently checked out.
	NumInUse int `json:"num_in_use"`
	// Closed reports whether the pool has been shut down.
	Closed bool `json:"closed"`
	// AcquireCount is the total number of acquire attempts.
	AcquireCount uint64 `json:"acquire_count"`
	// AcquireSuccess is the number of successful acquires.
	AcquireSuccess uint64 `json:"acquire_success"`
	// AcquireFailed is the number of failed acquires.
	AcquireFailed uint64 `json:"acquire_failed"`
	// TimeoutCount is the number of acquires that hit the deadline.
	TimeoutCount uint64 `json:"timeout_count"`
	// CreateFailed is the number of failed driver opens.
	CreateFailed uint64 `json:"create_failed"`
	// WaitCount is the number of acquires that had to wait.
	WaitCount uint64 `json:"wait_count"`
	// ReleaseCount is the number of releases.
	ReleaseCount uint64 `json:"release_count"`
	// DiscardCount is the number of discarded connections.
	DiscardCount uint64 `json:"discard_count"`
	// ReclaimCount is the number of idle connections closed by the reclaimer.
	ReclaimCount uint64 `json:"reclaim_count"`
	// LeakCount is the number of handles collected without Release.
	LeakCount uint64 `json:"leak_count"`
}

// Stats returns current pool statistics.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		MaxSize:        p.config.MaxSize,
		MinSize:        p.config.MinSize,
		NumOpen:        p.store.live,
		NumIdle:        p.store.numIdle(),
		NumInUse:       p.store.live - p.store.numIdle(),
		Closed:         p.closed,
		AcquireCount:   atomic.LoadUint64(&p.acquireCount),
		AcquireSuccess: atomic.LoadUint64(&p.acquireSuccess),
		AcquireFailed:  atomic.LoadUint64(&p.acquireFailed),
		TimeoutCount:   atomic.LoadUint64(&p.timeoutCount),
		CreateFailed:   atomic.LoadUint64(&p.createFailed),
		WaitCount:      atomic.LoadUint64(&p.waitCount),
		ReleaseCount:   atomic.LoadUint64(&p.releaseCount),
		DiscardCount:   atomic.LoadUint64(&p.discardCount),
		ReclaimCount:   atomic.LoadUint64(&p.reclaimCount),
		LeakCount:      atomic.LoadUint64(&p.leakCount),
	}
}
