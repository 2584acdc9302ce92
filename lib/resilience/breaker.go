// Package resilience guards connection dials with a circuit breaker.
//
// When the database is down every Acquire that needs a new connection would
// otherwise wait for a full dial timeout. The breaker counts consecutive dial
// failures and, once the threshold is hit, rejects dials immediately until the
// open timeout has passed. It then lets a few probe dials through and closes
// again after enough of them succeed.
//
// State transitions:
//
//	Closed (normal) -> Open (failing) -> HalfOpen (probing) -> Closed
//	                     ^                    |
//	                     +--------------------+ (if a probe fails)
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the state of a Breaker.
type State int

const (
	// StateClosed lets every dial through.
	StateClosed State = iota
	// StateOpen rejects dials without calling the driver.
	StateOpen
	// StateHalfOpen lets a limited number of probe dials through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config configures a Breaker.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold int
	// SuccessThreshold is the number of successful probes that closes it again.
	SuccessThreshold int
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// MaxProbes is the number of dials allowed while half-open.
	MaxProbes int
}

// DefaultConfig returns defaults suited to a database behind a LAN hop.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		OpenTimeout:      10 * time.Second,
		MaxProbes:        1,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = d.SuccessThreshold
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = d.OpenTimeout
	}
	if c.MaxProbes <= 0 {
		c.MaxProbes = d.MaxProbes
	}
	return c
}

// Breaker is a circuit breaker. It is safe for concurrent use.
type Breaker struct {
	name   string
	config Config

	mu       sync.Mutex
	state    State
	failures int
	probes   int
	passed   int
	openedAt time.Time
	changed  time.Time
	lastErr  error

	onStateChange func(from, to State)
}

// New creates a closed breaker. Zero fields in cfg take their defaults.
func New(name string, cfg Config) *Breaker {
	BreakerState.Set(name, int64(StateClosed))
	return &Breaker{
		name:    name,
		config:  cfg.withDefaults(),
		state:   StateClosed,
		changed: time.Now(),
	}
}

// OnStateChange registers fn to be called after every transition. It runs in
// its own goroutine.
func (b *Breaker) OnStateChange(fn func(from, to State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state. An open breaker whose timeout has passed
// reports half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentLocked()
}

func (b *Breaker) currentLocked() State {
	if b.state == StateOpen && time.Since(b.openedAt) >= b.config.OpenTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Allow reports whether a dial may proceed. It returns ErrCircuitOpen when
// the breaker rejects it; otherwise the caller must report the outcome with
// Record.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Since(b.openedAt) < b.config.OpenTimeout {
			return ErrCircuitOpen
		}
		b.transitionLocked(StateHalfOpen)
		b.probes = 1
		return nil
	case StateHalfOpen:
		if b.probes < b.config.MaxProbes {
			b.probes++
			return nil
		}
		return ErrCircuitOpen
	}
	return ErrCircuitOpen
}

// Record reports the outcome of an allowed dial.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		switch b.state {
		case StateClosed:
			b.failures = 0
		case StateHalfOpen:
			b.passed++
			if b.passed >= b.config.SuccessThreshold {
				b.transitionLocked(StateClosed)
			}
		}
		return
	}

	b.lastErr = err
	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		b.transitionLocked(StateOpen)
	}
}

// Do runs fn if the breaker allows it and records the result. Errors caused
// by ctx ending are not counted as failures.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := b.Allow(); err != nil {
		BreakerRejections.Inc(b.name)
		return err
	}
	if err := ctx.Err(); err != nil {
		b.release()
		return err
	}

	err := fn(ctx)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		b.release()
		return err
	}

	if err != nil {
		BreakerFailures.Inc(b.name)
	} else {
		BreakerSuccesses.Inc(b.name)
	}
	b.Record(err)
	return err
}

// release gives back a half-open probe slot that produced no verdict.
func (b *Breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen && b.probes > 0 {
		b.probes--
	}
}

// transitionLocked changes state. Caller must hold b.mu.
func (b *Breaker) transitionLocked(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.changed = time.Now()

	switch to {
	case StateClosed:
		b.failures = 0
		b.passed = 0
	case StateOpen:
		b.openedAt = b.changed
		b.passed = 0
		BreakerTrips.Inc(b.name)
	case StateHalfOpen:
		b.passed = 0
		b.probes = 0
	}
	BreakerState.Set(b.name, int64(to))

	entry := log.WithField("breaker", b.name).
		WithField("from", from.String()).
		WithField("to", to.String())
	if to == StateOpen && b.lastErr != nil {
		entry.WithError(b.lastErr).Warn("circuit breaker opened")
	} else {
		entry.Info("circuit breaker state transition")
	}

	if b.onStateChange != nil {
		go b.onStateChange(from, to)
	}
}

// ForceOpen opens the breaker regardless of the failure count.
func (b *Breaker) ForceOpen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitionLocked(StateOpen)
}

// Reset returns the breaker to its initial closed state.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitionLocked(StateClosed)
	b.failures = 0
	b.probes = 0
	b.passed = 0
	b.lastErr = nil
	b.openedAt = time.Time{}
}

// Stats is a snapshot of a Breaker.
type Stats struct {
	Name            string    `json:"name"`
	State           string    `json:"state"`
	Failures        int       `json:"consecutive_failures"`
	LastStateChange time.Time `json:"last_state_change"`
	LastError       string    `json:"last_error,omitempty"`
}

// Stats returns a snapshot of the breaker.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Stats{
		Name:            b.name,
		State:           b.currentLocked().String(),
		Failures:        b.failures,
		LastStateChange: b.changed,
	}
	if b.lastErr != nil {
		s.LastError = b.lastErr.Error()
	}
	return s
}
