package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-i2p/dbpool/lib/driver"
	"github.com/go-i2p/dbpool/lib/metrics"
	"github.com/go-i2p/dbpool/lib/pool"
	"github.com/go-i2p/dbpool/lib/resilience"
	"github.com/go-i2p/dbpool/lib/web"
)

// NodeState represents the current state of the node.
type NodeState int

const (
	// StateInitial is the initial state before Start is called.
	StateInitial NodeState = iota
	// StateStarting means the node is in the process of starting.
	StateStarting
	// StateRunning means the node is fully operational.
	StateRunning
	// StateStopping means the node is shutting down.
	StateStopping
	// StateStopped means the node has been stopped.
	StateStopped
)

func (s NodeState) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Node owns one connection pool together with its dial breaker and status
// server, and drives them through a start/stop lifecycle.
type Node struct {
	mu     sync.RWMutex
	config *Config
	logger *slog.Logger
	state  NodeState

	pool    *pool.Pool
	breaker *resilience.Breaker
	status  *web.Server

	// cancel is used to signal shutdown to the run loop
	cancel context.CancelFunc
	// done signals that the node has fully stopped
	done chan struct{}

	// startedAt tracks when the node started
	startedAt time.Time

	onStateChange func(oldState, newState NodeState)
	onError       func(err error, message string)
}

// NewNode creates a new Node with the given configuration.
// The node is not started until Start() is called.
func NewNode(cfg *Config, logger *slog.Logger) (*Node, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Node{
		config: cfg,
		logger: logger.With("component", "node"),
		state:  StateInitial,
		done:   make(chan struct{}),
	}, nil
}

// Start brings up the node:
//   - building the driver factory (behind a breaker if enabled)
//   - creating the pool, which opens MinSize connections
//   - starting the status server if enabled
//
// Start blocks until the node is fully initialized or an error occurs.
// Failing to open the initial connections is not an error; the pool starts
// under-provisioned and opens connections on demand.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	if n.state != StateInitial && n.state != StateStopped {
		n.mu.Unlock()
		return fmt.Errorf("cannot start node in state %s", n.state)
	}
	oldState := n.state
	n.state = StateStarting
	n.done = make(chan struct{})
	n.mu.Unlock()

	n.emitStateChange(oldState, StateStarting)

	n.logger.Info("starting node",
		"driver", n.config.Database.Type,
		"min_size", n.config.Pool.MinSize,
		"max_size", n.config.Pool.MaxSize,
	)

	var breaker *resilience.Breaker
	if bcfg, ok := n.config.BreakerConfig(); ok {
		breaker = resilience.New(n.config.Database.Type, bcfg)
	}

	factory, err := driver.NewFactory(n.config.DriverConfig(), breaker)
	if err != nil {
		n.transitionToStopped()
		n.emitError(err, "failed to build driver")
		return fmt.Errorf("building driver: %w", err)
	}

	p, err := pool.New(factory, n.config.PoolConfig())
	if err != nil {
		n.transitionToStopped()
		n.emitError(err, "failed to create pool")
		return fmt.Errorf("creating pool: %w", err)
	}

	var status *web.Server
	if n.config.Status.Enabled {
		status, err = web.New(web.Config{
			ListenAddr:   n.config.Status.Listen,
			Pool:         p,
			Breaker:      breaker,
			ReadyTimeout: n.config.Status.ReadyTimeout.Std(),
			Logger:       n.logger,
		})
		if err == nil {
			err = status.Start()
		}
		if err != nil {
			p.Close()
			n.transitionToStopped()
			n.emitError(err, "failed to start status server")
			return fmt.Errorf("starting status server: %w", err)
		}
	}

	metrics.RecordStartTime()

	// Create a cancellable context for the node's lifetime
	nodeCtx, cancel := context.WithCancel(ctx)

	n.mu.Lock()
	n.pool = p
	n.breaker = breaker
	n.status = status
	n.cancel = cancel
	n.state = StateRunning
	n.startedAt = time.Now()
	done := n.done
	n.mu.Unlock()

	stats := p.Stats()
	n.emitStateChange(StateStarting, StateRunning)
	n.logger.Info("node started", "open", stats.NumOpen, "idle", stats.NumIdle)

	go n.run(nodeCtx, done)

	return nil
}

// run waits for shutdown and then tears the components down in reverse order.
func (n *Node) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	<-ctx.Done()

	n.logger.Info("node shutting down")

	n.mu.RLock()
	status, p := n.status, n.pool
	n.mu.RUnlock()

	if status != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := status.Stop(shutdownCtx); err != nil {
			n.emitError(err, "failed to stop status server")
			n.logger.Error("stopping status server", "error", err)
		}
		cancel()
	}

	if p != nil {
		stats := p.Stats()
		if stats.NumInUse > 0 {
			n.logger.Warn("closing pool with connections checked out", "in_use", stats.NumInUse)
		}
		if err := p.Close(); err != nil {
			n.emitError(err, "failed to close pool")
		}
	}

	n.mu.Lock()
	oldState := n.state
	n.state = StateStopped
	n.mu.Unlock()

	n.emitStateChange(oldState, StateStopped)
}

// Stop gracefully shuts down the node.
// It blocks until all components have stopped or the context is cancelled.
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	if n.state != StateRunning {
		n.mu.Unlock()
		return fmt.Errorf("cannot stop node in state %s", n.state)
	}
	n.state = StateStopping
	cancel := n.cancel
	done := n.done
	n.mu.Unlock()

	n.emitStateChange(StateRunning, StateStopping)
	n.logger.Info("stopping node")

	if cancel != nil {
		cancel()
	}

	select {
	case <-done:
		n.logger.Info("node stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// transitionToStopped updates the state to stopped.
func (n *Node) transitionToStopped() {
	n.mu.Lock()
	oldState := n.state
	n.state = StateStopped
	n.mu.Unlock()
	n.emitStateChange(oldState, StateStopped)
}

// GetState returns the current state of the node.
func (n *Node) GetState() NodeState {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

// Config returns the node's configuration.
func (n *Node) Config() *Config {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.config
}

// Pool returns the node's pool, or nil before the first Start.
// After Stop the pool is closed.
func (n *Node) Pool() *pool.Pool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.pool
}

// Breaker returns the dial breaker, or nil if it is disabled.
func (n *Node) Breaker() *resilience.Breaker {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.breaker
}

// StatusAddr returns the status server's listen address, or "" if it is not running.
func (n *Node) StatusAddr() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.status == nil || n.status.Addr() == nil {
		return ""
	}
	return n.status.Addr().String()
}

// Done returns a channel that is closed when the node has stopped.
func (n *Node) Done() <-chan struct{} {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.done
}

// Uptime returns how long the node has been running.
// Returns zero if not running.
func (n *Node) Uptime() time.Duration {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.startedAt.IsZero() || n.state != StateRunning {
		return 0
	}
	return time.Since(n.startedAt)
}

// SetOnStateChange sets a callback for state changes.
// The callback is invoked synchronously during state transitions.
func (n *Node) SetOnStateChange(callback func(oldState, newState NodeState)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onStateChange = callback
}

// SetOnError sets a callback for error events.
func (n *Node) SetOnError(callback func(err error, message string)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onError = callback
}

// emitStateChange notifies the state change callback if set.
func (n *Node) emitStateChange(oldState, newState NodeState) {
	n.mu.RLock()
	callback := n.onStateChange
	n.mu.RUnlock()

	if callback != nil {
		callback(oldState, newState)
	}
}

// emitError notifies the error callback if set.
func (n *Node) emitError(err error, message string) {
	n.mu.RLock()
	callback := n.onError
	n.mu.RUnlock()

	if callback != nil {
		callback(err, message)
	}
}
