// Package pool provides a thread-safe pool of reusable database connections.
//
// The pool keeps between MinSize and MaxSize connections alive, hands them
// out to concurrent callers and closes connections that stay idle too long.
//
// The pool supports:
//   - Pre-opening MinSize connections at startup (best effort)
//   - A hard MaxSize limit on live connections
//   - Blocking acquisition bounded by AcquireTimeout or the context deadline
//   - Oldest-first reuse of idle connections
//   - Background reclamation of connections idle longer than MaxIdleDuration
//   - Scoped handles that are released exactly once
//   - Metrics for pool utilization
//
// # Basic Usage
//
//	factory, err := driver.NewFactory(driverCfg, nil)
//	if err != nil {
//	    return err
//	}
//
//	cfg := pool.DefaultConfig()
//	cfg.MaxSize = 10
//	cfg.MaxIdleDuration = time.Minute
//
//	p, err := pool.New(factory, cfg)
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	conn, err := p.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer conn.Release()
//
//	// Use conn.Raw()...
//
// # Errors
//
// Acquire fails with ErrAcquireTimeout when the pool stayed full until the
// deadline and with ErrCreationFailed when the driver could not open a new
// connection. The two are distinct so that callers can retry the former and
// alert on the latter. The pool never retries internally.
//
// # Broken Connections
//
// Call MarkUnusable before Release, or Discard instead of Release, when a
// query showed the connection is broken. Connections whose IsAlive reports
// false are discarded on release as well.
//
// # Shutdown
//
// Close wakes all waiters, stops the reclaimer and closes idle connections.
// Connections still checked out are closed when they are released; callers
// should drain before shutting down.
//
// # Metrics
//
// Pool utilization metrics are registered with the metrics package:
//   - dbpool_pool_connections_max: Maximum pool size
//   - dbpool_pool_connections_min: Connections kept warm
//   - dbpool_pool_connections_open: Current live connections
//   - dbpool_pool_connections_idle: Current idle connections
//   - dbpool_pool_connections_in_use: Connections currently checked out
//   - dbpool_pool_acquire_total: Total acquire attempts
//   - dbpool_pool_acquire_success_total: Successful acquires
//   - dbpool_pool_acquire_failed_total: Failed acquires
//   - dbpool_pool_acquire_timeout_total: Acquires that timed out
//   - dbpool_pool_create_failed_total: Failed connection creations
//   - dbpool_pool_release_total: Connections handed back
//   - dbpool_pool_discard_total: Connections closed instead of pooled
//   - dbpool_pool_reclaimed_total: Idle connections closed by the reclaimer
//   - dbpool_pool_leaked_total: Handles collected without Release
//   - dbpool_pool_acquire_duration_seconds: Acquire latency histogram
package pool
