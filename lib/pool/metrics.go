package pool

import "github.com/go-i2p/dbpool/lib/metrics"

// Pool utilization metrics
var (
	// PoolConnectionsMax is the maximum pool size.
	PoolConnectionsMax = metrics.NewGauge(
		"dbpool_pool_connections_max",
		"Maximum number of connections in the pool",
	)
	// PoolConnectionsMin is the number of connections kept warm.
	PoolConnectionsMin = metrics.NewGauge(
		"dbpool_pool_connections_min",
		"Minimum number of connections kept open",
	)
	// PoolConnectionsOpen is the current number of live connections.
	PoolConnectionsOpen = metrics.NewGauge(
		"dbpool_pool_connections_open",
		"Current number of live connections",
	)
	// PoolConnectionsIdle is the current number of idle connections.
	PoolConnectionsIdle = metrics.NewGauge(
		"dbpool_pool_connections_idle",
		"Current number of idle connections in the pool",
	)
	// PoolConnectionsInUse is the number of connections currently checked out.
	PoolConnectionsInUse = metrics.NewGauge(
		"dbpool_pool_connections_in_use",
		"Number of connections currently checked out",
	)
	// PoolAcquireTotal is the total number of acquire attempts.
	PoolAcquireTotal = metrics.NewCounter(
		"dbpool_pool_acquire_total",
		"Total number of connection acquire attempts",
	)
	// PoolAcquireSuccessTotal is the number of successful acquires.
	PoolAcquireSuccessTotal = metrics.NewCounter(
		"dbpool_pool_acquire_success_total",
		"Total number of successful connection acquires",
	)
	// PoolAcquireFailedTotal is the number of failed acquires.
	PoolAcquireFailedTotal = metrics.NewCounter(
		"dbpool_pool_acquire_failed_total",
		"Total number of failed connection acquires",
	)
	// PoolAcquireTimeoutTotal is the number of acquires that timed out.
	PoolAcquireTimeoutTotal = metrics.NewCounter(
		"dbpool_pool_acquire_timeout_total",
		"Total number of connection acquires that timed out",
	)
	// PoolCreateFailedTotal is the number of failed driver opens.
	PoolCreateFailedTotal = metrics.NewCounter(
		"dbpool_pool_create_failed_total",
		"Total number of failed connection creations",
	)
	// PoolReleaseTotal is the number of releases.
	PoolReleaseTotal = metrics.NewCounter(
		"dbpool_pool_release_total",
		"Total number of connection releases",
	)
	// PoolDiscardTotal is the number of discarded connections.
	PoolDiscardTotal = metrics.NewCounter(
		"dbpool_pool_discard_total",
		"Total number of connections discarded instead of returned",
	)
	// PoolReclaimedTotal is the number of idle connections closed by the reclaimer.
	PoolReclaimedTotal = metrics.NewCounter(
		"dbpool_pool_reclaimed_total",
		"Total number of idle connections closed by the reclaimer",
	)
	// PoolLeakedTotal is the number of handles collected without Release.
	PoolLeakedTotal = metrics.NewCounter(
		"dbpool_pool_leaked_total",
		"Total number of connection handles collected without Release",
	)
	// PoolAcquireLatency tracks time spent acquiring connections.
	PoolAcquireLatency = metrics.NewHistogram(
		"dbpool_pool_acquire_duration_seconds",
		"Time spent acquiring a connection from the pool",
		metrics.DefaultLatencyBuckets,
	)
)

// UpdateMetrics updates the pool gauges from Stats.
func UpdateMetrics(stats Stats) {
	PoolConnectionsMax.Set(int64(stats.MaxSize))
	PoolConnectionsMin.Set(int64(stats.MinSize))
	PoolConnectionsOpen.Set(int64(stats.NumOpen))
	PoolConnectionsIdle.Set(int64(stats.NumIdle))
	PoolConnectionsInUse.Set(int64(stats.NumInUse))
}
