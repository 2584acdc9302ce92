package resilience

import (
	"github.com/go-i2p/dbpool/lib/metrics"
)

// Breaker metrics, one series per breaker name.
var (
	// BreakerState is 0 while closed, 1 while open and 2 while half-open.
	BreakerState = metrics.NewGaugeVec(
		"dbpool_breaker_state",
		"Current state of the dial circuit breaker (0=closed, 1=open, 2=half-open)",
		"breaker",
	)

	BreakerTrips = metrics.NewCounterVec(
		"dbpool_breaker_trips_total",
		"Total number of times the dial circuit breaker has opened",
		"breaker",
	)

	BreakerSuccesses = metrics.NewCounterVec(
		"dbpool_breaker_successes_total",
		"Total successful dials through the circuit breaker",
		"breaker",
	)

	BreakerFailures = metrics.NewCounterVec(
		"dbpool_breaker_failures_total",
		"Total failed dials through the circuit breaker",
		"breaker",
	)

	// BreakerRejections counts dials refused without calling the driver.
	BreakerRejections = metrics.NewCounterVec(
		"dbpool_breaker_rejections_total",
		"Total dials rejected by the open circuit breaker",
		"breaker",
	)
)
