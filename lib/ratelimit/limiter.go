// Package ratelimit provides token bucket rate limiting for the status server.
// Readiness checks borrow a real connection from the pool, so callers hitting
// them in a tight loop would compete with the application for connections.
package ratelimit

import (
	"sync"
	"time"
)

// Bucket is a token bucket. It is safe for concurrent use.
type Bucket struct {
	mu       sync.Mutex
	rate     float64 // tokens per second
	capacity float64
	tokens   float64
	last     time.Time
}

// NewBucket creates a full bucket refilled at rate tokens per second and
// holding at most burst tokens.
func NewBucket(rate float64, burst int) *Bucket {
	return &Bucket{
		rate:     rate,
		capacity: float64(burst),
		tokens:   float64(burst),
		last:     time.Now(),
	}
}

// Allow takes one token and reports whether one was available.
func (b *Bucket) Allow() bool {
	return b.AllowN(1)
}

// AllowN takes n tokens if all of them are available.
func (b *Bucket) AllowN(n int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked(time.Now())
	if b.tokens < float64(n) {
		return false
	}
	b.tokens -= float64(n)
	return true
}

// Tokens returns the number of tokens currently available.
func (b *Bucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(time.Now())
	return b.tokens
}

func (b *Bucket) refillLocked(now time.Time) {
	b.tokens += now.Sub(b.last).Seconds() * b.rate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.last = now
}

// idle reports whether the bucket is full and untouched for longer than d.
func (b *Bucket) idle(now time.Time, d time.Duration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	stale := now.Sub(b.last) > d
	b.refillLocked(now)
	return stale && b.tokens >= b.capacity
}

// Keyed keeps one bucket per key, typically a client IP. Buckets that sit
// full and idle for longer than the sweep interval are dropped.
type Keyed struct {
	mu      sync.Mutex
	buckets map[string]*Bucket
	rate    float64
	burst   int
	sweep   time.Duration

	stopOnce sync.Once
	stop     chan struct{}
}

// NewKeyed creates a per-key limiter and starts its sweeper.
func NewKeyed(rate float64, burst int, sweep time.Duration) *Keyed {
	k := &Keyed{
		buckets: make(map[string]*Bucket),
		rate:    rate,
		burst:   burst,
		sweep:   sweep,
		stop:    make(chan struct{}),
	}
	go k.sweepLoop()
	return k
}

// Allow takes one token from key's bucket.
func (k *Keyed) Allow(key string) bool {
	k.mu.Lock()
	b, ok := k.buckets[key]
	if !ok {
		b = NewBucket(k.rate, k.burst)
		k.buckets[key] = b
	}
	k.mu.Unlock()

	return b.Allow()
}

// Len returns the number of tracked keys.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}

// Close stops the sweeper. It is safe to call more than once.
func (k *Keyed) Close() {
	k.stopOnce.Do(func() { close(k.stop) })
}

func (k *Keyed) sweepLoop() {
	ticker := time.NewTicker(k.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-k.stop:
			return
		case now := <-ticker.C:
			k.sweepIdle(now, k.sweep)
		}
	}
}

func (k *Keyed) sweepIdle(now time.Time, d time.Duration) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for key, b := range k.buckets {
		if b.idle(now, d) {
			delete(k.buckets, key)
		}
	}
}
