package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// vec is a family of int64 series partitioned by the value of one label.
type vec struct {
	name  string
	help  string
	typ   string
	label string

	mu     sync.RWMutex
	series map[string]*int64
}

func newVec(name, help, typ, label string) *vec {
	return &vec{
		name:   name,
		help:   help,
		typ:    typ,
		label:  label,
		series: make(map[string]*int64),
	}
}

// get returns the series for value, creating it on first use.
func (v *vec) get(value string) *int64 {
	v.mu.RLock()
	p, ok := v.series[value]
	v.mu.RUnlock()
	if ok {
		return p
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if p, ok = v.series[value]; !ok {
		p = new(int64)
		v.series[value] = p
	}
	return p
}

func (v *vec) metricName() string { return v.name }

func (v *vec) prometheus() string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	values := make([]string, 0, len(v.series))
	for value := range v.series {
		values = append(values, value)
	}
	sort.Strings(values)

	var sb strings.Builder
	writeHeader(&sb, v.name, v.help, v.typ)
	for _, value := range values {
		fmt.Fprintf(&sb, "%s{%s=%q} %d\n", v.name, v.label, value, atomic.LoadInt64(v.series[value]))
	}
	return sb.String()
}

// CounterVec is a set of counters that share a name and differ by one label,
// for example one series per circuit breaker.
type CounterVec struct {
	v *vec
}

// NewCounterVec creates a counter family keyed by label.
func NewCounterVec(name, help, label string) *CounterVec {
	c := &CounterVec{v: newVec(name, help, "counter", label)}
	defaultRegistry.register(c.v)
	return c
}

// Inc increments the series for value by 1.
func (c *CounterVec) Inc(value string) {
	atomic.AddInt64(c.v.get(value), 1)
}

// Value returns the current count of the series for value.
func (c *CounterVec) Value(value string) uint64 {
	return uint64(atomic.LoadInt64(c.v.get(value)))
}

// GaugeVec is a set of gauges that share a name and differ by one label.
type GaugeVec struct {
	v *vec
}

// NewGaugeVec creates a gauge family keyed by label.
func NewGaugeVec(name, help, label string) *GaugeVec {
	g := &GaugeVec{v: newVec(name, help, "gauge", label)}
	defaultRegistry.register(g.v)
	return g
}

// Set sets the series for value.
func (g *GaugeVec) Set(value string, n int64) {
	atomic.StoreInt64(g.v.get(value), n)
}

// Value returns the current value of the series for value.
func (g *GaugeVec) Value(value string) int64 {
	return atomic.LoadInt64(g.v.get(value))
}
