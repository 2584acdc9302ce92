package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestCounter(t *testing.T) {
	// Create a counter outside the default registry for testing
	c := &Counter{name: "test_counter", help: "A test counter"}

	if c.Value() != 0 {
		t.Errorf("initial value = %d, want 0", c.Value())
	}

	c.Inc()
	if c.Value() != 1 {
		t.Errorf("after Inc() = %d, want 1", c.Value())
	}

	c.Add(5)
	if c.Value() != 6 {
		t.Errorf("after Add(5) = %d, want 6", c.Value())
	}
}

func TestCounterPrometheus(t *testing.T) {
	c := &Counter{name: "test_counter", help: "A test counter"}
	c.Add(42)

	output := c.prometheus()

	if !strings.Contains(output, "# HELP test_counter A test counter") {
		t.Error("missing HELP line")
	}
	if !strings.Contains(output, "# TYPE test_counter counter") {
		t.Error("missing TYPE line")
	}
	if !strings.Contains(output, "test_counter 42") {
		t.Errorf("missing value line, got: %s", output)
	}
}

func TestGauge(t *testing.T) {
	g := &Gauge{name: "test_gauge", help: "A test gauge"}

	if g.Value() != 0 {
		t.Errorf("initial value = %d, want 0", g.Value())
	}

	g.Set(10)
	if g.Value() != 10 {
		t.Errorf("after Set(10) = %d, want 10", g.Value())
	}

	g.Inc()
	if g.Value() != 11 {
		t.Errorf("after Inc() = %d, want 11", g.Value())
	}

	g.Dec()
	if g.Value() != 10 {
		t.Errorf("after Dec() = %d, want 10", g.Value())
	}

	g.Add(-5)
	if g.Value() != 5 {
		t.Errorf("after Add(-5) = %d, want 5", g.Value())
	}
}

func TestGaugePrometheus(t *testing.T) {
	g := &Gauge{name: "test_gauge", help: "A test gauge"}
	g.Set(123)

	output := g.prometheus()

	if !strings.Contains(output, "# HELP test_gauge A test gauge") {
		t.Error("missing HELP line")
	}
	if !strings.Contains(output, "# TYPE test_gauge gauge") {
		t.Error("missing TYPE line")
	}
	if !strings.Contains(output, "test_gauge 123") {
		t.Errorf("missing value line, got: %s", output)
	}
}

func TestHistogram(t *testing.T) {
	h := &Histogram{
		name:    "test_histogram",
		help:    "A test histogram",
		buckets: []float64{0.1, 0.5, 1.0, 5.0},
		counts:  make([]uint64, 4),
	}

	h.Observe(0.05) // fits in 0.1 bucket
	h.Observe(0.3)  // fits in 0.5 bucket
	h.Observe(0.8)  // fits in 1.0 bucket
	h.Observe(3.0)  // fits in 5.0 bucket
	h.Observe(10.0) // exceeds all buckets

	output := h.prometheus()

	if !strings.Contains(output, "# HELP test_histogram A test histogram") {
		t.Error("missing HELP line")
	}
	if !strings.Contains(output, "# TYPE test_histogram histogram") {
		t.Error("missing TYPE line")
	}
	if !strings.Contains(output, `test_histogram_bucket{le="0.1"} 1`) {
		t.Errorf("wrong 0.1 bucket count, got: %s", output)
	}
	// Buckets are cumulative
	if !strings.Contains(output, `test_histogram_bucket{le="1"} 3`) {
		t.Errorf("wrong 1.0 bucket count, got: %s", output)
	}
	if !strings.Contains(output, `test_histogram_bucket{le="+Inf"} 5`) {
		t.Errorf("wrong +Inf bucket count, got: %s", output)
	}
	if !strings.Contains(output, "test_histogram_count 5") {
		t.Errorf("wrong count, got: %s", output)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	c := &Counter{name: "reg_counter", help: "A counter"}
	g := &Gauge{name: "reg_gauge", help: "A gauge"}

	r.register(c)
	r.register(g)

	c.Inc()
	g.Set(42)

	output := r.Expose()

	if !strings.Contains(output, "reg_counter 1") {
		t.Errorf("missing counter in output: %s", output)
	}
	if !strings.Contains(output, "reg_gauge 42") {
		t.Errorf("missing gauge in output: %s", output)
	}
}

func TestRegistryHandler(t *testing.T) {
	r := NewRegistry()
	c := &Counter{name: "handler_test_counter", help: "Test counter"}
	r.register(c)
	c.Add(100)

	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	contentType := w.Header().Get("Content-Type")
	if !strings.Contains(contentType, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", contentType)
	}

	body := w.Body.String()
	if !strings.Contains(body, "handler_test_counter 100") {
		t.Errorf("missing counter in body: %s", body)
	}
}

func TestDefaultHandler(t *testing.T) {
	c := NewCounter("default_handler_test_total", "Test counter")
	c.Inc()

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.Contains(w.Body.String(), "default_handler_test_total 1") {
		t.Errorf("missing counter in body: %s", w.Body.String())
	}
}

func TestHistogramObserveSince(t *testing.T) {
	h := &Histogram{
		name:    "since_histogram",
		help:    "A test histogram",
		buckets: DefaultLatencyBuckets,
		counts:  make([]uint64, len(DefaultLatencyBuckets)),
	}

	h.ObserveSince(time.Now().Add(-20 * time.Millisecond))

	if h.Count() != 1 {
		t.Errorf("Count() = %d, want 1", h.Count())
	}
	output := h.prometheus()
	if !strings.Contains(output, `since_histogram_bucket{le="0.01"} 0`) {
		t.Errorf("20ms observation should not land in the 10ms bucket, got: %s", output)
	}
	if !strings.Contains(output, `since_histogram_bucket{le="0.05"} 1`) {
		t.Errorf("20ms observation should land in the 50ms bucket, got: %s", output)
	}
}

func TestExposeSorted(t *testing.T) {
	r := &Registry{metrics: make(map[string]metric)}
	r.register(&Gauge{name: "b_gauge", help: "b"})
	r.register(&Counter{name: "a_counter", help: "a"})

	output := r.Expose()
	if strings.Index(output, "a_counter") > strings.Index(output, "b_gauge") {
		t.Errorf("metrics should be sorted by name, got: %s", output)
	}
}

func TestRecordStartTime(t *testing.T) {
	RecordStartTime()

	if StartTime.Value() == 0 {
		t.Error("StartTime should be non-zero after RecordStartTime()")
	}
	if !strings.Contains(Expose(), "dbpool_start_time_seconds") {
		t.Error("start time should be in the default registry")
	}
}

func TestCounterVec(t *testing.T) {
	c := &CounterVec{v: newVec("dials_total", "Dials", "counter", "breaker")}

	c.Inc("mysql")
	c.Inc("mysql")
	c.Inc("sqlite")

	if got := c.Value("mysql"); got != 2 {
		t.Errorf("Value(mysql) = %d, want 2", got)
	}
	if got := c.Value("sqlite"); got != 1 {
		t.Errorf("Value(sqlite) = %d, want 1", got)
	}
	if got := c.Value("postgres"); got != 0 {
		t.Errorf("Value(postgres) = %d, want 0", got)
	}

	output := c.v.prometheus()
	if !strings.Contains(output, "# TYPE dials_total counter") {
		t.Errorf("missing TYPE line, got: %s", output)
	}
	if !strings.Contains(output, `dials_total{breaker="mysql"} 2`) {
		t.Errorf("missing mysql series, got: %s", output)
	}
	if strings.Index(output, `breaker="mysql"`) > strings.Index(output, `breaker="sqlite"`) {
		t.Errorf("series should be sorted by label value, got: %s", output)
	}
}

func TestGaugeVec(t *testing.T) {
	g := &GaugeVec{v: newVec("state", "State", "gauge", "breaker")}

	g.Set("mysql", 1)
	g.Set("mysql", 2)

	if got := g.Value("mysql"); got != 2 {
		t.Errorf("Value(mysql) = %d, want 2", got)
	}
	if !strings.Contains(g.v.prometheus(), `state{breaker="mysql"} 2`) {
		t.Errorf("missing series, got: %s", g.v.prometheus())
	}
}

func TestCounterVecConcurrent(t *testing.T) {
	c := &CounterVec{v: newVec("concurrent_total", "Concurrent", "counter", "worker")}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Inc("shared")
			}
		}()
	}
	wg.Wait()

	if got := c.Value("shared"); got != 1000 {
		t.Errorf("Value(shared) = %d, want 1000", got)
	}
}
