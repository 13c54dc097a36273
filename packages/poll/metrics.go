package poll

import (
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	// Histogram range: 1us to 60s, 3 significant digits
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

// Metrics collects and aggregates polling outcomes
type Metrics struct {
	mu sync.RWMutex

	// Counters
	totalRequests   atomic.Int64
	successRequests atomic.Int64
	errorRequests   atomic.Int64
	timeoutRequests atomic.Int64
	redirected      atomic.Int64
	bytes           atomic.Int64

	// Latency histogram (in microseconds for precision)
	histogram *hdrhistogram.Histogram

	statuses map[int]int64
	errKinds map[string]int64

	startTime time.Time
	endTime   time.Time
}

// NewMetrics creates a new Metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		histogram: hdrhistogram.New(minLatencyUs, maxLatencyUs, 3),
		statuses:  make(map[int]int64),
		errKinds:  make(map[string]int64),
	}
}

// Start marks the beginning of the run
func (m *Metrics) Start() {
	m.mu.Lock()
	m.startTime = time.Now()
	m.mu.Unlock()
}

// Stop marks the end of the run
func (m *Metrics) Stop() {
	m.mu.Lock()
	m.endTime = time.Now()
	m.mu.Unlock()
}

func clampLatency(d time.Duration) int64 {
	us := d.Microseconds()
	if us < minLatencyUs {
		us = minLatencyUs
	}
	if us > maxLatencyUs {
		us = maxLatencyUs
	}
	return us
}

// Record records one outcome. Failed dispatches carry an error kind and
// status 0; their latency is still recorded.
func (m *Metrics) Record(o Outcome) {
	m.totalRequests.Add(1)
	if o.Err != nil {
		m.errorRequests.Add(1)
		if o.ErrKind == "timeout" {
			m.timeoutRequests.Add(1)
		}
	} else {
		m.successRequests.Add(1)
	}
	if o.Redirected {
		m.redirected.Add(1)
	}
	m.bytes.Add(o.Bytes)

	m.mu.Lock()
	_ = m.histogram.RecordValue(clampLatency(o.Latency))
	if o.Err != nil {
		m.errKinds[o.ErrKind]++
	} else {
		m.statuses[o.Status]++
	}
	m.mu.Unlock()
}

// Summary is the final metrics summary
type Summary struct {
	Duration      time.Duration
	TotalRequests int64
	SuccessCount  int64
	ErrorCount    int64
	TimeoutCount  int64
	Redirected    int64
	Bytes         int64

	// Calculated rates
	RPS         float64
	SuccessRate float64
	ErrorRate   float64

	// Latency percentiles
	P50    time.Duration
	P95    time.Duration
	P99    time.Duration
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	StdDev time.Duration

	Statuses []StatusCount
	Errors   map[string]int64
}

// StatusCount is the number of responses that carried one status code
type StatusCount struct {
	Status int
	Count  int64
}

func usToDuration(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}

// GetSummary returns the metrics summary
func (m *Metrics) GetSummary() *Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	duration := m.endTime.Sub(m.startTime)
	if m.endTime.IsZero() {
		duration = time.Since(m.startTime)
	}

	total := m.totalRequests.Load()
	success := m.successRequests.Load()
	errors := m.errorRequests.Load()

	rps := float64(0)
	if duration.Seconds() > 0 {
		rps = float64(total) / duration.Seconds()
	}

	successRate := float64(0)
	errorRate := float64(0)
	if total > 0 {
		successRate = float64(success) / float64(total)
		errorRate = float64(errors) / float64(total)
	}

	summary := &Summary{
		Duration:      duration,
		TotalRequests: total,
		SuccessCount:  success,
		ErrorCount:    errors,
		TimeoutCount:  m.timeoutRequests.Load(),
		Redirected:    m.redirected.Load(),
		Bytes:         m.bytes.Load(),
		RPS:           rps,
		SuccessRate:   successRate,
		ErrorRate:     errorRate,
		P50:           usToDuration(m.histogram.ValueAtQuantile(50)),
		P95:           usToDuration(m.histogram.ValueAtQuantile(95)),
		P99:           usToDuration(m.histogram.ValueAtQuantile(99)),
		Min:           usToDuration(m.histogram.Min()),
		Max:           usToDuration(m.histogram.Max()),
		Mean:          time.Duration(m.histogram.Mean() * float64(time.Microsecond)),
		StdDev:        time.Duration(m.histogram.StdDev() * float64(time.Microsecond)),
		Errors:        make(map[string]int64, len(m.errKinds)),
	}

	for status, n := range m.statuses {
		summary.Statuses = append(summary.Statuses, StatusCount{Status: status, Count: n})
	}
	sort.Slice(summary.Statuses, func(i, j int) bool {
		return summary.Statuses[i].Status < summary.Statuses[j].Status
	})
	for kind, n := range m.errKinds {
		summary.Errors[kind] = n
	}

	return summary
}

// EvaluateThresholds evaluates the thresholds against the summary
func (m *Metrics) EvaluateThresholds(t Thresholds) []ThresholdResult {
	summary := m.GetSummary()
	var results []ThresholdResult

	latency := []struct {
		name   string
		limit  time.Duration
		actual time.Duration
	}{
		{"p50", t.P50, summary.P50},
		{"p95", t.P95, summary.P95},
		{"p99", t.P99, summary.P99},
		{"max latency", t.MaxLatency, summary.Max},
	}
	for _, l := range latency {
		if l.limit <= 0 {
			continue
		}
		results = append(results, ThresholdResult{
			Name:     l.name,
			Passed:   l.actual <= l.limit,
			Expected: "< " + l.limit.String(),
			Actual:   l.actual.String(),
		})
	}

	if t.ErrorRate > 0 {
		results = append(results, ThresholdResult{
			Name:     "error rate",
			Passed:   summary.ErrorRate <= t.ErrorRate,
			Expected: formatPercent(t.ErrorRate),
			Actual:   formatPercent(summary.ErrorRate),
		})
	}

	if t.MinRPS > 0 {
		results = append(results, ThresholdResult{
			Name:     "min RPS",
			Passed:   summary.RPS >= t.MinRPS,
			Expected: "> " + formatFloat(t.MinRPS),
			Actual:   formatFloat(summary.RPS),
		})
	}

	return results
}

func formatPercent(f float64) string {
	return formatFloat(f*100) + "%"
}

func formatFloat(f float64) string {
	if f == float64(int(f)) {
		return strconv.Itoa(int(f))
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}
