package poll

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry exposes s as Prometheus metrics on a fresh registry.
func Registry(s *Summary) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	counter := func(name, help string, v int64) {
		c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
		c.Add(float64(v))
		reg.MustRegister(c)
	}

	counter("hitreq_poll_requests_total", "Total number of polled requests", s.TotalRequests)
	counter("hitreq_poll_requests_failed_total", "Requests that failed before a response arrived", s.ErrorCount)
	counter("hitreq_poll_requests_redirected_total", "Requests whose response came from a redirect", s.Redirected)
	counter("hitreq_poll_received_bytes_total", "Body bytes received", s.Bytes)

	latency := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hitreq_poll_request_duration_seconds",
		Help: "Request latency statistics in seconds",
	}, []string{"stat"})
	for stat, d := range map[string]time.Duration{
		"min":  s.Min,
		"p50":  s.P50,
		"p95":  s.P95,
		"p99":  s.P99,
		"max":  s.Max,
		"mean": s.Mean,
	} {
		latency.WithLabelValues(stat).Set(d.Seconds())
	}
	reg.MustRegister(latency)

	rps := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hitreq_poll_requests_per_second",
		Help: "Observed request throughput",
	})
	rps.Set(s.RPS)
	reg.MustRegister(rps)

	byStatus := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hitreq_poll_requests_by_status_total",
		Help: "Requests by HTTP status code",
	}, []string{"status"})
	for _, sc := range s.Statuses {
		byStatus.WithLabelValues(strconv.Itoa(sc.Status)).Add(float64(sc.Count))
	}
	reg.MustRegister(byStatus)

	byError := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hitreq_poll_requests_by_error_total",
		Help: "Failed requests by error kind",
	}, []string{"kind"})
	for kind, n := range s.Errors {
		byError.WithLabelValues(kind).Add(float64(n))
	}
	reg.MustRegister(byError)

	return reg
}

// WritePrometheus writes s to path in the text exposition format, ready for
// the node exporter textfile collector. The file is replaced atomically.
func WritePrometheus(path string, s *Summary) error {
	return prometheus.WriteToTextfile(path, Registry(s))
}
