// Package poll repeats one request against an endpoint and aggregates the
// outcomes: latency percentiles, status breakdown and pass/fail thresholds.
package poll

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config holds the limits of a polling run. A run stops at whichever of
// Count and Duration is reached first; zero disables a limit, but at least
// one must be set.
type Config struct {
	Count       int
	Duration    time.Duration
	Concurrency int        // requests in flight at once
	Thresholds  Thresholds // pass/fail thresholds
}

// Thresholds defines pass/fail criteria for a run
type Thresholds struct {
	P50        time.Duration // 50th percentile latency
	P95        time.Duration // 95th percentile latency
	P99        time.Duration // 99th percentile latency
	MaxLatency time.Duration // maximum allowed latency
	ErrorRate  float64       // maximum error rate (0.0 - 1.0)
	MinRPS     float64       // minimum requests per second
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Count:       10,
		Concurrency: 1,
	}
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if c.Count < 0 {
		return fmt.Errorf("count cannot be negative")
	}
	if c.Duration < 0 {
		return fmt.Errorf("duration cannot be negative")
	}
	if c.Count == 0 && c.Duration == 0 {
		return fmt.Errorf("either count or duration must be set")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}
	return nil
}

var thresholdPattern = regexp.MustCompile(`^(\w+)\s*([<>]=?)\s*(.+)$`)

// ParseThresholds parses a threshold string like "p95<200ms,errors<0.1%"
func ParseThresholds(s string) (Thresholds, error) {
	var t Thresholds

	if s == "" {
		return t, nil
	}

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if err := parseThresholdPart(part, &t); err != nil {
			return t, err
		}
	}

	return t, nil
}

func parseThresholdPart(part string, t *Thresholds) error {
	matches := thresholdPattern.FindStringSubmatch(part)
	if len(matches) != 4 {
		return fmt.Errorf("invalid threshold format: %s", part)
	}

	metric := strings.ToLower(matches[1])
	op := matches[2]
	valueStr := matches[3]

	upper := func(name string, dst *time.Duration) error {
		d, err := time.ParseDuration(valueStr)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %s", name, valueStr)
		}
		if op != "<" && op != "<=" {
			return fmt.Errorf("%s threshold must use < or <=", name)
		}
		*dst = d
		return nil
	}

	switch metric {
	case "p50":
		return upper("p50", &t.P50)
	case "p95":
		return upper("p95", &t.P95)
	case "p99":
		return upper("p99", &t.P99)
	case "max", "maxlatency":
		return upper("max latency", &t.MaxLatency)

	case "errors", "error", "errorrate":
		// Handle percentage format like "0.1%" or decimal like "0.001"
		percent := strings.HasSuffix(valueStr, "%")
		f, err := strconv.ParseFloat(strings.TrimSuffix(valueStr, "%"), 64)
		if err != nil {
			return fmt.Errorf("invalid error rate: %s", valueStr)
		}
		if percent {
			f = f / 100
		}
		if op != "<" && op != "<=" {
			return fmt.Errorf("error rate threshold must use < or <=")
		}
		t.ErrorRate = f

	case "rps", "rate":
		f, err := strconv.ParseFloat(valueStr, 64)
		if err != nil {
			return fmt.Errorf("invalid RPS: %s", valueStr)
		}
		if op != ">" && op != ">=" {
			return fmt.Errorf("RPS threshold must use > or >=")
		}
		t.MinRPS = f

	default:
		return fmt.Errorf("unknown threshold metric: %s", metric)
	}

	return nil
}

// HasThresholds returns true if any thresholds are configured
func (t *Thresholds) HasThresholds() bool {
	return t.P50 > 0 || t.P95 > 0 || t.P99 > 0 || t.MaxLatency > 0 || t.ErrorRate > 0 || t.MinRPS > 0
}

// ThresholdResult holds the result of evaluating a threshold
type ThresholdResult struct {
	Name     string
	Passed   bool
	Expected string
	Actual   string
}
