package poll

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Reporter handles output for polling runs
type Reporter struct {
	mu      sync.Mutex // serializes Outcome lines from concurrent observers
	writer  io.Writer
	noColor bool
	verbose bool

	// Colors
	green  *color.Color
	red    *color.Color
	yellow *color.Color
	cyan   *color.Color
	bold   *color.Color
	dim    *color.Color
}

// ReporterOption configures the reporter
type ReporterOption func(*Reporter)

// WithWriter sets the output writer
func WithWriter(w io.Writer) ReporterOption {
	return func(r *Reporter) {
		r.writer = w
	}
}

// WithNoColor disables colored output
func WithNoColor(noColor bool) ReporterOption {
	return func(r *Reporter) {
		r.noColor = noColor
	}
}

// WithVerbose prints every outcome as it arrives
func WithVerbose(verbose bool) ReporterOption {
	return func(r *Reporter) {
		r.verbose = verbose
	}
}

// NewReporter creates a new reporter
func NewReporter(opts ...ReporterOption) *Reporter {
	r := &Reporter{
		writer: os.Stdout,
	}

	for _, opt := range opts {
		opt(r)
	}

	r.green = r.newColor(color.FgGreen)
	r.red = r.newColor(color.FgRed)
	r.yellow = r.newColor(color.FgYellow)
	r.cyan = r.newColor(color.FgCyan)
	r.bold = r.newColor(color.Bold)
	r.dim = r.newColor(color.Faint)

	return r
}

func (r *Reporter) newColor(attr color.Attribute) *color.Color {
	c := color.New(attr)
	if r.noColor {
		c.DisableColor()
	}
	return c
}

// Header prints the run header
func (r *Reporter) Header(version, url, transport string, config *Config) {
	fmt.Fprintln(r.writer)
	r.bold.Fprintf(r.writer, "hitreq poll %s\n", version)
	fmt.Fprintln(r.writer)

	r.cyan.Fprintf(r.writer, "Polling: %s\n", url)

	details := []string{fmt.Sprintf("Transport: %s", transport)}
	if config.Count > 0 {
		details = append(details, fmt.Sprintf("Count: %d", config.Count))
	}
	if config.Duration > 0 {
		details = append(details, fmt.Sprintf("Duration: %s", formatDuration(config.Duration)))
	}
	details = append(details, fmt.Sprintf("Concurrency: %d", config.Concurrency))

	fmt.Fprintf(r.writer, "%s\n", strings.Join(details, " | "))
	fmt.Fprintln(r.writer)
}

// Outcome prints one outcome line when verbose output is enabled
func (r *Reporter) Outcome(o Outcome) {
	if !r.verbose {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dim.Fprintf(r.writer, "#%-5d ", o.Seq)
	switch {
	case o.Err != nil:
		r.red.Fprintf(r.writer, "%-5s", "ERR")
		fmt.Fprintf(r.writer, " %s  %s\n", formatLatency(o.Latency), o.Err)
		return
	case o.Status >= 500:
		r.red.Fprintf(r.writer, "%-5d", o.Status)
	case o.Status >= 400:
		r.yellow.Fprintf(r.writer, "%-5d", o.Status)
	default:
		r.green.Fprintf(r.writer, "%-5d", o.Status)
	}
	fmt.Fprintf(r.writer, " %s  %dB", formatLatency(o.Latency), o.Bytes)
	if o.Redirected {
		r.dim.Fprintf(r.writer, "  (redirected)")
	}
	fmt.Fprintln(r.writer)
}

// Summary prints the final summary
func (r *Reporter) Summary(summary *Summary, thresholdResults []ThresholdResult) {
	fmt.Fprintln(r.writer)
	r.bold.Fprintln(r.writer, "POLL SUMMARY")
	fmt.Fprintln(r.writer, strings.Repeat("─", 40))

	// Duration and totals
	fmt.Fprintf(r.writer, "Duration:   %s\n", formatDuration(summary.Duration))
	fmt.Fprintf(r.writer, "Total:      ")
	r.bold.Fprintf(r.writer, "%s", formatNumber(summary.TotalRequests))
	fmt.Fprintf(r.writer, " requests (%.1f req/s)\n", summary.RPS)

	fmt.Fprintf(r.writer, "Success:    ")
	r.green.Fprintf(r.writer, "%s", formatNumber(summary.SuccessCount))
	fmt.Fprintf(r.writer, " (%.1f%%)\n", summary.SuccessRate*100)

	fmt.Fprintf(r.writer, "Failed:     ")
	if summary.ErrorCount > 0 {
		r.red.Fprintf(r.writer, "%s", formatNumber(summary.ErrorCount))
	} else {
		fmt.Fprintf(r.writer, "%s", formatNumber(summary.ErrorCount))
	}
	fmt.Fprintf(r.writer, " (%.1f%%)\n", summary.ErrorRate*100)

	if summary.TimeoutCount > 0 {
		fmt.Fprintf(r.writer, "Timeouts:   ")
		r.yellow.Fprintf(r.writer, "%s\n", formatNumber(summary.TimeoutCount))
	}
	if summary.Redirected > 0 {
		fmt.Fprintf(r.writer, "Redirected: %s\n", formatNumber(summary.Redirected))
	}
	fmt.Fprintf(r.writer, "Received:   %s bytes\n", formatNumber(summary.Bytes))

	// Latency
	fmt.Fprintln(r.writer)
	r.bold.Fprintln(r.writer, "LATENCY (ms)")
	fmt.Fprintf(r.writer, "  p50: %-6s | p95: %-6s | p99: %-6s | max: %s\n",
		formatLatencyMs(summary.P50),
		formatLatencyMs(summary.P95),
		formatLatencyMs(summary.P99),
		formatLatencyMs(summary.Max))
	fmt.Fprintf(r.writer, "  min: %-6s | mean: %-5s | stddev: %s\n",
		formatLatencyMs(summary.Min),
		formatLatencyMs(summary.Mean),
		formatLatencyMs(summary.StdDev))

	if len(summary.Statuses) > 0 || len(summary.Errors) > 0 {
		fmt.Fprintln(r.writer)
		r.bold.Fprintln(r.writer, "OUTCOMES")
		for _, sc := range summary.Statuses {
			fmt.Fprintf(r.writer, "  %d: %s\n", sc.Status, formatNumber(sc.Count))
		}
		kinds := make([]string, 0, len(summary.Errors))
		for kind := range summary.Errors {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			r.red.Fprintf(r.writer, "  %s: %s\n", kind, formatNumber(summary.Errors[kind]))
		}
	}

	// Thresholds
	if len(thresholdResults) > 0 {
		fmt.Fprintln(r.writer)
		r.bold.Fprintln(r.writer, "THRESHOLDS")
		allPassed := true
		for _, tr := range thresholdResults {
			if tr.Passed {
				r.green.Fprintf(r.writer, "  ✓ ")
			} else {
				r.red.Fprintf(r.writer, "  ✗ ")
				allPassed = false
			}
			fmt.Fprintf(r.writer, "%s %s    (actual: %s)\n", tr.Name, tr.Expected, tr.Actual)
		}

		fmt.Fprintln(r.writer)
		if allPassed {
			r.green.Fprintln(r.writer, "All thresholds passed!")
		} else {
			r.red.Fprintln(r.writer, "Some thresholds failed!")
		}
	}

	fmt.Fprintln(r.writer)
}

// JSONSummary outputs the summary as JSON
func (r *Reporter) JSONSummary(summary *Summary, thresholdResults []ThresholdResult) error {
	statuses := make(map[string]int64, len(summary.Statuses))
	for _, sc := range summary.Statuses {
		statuses[fmt.Sprint(sc.Status)] = sc.Count
	}

	output := map[string]interface{}{
		"duration": summary.Duration.String(),
		"requests": map[string]interface{}{
			"total":      summary.TotalRequests,
			"success":    summary.SuccessCount,
			"failed":     summary.ErrorCount,
			"timeouts":   summary.TimeoutCount,
			"redirected": summary.Redirected,
			"bytes":      summary.Bytes,
		},
		"rates": map[string]interface{}{
			"rps":         summary.RPS,
			"successRate": summary.SuccessRate,
			"errorRate":   summary.ErrorRate,
		},
		"latency": map[string]interface{}{
			"p50":    summary.P50.Milliseconds(),
			"p95":    summary.P95.Milliseconds(),
			"p99":    summary.P99.Milliseconds(),
			"min":    summary.Min.Milliseconds(),
			"max":    summary.Max.Milliseconds(),
			"mean":   summary.Mean.Milliseconds(),
			"stddev": summary.StdDev.Milliseconds(),
		},
		"statuses": statuses,
		"errors":   summary.Errors,
	}

	if len(thresholdResults) > 0 {
		thresholds := make([]map[string]interface{}, len(thresholdResults))
		for i, tr := range thresholdResults {
			thresholds[i] = map[string]interface{}{
				"name":     tr.Name,
				"passed":   tr.Passed,
				"expected": tr.Expected,
				"actual":   tr.Actual,
			}
		}
		output["thresholds"] = thresholds
	}

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

// Error prints an error message
func (r *Reporter) Error(format string, args ...interface{}) {
	r.red.Fprintf(r.writer, "Error: "+format+"\n", args...)
}

// Info prints an info message
func (r *Reporter) Info(format string, args ...interface{}) {
	fmt.Fprintf(r.writer, format+"\n", args...)
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	if seconds == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dm %02ds", minutes, seconds)
}

// formatLatency formats latency for display
func formatLatency(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dμs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// formatLatencyMs formats latency in milliseconds
func formatLatencyMs(d time.Duration) string {
	ms := float64(d.Microseconds()) / 1000
	if ms < 1 {
		return fmt.Sprintf("%.2f", ms)
	}
	if ms < 10 {
		return fmt.Sprintf("%.1f", ms)
	}
	return fmt.Sprintf("%.0f", ms)
}

// formatNumber formats a number with commas
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if n < 1000 {
		return s
	}

	result := make([]byte, 0, len(s)+(len(s)-1)/3)

	start := len(s) % 3
	if start == 0 {
		start = 3
	}

	result = append(result, s[:start]...)
	for i := start; i < len(s); i += 3 {
		result = append(result, ',')
		result = append(result, s[i:i+3]...)
	}

	return string(result)
}
