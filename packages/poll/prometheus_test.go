package poll

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAndRead(t *testing.T, s *Summary) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "poll.prom")
	require.NoError(t, WritePrometheus(path, s))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestWritePrometheus(t *testing.T) {
	out := writeAndRead(t, &Summary{
		TotalRequests: 4,
		ErrorCount:    1,
		Redirected:    2,
		Bytes:         512,
		P50:           1500 * time.Microsecond,
		Statuses:      []StatusCount{{200, 2}, {404, 1}},
		Errors:        map[string]int64{"timeout": 1},
	})

	assert.Contains(t, out, "# TYPE hitreq_poll_requests_total counter\n")
	assert.Contains(t, out, "hitreq_poll_requests_total 4\n")
	assert.Contains(t, out, "hitreq_poll_requests_failed_total 1\n")
	assert.Contains(t, out, "hitreq_poll_requests_redirected_total 2\n")
	assert.Contains(t, out, "hitreq_poll_received_bytes_total 512\n")
	assert.Contains(t, out, "# TYPE hitreq_poll_request_duration_seconds gauge\n")
	assert.Contains(t, out, `hitreq_poll_request_duration_seconds{stat="p50"} 0.0015`+"\n")
	assert.Contains(t, out, `hitreq_poll_requests_by_status_total{status="404"} 1`+"\n")
	assert.Contains(t, out, `hitreq_poll_requests_by_error_total{kind="timeout"} 1`+"\n")
	assert.Less(t, strings.Index(out, `status="200"`), strings.Index(out, `status="404"`))
}

func TestWritePrometheus_NoErrors(t *testing.T) {
	out := writeAndRead(t, &Summary{})
	assert.NotContains(t, out, "by_error")
	assert.Contains(t, out, "hitreq_poll_requests_total 0\n")
}

func TestWritePrometheus_BadPath(t *testing.T) {
	err := WritePrometheus(filepath.Join(t.TempDir(), "missing", "poll.prom"), &Summary{})
	assert.Error(t, err)
}

func TestRegistry_Gathers(t *testing.T) {
	families, err := Registry(&Summary{Statuses: []StatusCount{{200, 1}}}).Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "hitreq_poll_requests_by_status_total")
	assert.Contains(t, names, "hitreq_poll_requests_per_second")
}
