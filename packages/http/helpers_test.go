package http

import (
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
)

var testLogger = &log.Logger{Handler: discard.Default, Level: log.DebugLevel}

// roundTripperFunc adapts a function into an agent.
type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// countingAgent records every round trip it is asked to perform.
type countingAgent struct {
	calls atomic.Int32
	fn    roundTripperFunc
}

func (a *countingAgent) RoundTrip(req *http.Request) (*http.Response, error) {
	a.calls.Add(1)
	return a.fn(req)
}

func fakeResponse(req *http.Request, status int, headers map[string]string, body string) *http.Response {
	h := make(http.Header)
	for k, v := range headers {
		h.Set(k, v)
	}
	return &http.Response{
		StatusCode:    status,
		Header:        h,
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

// closeTracker reports whether Close was called on a body.
type closeTracker struct {
	io.Reader
	closed atomic.Bool
	reads  atomic.Int32
}

func (c *closeTracker) Read(p []byte) (int, error) {
	c.reads.Add(1)
	return c.Reader.Read(p)
}

func (c *closeTracker) Close() error {
	c.closed.Store(true)
	return nil
}

func newSocketClient(opts ...ClientOption) *Client {
	base := []ClientOption{WithLogger(testLogger), WithSettings(Settings{StrictSSL: true, Env: noEnv})}
	return NewClient(append(base, opts...)...)
}

func noEnv() []string { return nil }
