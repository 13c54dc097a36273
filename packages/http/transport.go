package http

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/abdul-hamid-achik/hitreq/packages/core/env"
	"github.com/apex/log"
)

// Transport issues requests over one I/O substrate. A Client picks its
// Transport once, at construction.
type Transport interface {
	// Dispatch sends req and returns its terminal response.
	Dispatch(ctx context.Context, req *Request) (*Response, error)
	// Platform tags the responses this transport produces.
	Platform() Platform
}

// Configurable is implemented by transports whose settings can be rebound
// after construction.
type Configurable interface {
	Configure(Settings)
	Settings() Settings
}

// Settings is the configuration a transport owns. Requests may override
// StrictSSL and Proxy individually.
type Settings struct {
	// StrictSSL enables TLS certificate verification.
	StrictSSL bool
	// Proxy is the default explicit proxy URL.
	Proxy string
	// Env supplies HTTP_PROXY, HTTPS_PROXY and NO_PROXY. Nil means the
	// process environment.
	Env env.Source
}

// DefaultSettings verifies certificates and uses no explicit proxy.
func DefaultSettings() Settings {
	return Settings{StrictSSL: true}
}

// settingsHolder stores Settings for concurrent readers.
type settingsHolder struct {
	v atomic.Pointer[Settings]
}

func (h *settingsHolder) Configure(s Settings) {
	h.v.Store(&s)
}

func (h *settingsHolder) Settings() Settings {
	if s := h.v.Load(); s != nil {
		return *s
	}
	return DefaultSettings()
}

func (h *settingsHolder) strictSSL(req *Request) bool {
	if req.StrictSSL != nil {
		return *req.StrictSSL
	}
	return h.Settings().StrictSSL
}

func loggerOrDefault(logger log.Interface) log.Interface {
	if logger == nil {
		return log.Log
	}
	return logger
}

// wait suspends for the pre-send delay. Cancellation requested before or
// during the delay fails the dispatch before any I/O has started.
func wait(ctx context.Context, token *Token, d time.Duration) error {
	if token.IsCancellationRequested() {
		return newError(KindCancelled, "delay", nil)
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-token.Done():
		return newError(KindCancelled, "delay", nil)
	case <-ctx.Done():
		return classify("delay", ctx, ctx.Err())
	}
}

type roundTripOutcome struct {
	resp *http.Response
	err  error
}

// roundTrip runs do on its own goroutine so a primitive that ignores its
// context still cannot outlive ctx. A reply that arrives after the abort is
// closed.
func roundTrip(ctx context.Context, do func() (*http.Response, error)) (*http.Response, error) {
	done := make(chan roundTripOutcome, 1)
	go func() {
		resp, err := do()
		done <- roundTripOutcome{resp, err}
	}()
	select {
	case out := <-done:
		return out.resp, out.err
	case <-ctx.Done():
		go func() {
			if out := <-done; out.resp != nil {
				out.resp.Body.Close()
			}
		}()
		return nil, ctx.Err()
	}
}
