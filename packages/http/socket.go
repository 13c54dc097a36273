package http

import (
	"context"
	"net/http"

	"github.com/apex/log"
)

// SocketTransport sends each attempt as a single round trip over a
// connection it owns, follows redirects itself within the request's hop
// budget, inflates compressed bodies and reports download progress.
type SocketTransport struct {
	settingsHolder
	logger log.Interface
}

// NewSocketTransport returns a SocketTransport owning settings. A nil
// logger logs to the apex/log default logger.
func NewSocketTransport(settings Settings, logger log.Interface) *SocketTransport {
	t := &SocketTransport{logger: loggerOrDefault(logger)}
	t.Configure(settings)
	return t
}

func (t *SocketTransport) Platform() Platform {
	return PlatformSocket
}

// Dispatch runs the redirect state machine: every attempt either ends the
// chain with a terminal response or yields the derived request of the next
// hop.
func (t *SocketTransport) Dispatch(ctx context.Context, req *Request) (*Response, error) {
	if err := wait(ctx, req.Token, req.Delay); err != nil {
		return nil, err
	}
	for {
		resp, next, err := t.attempt(ctx, req)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return resp, nil
		}
		t.logger.WithFields(log.Fields{
			"from":      req.URL,
			"to":        next.URL,
			"remaining": next.MaxRedirects,
		}).Debug("following redirect")
		req = next
	}
}

func (t *SocketTransport) attempt(ctx context.Context, req *Request) (*Response, *Request, error) {
	actx, release, err := bridge(ctx, req.Token, "dispatch")
	if err != nil {
		return nil, nil, err
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeoutCause(actx, req.Timeout, ErrTimeout)
		unbridge := release
		release = func() {
			cancel()
			unbridge()
		}
	}

	plan := ResolveAgent(req, t.Settings())
	t.logger.WithFields(log.Fields{
		"url":   req.URL,
		"agent": plan.Source.String(),
	}).Debug("resolved agent")
	rt, closeIdle := plan.roundTripper(t.strictSSL(req))
	teardown := func() {
		closeIdle()
		release()
	}

	httpReq, err := req.httpRequest(actx)
	if err != nil {
		teardown()
		return nil, nil, err
	}
	httpResp, err := roundTrip(actx, func() (*http.Response, error) {
		return rt.RoundTrip(httpReq)
	})
	if err != nil {
		err = classify("dispatch", actx, err)
		teardown()
		return nil, nil, err
	}

	next, err := nextHop(req, httpResp.StatusCode, httpResp.Header.Get("Location"))
	if err != nil || next != nil {
		httpResp.Body.Close()
		teardown()
		return nil, next, err
	}
	return newResponse(PlatformSocket, req, httpResp, actx, teardown), nil, nil
}
