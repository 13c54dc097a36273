package http

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"net/http/cookiejar"
	neturl "net/url"
	"sync"
	"time"

	"github.com/apex/log"
	"golang.org/x/net/publicsuffix"
)

const (
	// DefaultMaxIdleConns is the maximum number of idle connections in the engine pool
	DefaultMaxIdleConns = 100
	// DefaultIdleConnTimeout is how long idle connections stay in the engine pool
	DefaultIdleConnTimeout = 90 * time.Second
	// fetchRedirectLimit mirrors the engine-side cap of the fetch standard
	fetchRedirectLimit = 20
)

// FetchTransport hands each request to a buffered fetch-like engine. The
// engine follows redirects on its own; progress is never reported.
type FetchTransport struct {
	settingsHolder
	logger log.Interface

	mu     sync.Mutex
	engine *http.Transport
	jar    http.CookieJar
}

// NewFetchTransport returns a FetchTransport owning settings and a cookie
// jar shared by every request whose credentials mode is not "omit".
func NewFetchTransport(settings Settings, logger log.Interface) *FetchTransport {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	t := &FetchTransport{logger: loggerOrDefault(logger), jar: jar}
	t.Configure(settings)
	return t
}

// Configure rebinds the settings and rebuilds the engine's connection pool.
func (t *FetchTransport) Configure(s Settings) {
	t.settingsHolder.Configure(s)
	engine := &http.Transport{
		Proxy:               proxyFunc(s, ""),
		MaxIdleConns:        DefaultMaxIdleConns,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		TLSHandshakeTimeout: DefaultTLSHandshakeTimeout,
	}
	if !s.StrictSSL {
		engine.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	t.mu.Lock()
	old := t.engine
	t.engine = engine
	t.mu.Unlock()
	if old != nil {
		old.CloseIdleConnections()
	}
}

func (t *FetchTransport) Platform() Platform {
	return PlatformFetch
}

// client assembles the per-request view of the engine: the redirect mode
// and the cookie jar depend on the request.
func (t *FetchTransport) client(req *Request) *http.Client {
	t.mu.Lock()
	engine := t.engine
	t.mu.Unlock()

	settings := t.Settings()
	var rt http.RoundTripper = engine
	if req.Agent != nil {
		rt = req.Agent
	} else {
		ownTLS := req.StrictSSL != nil && *req.StrictSSL != settings.StrictSSL
		ownProxy := req.Proxy != "" && req.Proxy != settings.Proxy
		if ownTLS || ownProxy {
			clone := engine.Clone()
			clone.DisableKeepAlives = true
			if ownTLS {
				clone.TLSClientConfig = &tls.Config{InsecureSkipVerify: !*req.StrictSSL}
			}
			if ownProxy {
				clone.Proxy = proxyFunc(settings, req.Proxy)
			}
			rt = clone
		}
	}

	c := &http.Client{Transport: rt}
	if req.Credentials != CredentialsOmit {
		c.Jar = t.jar
	}
	if req.MaxRedirects > 0 {
		c.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
			if len(via) >= fetchRedirectLimit {
				return errors.New("redirect limit exceeded")
			}
			return nil
		}
	} else {
		c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return c
}

// Dispatch races the engine against the request timeout. The loser is
// aborted: a late reply is discarded, an expired timer fails the dispatch
// with the timeout kind.
func (t *FetchTransport) Dispatch(ctx context.Context, req *Request) (*Response, error) {
	if err := wait(ctx, req.Token, req.Delay); err != nil {
		return nil, err
	}
	actx, release, err := bridge(ctx, req.Token, "fetch")
	if err != nil {
		return nil, err
	}
	actx, abort := context.WithCancelCause(actx)
	unbridge := release
	release = func() {
		abort(context.Canceled)
		unbridge()
	}

	httpReq, err := req.httpRequest(actx)
	if err != nil {
		release()
		return nil, err
	}
	client := t.client(req)

	var timeout <-chan time.Time
	if req.Timeout > 0 {
		timer := time.NewTimer(req.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	done := make(chan roundTripOutcome, 1)
	go func() {
		resp, err := client.Do(httpReq)
		done <- roundTripOutcome{resp, err}
	}()
	discard := func() {
		go func() {
			if out := <-done; out.resp != nil {
				out.resp.Body.Close()
			}
		}()
	}

	select {
	case out := <-done:
		if out.err != nil {
			err := classify("fetch", actx, unwrapURLError(out.err))
			release()
			return nil, err
		}
		resp := newResponse(PlatformFetch, req, out.resp, actx, release)
		if final := out.resp.Request; final != nil && final.URL.String() != httpReq.URL.String() {
			resp.Redirected = true
		}
		t.logger.WithFields(log.Fields{
			"url":        resp.URL,
			"redirected": resp.Redirected,
		}).Debug("fetch resolved")
		return resp, nil
	case <-timeout:
		abort(ErrTimeout)
		discard()
		release()
		return nil, newError(KindTimeout, "fetch", nil)
	case <-actx.Done():
		err := classify("fetch", actx, actx.Err())
		discard()
		release()
		return nil, err
	}
}

// proxyFunc resolves the engine's proxy per outgoing request (redirect hops
// included) with the same precedence as the socket transport, reading the
// environment from settings rather than the process.
func proxyFunc(settings Settings, override string) func(*http.Request) (*neturl.URL, error) {
	return func(r *http.Request) (*neturl.URL, error) {
		plan := ResolveAgent(&Request{URL: r.URL.String(), Proxy: override}, settings)
		return plan.ProxyURL, nil
	}
}

// unwrapURLError strips the *url.Error the engine wraps around failures.
func unwrapURLError(err error) error {
	var uerr *neturl.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}
