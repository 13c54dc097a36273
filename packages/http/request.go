package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"
)

const (
	// DefaultMaxRedirects is the hop budget of a new request
	DefaultMaxRedirects = 5
)

// CredentialsMode controls cookie handling on the fetch transport.
type CredentialsMode string

const (
	CredentialsOmit       CredentialsMode = "omit"
	CredentialsSameOrigin CredentialsMode = "same-origin"
	CredentialsInclude    CredentialsMode = "include"
)

// Request describes one logical request. It must not be modified once it
// has been handed to a Client; redirects derive copies instead.
type Request struct {
	URL          string
	Method       string
	Headers      *Headers
	Body         *Payload
	Timeout      time.Duration
	Delay        time.Duration
	MaxRedirects int
	Credentials  CredentialsMode
	User         string
	Password     string
	// StrictSSL overrides the transport setting when non-nil.
	StrictSSL *bool
	// Proxy is an explicit proxy URL; it loses to Agent.
	Proxy string
	// Agent, when set, performs the round trip instead of a per-dispatch
	// transport. It wins over every proxy setting.
	Agent http.RoundTripper
	Token *Token

	redirected bool
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method:       method,
		URL:          requestURL,
		Headers:      NewHeaders(),
		MaxRedirects: DefaultMaxRedirects,
		Credentials:  CredentialsSameOrigin,
	}
}

func (r *Request) SetHeader(key, value string) *Request {
	if r.Headers == nil {
		r.Headers = NewHeaders()
	}
	_ = r.Headers.Set(key, value)
	return r
}

func (r *Request) SetBody(body *Payload) *Request {
	r.Body = body
	return r
}

func (r *Request) SetTimeout(d time.Duration) *Request {
	r.Timeout = d
	return r
}

func (r *Request) SetDelay(d time.Duration) *Request {
	r.Delay = d
	return r
}

func (r *Request) SetMaxRedirects(n int) *Request {
	r.MaxRedirects = n
	return r
}

func (r *Request) SetBasicAuth(user, password string) *Request {
	r.User = user
	r.Password = password
	return r
}

func (r *Request) SetToken(token *Token) *Request {
	r.Token = token
	return r
}

// Redirected reports whether the request was derived from a redirect.
func (r *Request) Redirected() bool {
	return r.redirected
}

// clone returns a shallow copy with its own header multimap.
func (r *Request) clone() *Request {
	c := *r
	c.Headers = r.Headers.Clone()
	return &c
}

// derive builds the request for the next hop of a redirect chain. The
// receiver is left untouched.
func (r *Request) derive(target string) *Request {
	next := r.clone()
	next.URL = target
	next.MaxRedirects = r.MaxRedirects - 1
	next.Delay = 0
	next.redirected = true
	if !r.Body.Replayable() {
		next.Body = nil
		next.Headers.Del("content-length")
	}
	if !sameHost(r.URL, target) {
		next.Headers.Del("authorization")
		next.Headers.Del("cookie")
	}
	return next
}

func sameHost(a, b string) bool {
	au, err := neturl.Parse(a)
	if err != nil {
		return false
	}
	bu, err := neturl.Parse(b)
	if err != nil {
		return false
	}
	return strings.EqualFold(au.Host, bu.Host)
}

// normalize validates the request and fills defaults. It returns a copy so
// the caller's value is never changed by dispatch.
func (r *Request) normalize() (*Request, error) {
	if r == nil {
		return nil, errorf(KindInvalidArgument, "normalize request", "nil request")
	}
	if err := ValidateURL(r.URL); err != nil {
		return nil, newError(KindInvalidArgument, "normalize request", err)
	}
	if r.MaxRedirects < 0 {
		return nil, errorf(KindInvalidArgument, "normalize request", "negative redirect budget %d", r.MaxRedirects)
	}
	if r.Timeout < 0 || r.Delay < 0 {
		return nil, errorf(KindInvalidArgument, "normalize request", "negative timeout or delay")
	}
	n := r.clone()
	n.Method = strings.ToUpper(strings.TrimSpace(r.Method))
	if n.Method == "" {
		n.Method = http.MethodGet
	}
	switch n.Credentials {
	case "":
		n.Credentials = CredentialsSameOrigin
	case CredentialsOmit, CredentialsSameOrigin, CredentialsInclude:
	default:
		return nil, errorf(KindInvalidArgument, "normalize request", "unknown credentials mode %q", n.Credentials)
	}
	if ct := n.Body.ContentType(); ct != "" && !n.Headers.Has("content-type") {
		_ = n.Headers.Set("content-type", ct)
	}
	if n.User != "" && n.Password != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(n.User + ":" + n.Password))
		_ = n.Headers.Set("authorization", "Basic "+creds)
	}
	return n, nil
}

// httpRequest builds the native request for one attempt.
func (r *Request) httpRequest(ctx context.Context) (*http.Request, error) {
	body, length := r.Body.open()
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, newError(KindInvalidArgument, "build request", err)
	}
	req.Header = r.Headers.HTTPHeader()
	if host := r.Headers.Get("host"); host != "" {
		req.Host = host
	}
	if length >= 0 {
		req.ContentLength = length
	}
	if r.Body.Replayable() && r.Body != nil {
		data := r.Body.data
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		}
	}
	return req, nil
}

// ValidateURL checks that a URL is well-formed and uses an allowed scheme
func ValidateURL(rawURL string) error {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s (only http and https are allowed)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	if u.User != nil {
		return fmt.Errorf("URL must not embed credentials; use user and password")
	}
	return nil
}

// Options is the declarative form of a request, as found in config files
// and CLI flags. Durations are in milliseconds.
type Options struct {
	URL             string            `json:"url" yaml:"url"`
	Method          string            `json:"method,omitempty" yaml:"method,omitempty"`
	Headers         any               `json:"headers,omitempty" yaml:"headers,omitempty"`
	Timeout         int               `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Delay           int               `json:"delay,omitempty" yaml:"delay,omitempty"`
	StrictSSL       *bool             `json:"strictSSL,omitempty" yaml:"strictSSL,omitempty"`
	FollowRedirects *int              `json:"followRedirects,omitempty" yaml:"followRedirects,omitempty"`
	Credentials     CredentialsMode   `json:"credentials,omitempty" yaml:"credentials,omitempty"`
	User            string            `json:"user,omitempty" yaml:"user,omitempty"`
	Password        string            `json:"password,omitempty" yaml:"password,omitempty"`
	Proxy           string            `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	Payload         any               `json:"-" yaml:"-"`
	Agent           http.RoundTripper `json:"-" yaml:"-"`
	Token           *Token            `json:"-" yaml:"-"`
}

// NewRequestFromOptions turns Options into a Request. Payload may be a
// []byte, a string, an io.Reader, url.Values or a *Payload.
func NewRequestFromOptions(o Options) (*Request, error) {
	headers, err := NormalizeHeaders(o.Headers)
	if err != nil {
		return nil, err
	}
	if o.Timeout < 0 || o.Delay < 0 {
		return nil, errorf(KindInvalidArgument, "request options", "negative timeout or delay")
	}
	r := NewRequest(o.Method, o.URL)
	r.Headers = headers
	r.Timeout = time.Duration(o.Timeout) * time.Millisecond
	r.Delay = time.Duration(o.Delay) * time.Millisecond
	r.StrictSSL = o.StrictSSL
	if o.FollowRedirects != nil {
		r.MaxRedirects = *o.FollowRedirects
	}
	if o.Credentials != "" {
		r.Credentials = o.Credentials
	}
	r.User = o.User
	r.Password = o.Password
	r.Proxy = o.Proxy
	r.Agent = o.Agent
	r.Token = o.Token

	switch p := o.Payload.(type) {
	case nil:
	case *Payload:
		r.Body = p
	case []byte:
		r.Body = BytesPayload(p, "")
	case string:
		r.Body = StringPayload(p, "")
	case neturl.Values:
		r.Body = FormPayload(p)
	case io.Reader:
		r.Body = StreamPayload(p, "")
	default:
		return nil, errorf(KindInvalidArgument, "request options", "unsupported payload %T", o.Payload)
	}
	return r.normalize()
}
