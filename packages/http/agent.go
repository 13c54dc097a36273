package http

import (
	"crypto/tls"
	"net"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitreq/packages/core/env"
	"golang.org/x/net/http/httpproxy"
)

const (
	// DefaultDialTimeout bounds connection establishment
	DefaultDialTimeout = 30 * time.Second
	// DefaultTLSHandshakeTimeout bounds the TLS handshake
	DefaultTLSHandshakeTimeout = 10 * time.Second
)

// AgentSource says where the agent of a dispatch came from.
type AgentSource int

const (
	AgentNone AgentSource = iota
	AgentExplicit
	AgentProxyOption
	AgentEnvironment
)

func (s AgentSource) String() string {
	switch s {
	case AgentExplicit:
		return "explicit"
	case AgentProxyOption:
		return "proxy-option"
	case AgentEnvironment:
		return "environment"
	}
	return "none"
}

// AgentPlan is the outcome of agent resolution for one dispatch.
type AgentPlan struct {
	Source   AgentSource
	Agent    http.RoundTripper
	ProxyURL *neturl.URL
}

// ResolveAgent picks how a request reaches its destination: an explicit
// agent, then an explicit proxy URL (request first, then settings), then the
// HTTPS_PROXY / HTTP_PROXY environment variables. A proxy candidate that is
// not an http(s) URL yields no agent at all. The environment proxy is never
// used for hosts matched by NO_PROXY, nor for localhost and loopback IPs.
func ResolveAgent(req *Request, settings Settings) AgentPlan {
	if req.Agent != nil {
		return AgentPlan{Source: AgentExplicit, Agent: req.Agent}
	}

	dest, err := neturl.Parse(req.URL)
	if err != nil {
		return AgentPlan{}
	}

	candidate := req.Proxy
	if candidate == "" {
		candidate = settings.Proxy
	}
	if candidate != "" {
		u := parseProxyURL(candidate)
		if u == nil {
			return AgentPlan{}
		}
		return AgentPlan{Source: AgentProxyOption, ProxyURL: u}
	}

	candidate = systemProxy(settings.Env, dest.Scheme)
	if parseProxyURL(candidate) == nil {
		return AgentPlan{}
	}
	cfg := &httpproxy.Config{
		HTTPProxy:  candidate,
		HTTPSProxy: candidate,
		NoProxy:    env.FirstFold(settings.Env, "NO_PROXY"),
	}
	u, err := cfg.ProxyFunc()(dest)
	if err != nil || u == nil {
		return AgentPlan{}
	}
	return AgentPlan{Source: AgentEnvironment, ProxyURL: u}
}

func systemProxy(src env.Source, scheme string) string {
	switch scheme {
	case "http":
		return env.FirstFold(src, "HTTP_PROXY")
	case "https":
		return env.FirstFold(src, "HTTPS_PROXY", "HTTP_PROXY")
	}
	return ""
}

func parseProxyURL(raw string) *neturl.URL {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return nil
	}
	u, err := neturl.Parse(raw)
	if err != nil || u.Host == "" {
		return nil
	}
	return u
}

// roundTripper returns the handle that performs the dispatch and a func
// that tears it down. Without an explicit agent every dispatch gets its own
// transport, so no connection outlives the response that used it.
func (p AgentPlan) roundTripper(strictSSL bool) (http.RoundTripper, func()) {
	if p.Agent != nil {
		return p.Agent, func() {}
	}
	dialer := &net.Dialer{Timeout: DefaultDialTimeout}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		DisableKeepAlives:   true,
		DisableCompression:  true,
		TLSHandshakeTimeout: DefaultTLSHandshakeTimeout,
	}
	if !strictSSL {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}
	if p.ProxyURL != nil {
		transport.Proxy = http.ProxyURL(p.ProxyURL)
	}
	return transport, transport.CloseIdleConnections
}
