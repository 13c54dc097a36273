package http

import (
	"net/http"
	"testing"

	"github.com/abdul-hamid-achik/hitreq/packages/core/env"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAgent_Precedence(t *testing.T) {
	explicit := roundTripperFunc(func(*http.Request) (*http.Response, error) { return nil, nil })
	proxyEnv := env.FromMap(map[string]string{
		"HTTP_PROXY":  "http://env-http:3128",
		"HTTPS_PROXY": "http://env-https:3128",
	})

	tests := []struct {
		name       string
		url        string
		agent      http.RoundTripper
		reqProxy   string
		settings   Settings
		wantSource AgentSource
		wantProxy  string
	}{
		{
			name:       "agent beats everything",
			url:        "https://api.example.com",
			agent:      explicit,
			reqProxy:   "http://req-proxy:1",
			settings:   Settings{Proxy: "http://settings-proxy:1", Env: proxyEnv},
			wantSource: AgentExplicit,
		},
		{
			name:       "request proxy beats settings proxy",
			url:        "https://api.example.com",
			reqProxy:   "http://req-proxy:1",
			settings:   Settings{Proxy: "http://settings-proxy:1", Env: proxyEnv},
			wantSource: AgentProxyOption,
			wantProxy:  "http://req-proxy:1",
		},
		{
			name:       "settings proxy beats environment",
			url:        "https://api.example.com",
			settings:   Settings{Proxy: "https://settings-proxy:1", Env: proxyEnv},
			wantSource: AgentProxyOption,
			wantProxy:  "https://settings-proxy:1",
		},
		{
			name:       "malformed proxy option yields no agent",
			url:        "https://api.example.com",
			reqProxy:   "socks5://proxy:1080",
			settings:   Settings{Env: proxyEnv},
			wantSource: AgentNone,
		},
		{
			name:       "https destination uses HTTPS_PROXY",
			url:        "https://api.example.com",
			settings:   Settings{Env: proxyEnv},
			wantSource: AgentEnvironment,
			wantProxy:  "http://env-https:3128",
		},
		{
			name:       "http destination uses HTTP_PROXY",
			url:        "http://api.example.com",
			settings:   Settings{Env: proxyEnv},
			wantSource: AgentEnvironment,
			wantProxy:  "http://env-http:3128",
		},
		{
			name:       "https falls back to HTTP_PROXY",
			url:        "https://api.example.com",
			settings:   Settings{Env: env.FromMap(map[string]string{"http_proxy": "http://lower:3128"})},
			wantSource: AgentEnvironment,
			wantProxy:  "http://lower:3128",
		},
		{
			name:       "no proxy anywhere",
			url:        "https://api.example.com",
			settings:   Settings{Env: noEnv},
			wantSource: AgentNone,
		},
		{
			name: "NO_PROXY excludes the destination",
			url:  "https://api.example.com",
			settings: Settings{Env: env.FromMap(map[string]string{
				"HTTPS_PROXY": "http://env-https:3128",
				"NO_PROXY":    ".example.com",
			})},
			wantSource: AgentNone,
		},
		{
			name:       "localhost bypasses the environment proxy",
			url:        "http://localhost:8080",
			settings:   Settings{Env: proxyEnv},
			wantSource: AgentNone,
		},
		{
			name:       "loopback IP bypasses the environment proxy",
			url:        "http://127.0.0.1:8080",
			settings:   Settings{Env: proxyEnv},
			wantSource: AgentNone,
		},
		{
			name:       "proxy option still applies to loopback",
			url:        "http://127.0.0.1:8080",
			settings:   Settings{Proxy: "http://settings-proxy:1", Env: proxyEnv},
			wantSource: AgentProxyOption,
			wantProxy:  "http://settings-proxy:1",
		},
		{
			name:       "malformed environment proxy yields no agent",
			url:        "https://api.example.com",
			settings:   Settings{Env: env.FromMap(map[string]string{"HTTPS_PROXY": "env-https:3128"})},
			wantSource: AgentNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := NewRequest("GET", tt.url)
			req.Agent = tt.agent
			req.Proxy = tt.reqProxy

			plan := ResolveAgent(req, tt.settings)
			assert.Equal(t, tt.wantSource, plan.Source, plan.Source.String())
			if tt.wantProxy == "" {
				assert.Nil(t, plan.ProxyURL)
			} else {
				require.NotNil(t, plan.ProxyURL)
				assert.Equal(t, tt.wantProxy, plan.ProxyURL.String())
			}
		})
	}
}

func TestAgentPlan_RoundTripper(t *testing.T) {
	explicit := roundTripperFunc(func(*http.Request) (*http.Response, error) { return nil, nil })
	rt, teardown := AgentPlan{Source: AgentExplicit, Agent: explicit}.roundTripper(true)
	assert.NotNil(t, rt)
	teardown()

	rt, teardown = AgentPlan{}.roundTripper(false)
	defer teardown()
	transport, ok := rt.(*http.Transport)
	require.True(t, ok)
	assert.True(t, transport.DisableKeepAlives)
	assert.True(t, transport.DisableCompression)
	require.NotNil(t, transport.TLSClientConfig)
	assert.True(t, transport.TLSClientConfig.InsecureSkipVerify)
	assert.Nil(t, transport.Proxy)
}

func TestAgentSource_String(t *testing.T) {
	assert.Equal(t, "none", AgentNone.String())
	assert.Equal(t, "explicit", AgentExplicit.String())
	assert.Equal(t, "proxy-option", AgentProxyOption.String())
	assert.Equal(t, "environment", AgentEnvironment.String())
}
