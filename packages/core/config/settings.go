package config

import (
	"time"

	"github.com/abdul-hamid-achik/hitreq/packages/core/env"
	"github.com/abdul-hamid-achik/hitreq/packages/http"
	"github.com/apex/log"
	"golang.org/x/time/rate"
)

// ToSettings converts the configuration into the settings a transport owns.
// src supplies the proxy environment; nil means the process environment.
func (c *Config) ToSettings(src env.Source) http.Settings {
	return http.Settings{
		StrictSSL: c.GetStrictSSL(),
		Proxy:     c.Proxy,
		Env:       src,
	}
}

// ClientOptions returns the http.Client options described by the
// configuration.
func (c *Config) ClientOptions(src env.Source, logger log.Interface) []http.ClientOption {
	opts := []http.ClientOption{
		http.WithSettings(c.ToSettings(src)),
		http.WithLogger(logger),
	}
	if c.Timeout > 0 {
		opts = append(opts, http.WithTimeout(time.Duration(c.Timeout)*time.Millisecond))
	}
	if len(c.Headers) > 0 {
		opts = append(opts, http.WithDefaultHeaders(c.Headers))
	}
	if c.Rate > 0 {
		burst := c.Burst
		if burst < 1 {
			burst = 1
		}
		opts = append(opts, http.WithRateLimit(rate.Limit(c.Rate), burst))
	}
	if c.Transport == TransportFetch {
		opts = append(opts, http.WithFetchTransport())
	}
	return opts
}

// ApplyTo fills the per-request fields of req that the configuration
// controls and req leaves unset.
func (c *Config) ApplyTo(req *http.Request) {
	if req.Delay == 0 && c.Delay > 0 {
		req.Delay = time.Duration(c.Delay) * time.Millisecond
	}
	if c.MaxRedirects != nil {
		req.MaxRedirects = *c.MaxRedirects
	}
	if c.Credentials != "" {
		req.Credentials = http.CredentialsMode(c.Credentials)
	}
}
