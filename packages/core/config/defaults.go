package config

const (
	TransportSocket = "socket"
	TransportFetch  = "fetch"

	// DefaultMaxRedirects mirrors the client's hop budget
	DefaultMaxRedirects = 5
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Transport:    TransportSocket,
		Timeout:      30000, // 30 seconds
		Delay:        0,
		MaxRedirects: IntPtr(DefaultMaxRedirects),
		StrictSSL:    BoolPtr(true),
		Proxy:        "",
		Credentials:  "same-origin",
		Headers:      nil,
		Rate:         0,
		Burst:        1,
		Verbose:      BoolPtr(false),
		NoColor:      BoolPtr(false),
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.Transport == defaults.Transport &&
		c.Timeout == defaults.Timeout &&
		c.Delay == defaults.Delay &&
		c.GetMaxRedirects() == defaults.GetMaxRedirects() &&
		c.GetStrictSSL() == defaults.GetStrictSSL() &&
		c.Proxy == defaults.Proxy &&
		c.Credentials == defaults.Credentials &&
		len(c.Headers) == 0 &&
		c.Rate == defaults.Rate &&
		c.Burst == defaults.Burst &&
		c.EnvFile == defaults.EnvFile &&
		c.GetVerbose() == defaults.GetVerbose() &&
		c.GetNoColor() == defaults.GetNoColor()
}
