package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

// Config represents the hitreq configuration
type Config struct {
	Transport    string            `json:"transport,omitempty" yaml:"transport,omitempty"` // socket or fetch
	Timeout      int               `json:"timeout,omitempty" yaml:"timeout,omitempty"`     // milliseconds
	Delay        int               `json:"delay,omitempty" yaml:"delay,omitempty"`         // milliseconds
	MaxRedirects *int              `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty"`
	StrictSSL    *bool             `json:"strictSSL,omitempty" yaml:"strictSSL,omitempty"`
	Proxy        string            `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	Credentials  string            `json:"credentials,omitempty" yaml:"credentials,omitempty"`
	Headers      map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"` // Default headers for all requests
	Rate         float64           `json:"rate,omitempty" yaml:"rate,omitempty"`       // requests per second, 0 = unlimited
	Burst        int               `json:"burst,omitempty" yaml:"burst,omitempty"`
	EnvFile      string            `json:"envFile,omitempty" yaml:"envFile,omitempty"`
	Verbose      *bool             `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	NoColor      *bool             `json:"noColor,omitempty" yaml:"noColor,omitempty"`
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

// IntPtr returns a pointer to n
func IntPtr(n int) *int {
	return &n
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetStrictSSL returns the certificate verification setting, defaulting to true
func (c *Config) GetStrictSSL() bool {
	return getBool(c.StrictSSL, true)
}

// GetMaxRedirects returns the hop budget, defaulting to DefaultMaxRedirects
func (c *Config) GetMaxRedirects() int {
	if c.MaxRedirects == nil {
		return DefaultMaxRedirects
	}
	return *c.MaxRedirects
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// Validate checks enumerated and numeric fields
func (c *Config) Validate() error {
	switch c.Transport {
	case "", TransportSocket, TransportFetch:
	default:
		return fmt.Errorf("unknown transport %q (expected %s or %s)", c.Transport, TransportSocket, TransportFetch)
	}
	switch c.Credentials {
	case "", "omit", "same-origin", "include":
	default:
		return fmt.Errorf("unknown credentials mode %q", c.Credentials)
	}
	if c.Timeout < 0 || c.Delay < 0 {
		return fmt.Errorf("timeout and delay must not be negative")
	}
	if c.MaxRedirects != nil && *c.MaxRedirects < 0 {
		return fmt.Errorf("maxRedirects must not be negative")
	}
	if c.Rate < 0 || c.Burst < 0 {
		return fmt.Errorf("rate and burst must not be negative")
	}
	return nil
}

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	".hitreq.json",
	"hitreq.json",
	".hitreq.yaml",
	".hitreq.yml",
	".hitreqrc",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	// Search for config file in current directory
	return FindAndLoadConfig(".")
}

// FindConfigFile returns the first of ConfigFilenames present in dir, or ""
func FindConfigFile(dir string) string {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}
	return ""
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	if configPath := FindConfigFile(dir); configPath != "" {
		return loadConfigFromFile(configPath)
	}

	// Return defaults if no config file found
	return DefaultConfig(), nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// loadConfigFromFile loads configuration from a specific file. Files ending
// in .yaml or .yml are decoded as YAML, everything else as JSON with
// comments and trailing commas allowed.
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = unmarshalHuJSON(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return config, nil
}

func unmarshalHuJSON(data []byte, v any) error {
	value, err := hujson.Parse(data)
	if err != nil {
		return err
	}
	value.Standardize()
	return json.Unmarshal(value.Pack(), v)
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.Transport != "" {
		result.Transport = other.Transport
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.Delay > 0 {
		result.Delay = other.Delay
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.Credentials != "" {
		result.Credentials = other.Credentials
	}
	if other.Rate > 0 {
		result.Rate = other.Rate
	}
	if other.Burst > 0 {
		result.Burst = other.Burst
	}
	if other.EnvFile != "" {
		result.EnvFile = other.EnvFile
	}

	// Pointer fields - only override if explicitly set in other config
	if other.MaxRedirects != nil {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.StrictSSL != nil {
		result.StrictSSL = other.StrictSSL
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	// Merge headers without touching either input
	if len(c.Headers) > 0 || len(other.Headers) > 0 {
		result.Headers = make(map[string]string, len(c.Headers)+len(other.Headers))
		for k, v := range c.Headers {
			result.Headers[k] = v
		}
		for k, v := range other.Headers {
			result.Headers[k] = v
		}
	}

	return &result
}

// SaveConfig saves the configuration to a file, as YAML when the path ends
// in .yaml or .yml
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
