// Package config handles configuration loading and management for hitreq.
//
// It provides functionality for:
//   - Loading configuration from .hitreq.json or .hitreq.yaml files
//   - Default configuration values and merging of overrides
//   - Converting a configuration into transport settings and client options
//   - Watching a configuration file for changes
package config
