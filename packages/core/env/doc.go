// Package env handles environment variables for hitreq.
//
// It provides functionality for:
//   - Case-insensitive lookups such as HTTP_PROXY / http_proxy
//   - Loading environment files (.env)
//   - {{variable}} interpolation in URLs, headers and bodies
package env
