// Package cmd implements the hitreq CLI commands using Cobra.
//
// Available commands:
//   - fetch: Send one request and print the response
//   - poll: Repeat a request and summarize status counts and latency
//   - report: Read runs recorded by poll --record
//   - init: Write a starter config file
//   - validate: Check config files without sending anything
//   - version: Show hitreq version information
//
// Transport settings come from the config file, overridden by flags.
package cmd
