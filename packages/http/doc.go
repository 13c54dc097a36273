// Package http provides the HTTP client core of hitreq.
//
// One request/response abstraction spans two transports:
//   - SocketTransport: one round trip per attempt over a connection it owns,
//     an explicit bounded redirect loop, gzip/deflate inflation and
//     download progress events
//   - FetchTransport: a buffered engine that follows redirects itself
//
// Headers are normalized into a case-insensitive ordered multimap, response
// bodies can be read exactly once, and a Token cancels any pending dispatch
// or body read.
package http
