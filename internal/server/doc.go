// Package server hosts the Fiber HTTP service, request middleware chain, and
// the operation resolver that maps the desktop shell's custom scheme
// (`<scheme>://image?url=`) onto a handler key. It also builds the shared
// upstream HTTP client with retry/backoff. Diagnostics routes live under
// /-/ and are attached by the routes subpackage; keep exports narrow and
// accept explicit dependencies.
package server
