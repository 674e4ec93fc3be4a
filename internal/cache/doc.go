// Package cache defines the disk-backed image store that maps source URLs to
// content-addressed files (sha1 of the URL plus its extension) inside a single
// cache directory. The store exposes stat/read/range-read/write primitives with
// safe semantics (temp file + rename), and the Sweeper keeps the directory
// under a soft byte budget by deleting the least recently accessed files.
// Proxy handlers depend on this package to serve cached bytes or populate the
// cache after an upstream fetch without duplicating filesystem logic.
package cache
