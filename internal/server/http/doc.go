// Package httpserver exposes the ledger runtime over a small JSON/HTTP API:
// log management and appends, cacheable section reads, durable reader
// positions, and an SSE follow endpoint with server-side CEL filtering.
//
// Section responses lean on standard HTTP caching: archived sections are
// served immutable, the current section revalidates with ETag/If-None-Match.
package httpserver
