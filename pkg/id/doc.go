// Package id provides a 128-bit, lexicographically sortable identifier.
//
// # Format
//
// The ID is 16 bytes big-endian: [8 bytes ms_timestamp][8 bytes sequence].
// Byte-wise comparison preserves chronological order, and IDs generated within
// the same millisecond remain strictly increasing by sequence.
//
// Ledger uses these IDs to tag HTTP requests for log correlation and to name
// follow subscribers. They are not positions: log positions come from the
// sequencer and the storage layer.
//
// Usage
//
//	g := id.NewGenerator()
//	requestID := g.Next().String()
package id
