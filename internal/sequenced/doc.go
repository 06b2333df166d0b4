// Package sequenced implements the sequenced-item store: immutable records
// addressed by (sequence ID, position) and persisted in Pebble.
//
// # Overview
//
// A sequence is an ordered stream of items identified by a UUID. Keys are
// lexicographically ordered for efficient range scans:
//   - ns/{ns}/seq/{id16}/m           (sequence metadata: last assigned position)
//   - ns/{ns}/seq/{id16}/i/{pos_be8} (items)
//
// Records are stored as: varint topicLen | topic | data | crc32c(topic|data).
//
// # Write paths
//
// Two write paths are provided, and every mutation in the system goes through
// one of them:
//
//   - Insert: conditional insert at a caller-supplied position. If the slot is
//     already assigned the write fails with ErrPositionTaken, regardless of
//     content. A slot, once filled, is permanently fixed.
//   - InsertNext: the position is computed as max(existing)+1 atomically with
//     the write, guaranteeing a contiguous sequence at the cost of serializing
//     writers of that sequence.
//
// Uniqueness of (sequence, position) is enforced with striped per-sequence
// locks over the shared Pebble instance. The store is safe for concurrent use
// by any number of goroutines; cross-process deployments front the store with
// the ledger server, which owns the database exclusively.
package sequenced
