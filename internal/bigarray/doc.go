// Package bigarray implements a virtually unbounded ordered array built from
// fixed-size partitions, with amortized-near-constant append and O(1)
// positional reads.
//
// # Addressing
//
// A BigArray with array size S stores the item at position p in partition
// p/S at local offset p%S. Partition identity is a pure function of position:
// the partition's sequence ID is a UUIDv5 derived from the array ID and the
// partition index. No pointers are stored and no tree is walked to address a
// known position.
//
// # Index tree and apex discovery
//
// Only discovery of the next unused position uses a tree. The tree's branching
// factor equals S. A node at height h >= 2 with index i covers positions
// [i*S^h, (i+1)*S^h); its marker sequence records, at local position j, that
// child j holds data. The root ("apex") sequence records at position k that
// the tree has grown to height k+1. Discovery walks from the apex downward,
// at each node descending into the highest marked child, and finishes by
// reading the high-water mark of one partition: O(log_S(highest)) store reads
// rather than a scan from position zero.
//
// # Concurrency
//
// Marker and data writes all go through the store's conditional insert. Two
// appenders racing for the same slot produce one winner and one
// ErrConcurrency; marker collisions mean the marker is already present and
// are ignored. Under high contention, pair Append with an external sequencer
// (AppendWith) so each writer targets a distinct position up front.
package bigarray
