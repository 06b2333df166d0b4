package sequenced

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - ns/{ns}/seq/{id16}/m
// - ns/{ns}/seq/{id16}/i/{pos_be8}

var (
	nsPrefix   = []byte("ns/")
	seqSeg     = []byte("/seq/")
	metaSuffix = []byte("/m")
	itemSeg    = []byte("/i/")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// KeySeqMeta builds the sequence metadata key.
func KeySeqMeta(namespace string, id uuid.UUID) []byte {
	k := make([]byte, 0, len(namespace)+32)
	k = append(k, nsPrefix...)
	k = append(k, namespace...)
	k = append(k, seqSeg...)
	k = append(k, id[:]...)
	k = append(k, metaSuffix...)
	return k
}

// KeyItem builds the item key with a big-endian position for proper ordering.
func KeyItem(namespace string, id uuid.UUID, pos uint64) []byte {
	k := make([]byte, 0, len(namespace)+40)
	k = append(k, nsPrefix...)
	k = append(k, namespace...)
	k = append(k, seqSeg...)
	k = append(k, id[:]...)
	k = append(k, itemSeg...)
	k = appendBE8(k, pos)
	return k
}

// KeyItemPrefix returns the common prefix of all item keys for a sequence.
func KeyItemPrefix(namespace string, id uuid.UUID) []byte {
	k := make([]byte, 0, len(namespace)+32)
	k = append(k, nsPrefix...)
	k = append(k, namespace...)
	k = append(k, seqSeg...)
	k = append(k, id[:]...)
	k = append(k, itemSeg...)
	return k
}

// posFromItemKey extracts the big-endian position from an item key.
func posFromItemKey(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[len(key)-8:])
}
