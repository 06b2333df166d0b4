package notification

import (
	"encoding/binary"
	"errors"

	pebblestore "github.com/rzbill/ledger/internal/storage/pebble"
)

// Reader position keys: ns/{ns}/readpos/{log}/{group}

var (
	posSep     = byte('/')
	posPrefix  = []byte("ns/")
	readPosSeg = []byte("/readpos/")
)

func keyReadPosition(namespace, logName, group string) []byte {
	k := make([]byte, 0, len(namespace)+len(logName)+len(group)+16)
	k = append(k, posPrefix...)
	k = append(k, namespace...)
	k = append(k, readPosSeg...)
	k = append(k, logName...)
	k = append(k, posSep)
	k = append(k, group...)
	return k
}

// PositionStore persists reader positions per consumer group. A position is
// just an integer, so this is deliberately tiny; consumers that keep their
// cursor elsewhere never need it.
type PositionStore struct {
	db        *pebblestore.DB
	namespace string
}

// OpenPositionStore returns a PositionStore scoped to a namespace.
func OpenPositionStore(db *pebblestore.DB, namespace string) *PositionStore {
	return &PositionStore{db: db, namespace: namespace}
}

// Commit stores the consumed count for a group idempotently. A commit lower
// than the stored position is ignored: positions never regress.
func (s *PositionStore) Commit(logName, group string, position uint64) error {
	key := keyReadPosition(s.namespace, logName, group)
	cur, err := s.db.Get(key)
	if err == nil && len(cur) >= 8 {
		if position <= binary.BigEndian.Uint64(cur[:8]) {
			return nil
		}
	} else if err != nil && !errors.Is(err, pebblestore.ErrNotFound) {
		return err
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], position)
	return s.db.Set(key, b[:])
}

// Get loads the stored position for a group.
func (s *PositionStore) Get(logName, group string) (uint64, bool) {
	cur, err := s.db.Get(keyReadPosition(s.namespace, logName, group))
	if err != nil || len(cur) < 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(cur[:8]), true
}
