package sequenced

import (
	"context"
	"encoding/binary"
	"errors"
	"hash/fnv"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"

	pebblestore "github.com/rzbill/ledger/internal/storage/pebble"
)

const lockStripes = 64

// Store persists sequenced items for one namespace.
type Store struct {
	db        *pebblestore.DB
	namespace string

	// Per-sequence striped locks serialize the read-check-write of the
	// conditional insert and the max+1 computation of InsertNext.
	locks [lockStripes]sync.Mutex

	// MaxPayloadBytes bounds item data size; zero disables the check.
	MaxPayloadBytes int
}

// OpenStore returns a Store over db scoped to the given namespace.
func OpenStore(db *pebblestore.DB, namespace string) *Store {
	return &Store{db: db, namespace: namespace}
}

// Namespace returns the namespace this store is scoped to.
func (s *Store) Namespace() string { return s.namespace }

func (s *Store) lockFor(id uuid.UUID) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write(id[:])
	return &s.locks[h.Sum32()%lockStripes]
}

// Insert writes item at its position if and only if the slot is unassigned.
// Returns ErrPositionTaken when another writer holds the slot, even for an
// identical payload.
func (s *Store) Insert(ctx context.Context, item Item) error {
	if s.MaxPayloadBytes > 0 && len(item.Data) > s.MaxPayloadBytes {
		return ErrPayloadTooLarge
	}
	mu := s.lockFor(item.SequenceID)
	mu.Lock()
	defer mu.Unlock()

	key := KeyItem(s.namespace, item.SequenceID, item.Position)
	taken, err := s.db.Has(key)
	if err != nil {
		return err
	}
	if taken {
		return ErrPositionTaken
	}
	return s.commitItem(ctx, key, item)
}

// InsertNext writes a new item at max(existing position)+1, atomically with
// the position computation. The assigned position is returned. All writers of
// the same sequence are serialized, which is the point: the resulting stream
// has no gaps, not even transient ones.
func (s *Store) InsertNext(ctx context.Context, sequenceID uuid.UUID, topic string, data []byte) (uint64, error) {
	if s.MaxPayloadBytes > 0 && len(data) > s.MaxPayloadBytes {
		return 0, ErrPayloadTooLarge
	}
	mu := s.lockFor(sequenceID)
	mu.Lock()
	defer mu.Unlock()

	pos := uint64(0)
	if last, ok, err := s.lastLocked(sequenceID); err != nil {
		return 0, err
	} else if ok {
		pos = last + 1
	}
	item := Item{SequenceID: sequenceID, Position: pos, Topic: topic, Data: data}
	if err := s.commitItem(ctx, KeyItem(s.namespace, sequenceID, pos), item); err != nil {
		return 0, err
	}
	return pos, nil
}

// commitItem writes the item and the updated sequence metadata in one batch.
// Caller holds the sequence lock.
func (s *Store) commitItem(ctx context.Context, key []byte, item Item) error {
	b := s.db.NewBatch()
	defer b.Close()

	if err := b.Set(key, EncodeRecord(item.Topic, item.Data), nil); err != nil {
		return err
	}

	metaKey := KeySeqMeta(s.namespace, item.SequenceID)
	last, ok, err := s.readMeta(metaKey)
	if err != nil {
		return err
	}
	if !ok || item.Position > last {
		var meta [8]byte
		binary.BigEndian.PutUint64(meta[:], item.Position)
		if err := b.Set(metaKey, meta[:], nil); err != nil {
			return err
		}
	}
	return s.db.CommitBatch(ctx, b)
}

func (s *Store) readMeta(metaKey []byte) (uint64, bool, error) {
	meta, err := s.db.Get(metaKey)
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if len(meta) < 8 {
		return 0, false, nil
	}
	return binary.BigEndian.Uint64(meta[:8]), true, nil
}

// Get returns the item at pos, or ok=false if the slot is unassigned.
func (s *Store) Get(ctx context.Context, sequenceID uuid.UUID, pos uint64) (Item, bool, error) {
	val, err := s.db.Get(KeyItem(s.namespace, sequenceID, pos))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return Item{}, false, nil
		}
		return Item{}, false, err
	}
	topic, data, ok := DecodeRecord(val)
	if !ok {
		return Item{}, false, errors.New("sequenced: corrupt record")
	}
	return Item{SequenceID: sequenceID, Position: pos, Topic: topic, Data: data}, true, nil
}

// ReadRange returns assigned items with positions in [start, stop), ascending.
// Unassigned positions are simply absent from the result; callers that need
// placeholders align by Item.Position.
func (s *Store) ReadRange(ctx context.Context, sequenceID uuid.UUID, start, stop uint64) ([]Item, error) {
	if stop <= start {
		return nil, nil
	}
	low := KeyItem(s.namespace, sequenceID, start)
	hi := KeyItem(s.namespace, sequenceID, stop)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: hi})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var items []Item
	for iter.First(); iter.Valid(); iter.Next() {
		pos := posFromItemKey(iter.Key())
		topic, data, ok := DecodeRecord(iter.Value())
		if !ok {
			continue
		}
		items = append(items, Item{SequenceID: sequenceID, Position: pos, Topic: topic, Data: data})
	}
	return items, nil
}

// Last returns the highest-positioned item of the sequence. The high-water
// mark only ever advances, so no lock is needed on the read path.
func (s *Store) Last(ctx context.Context, sequenceID uuid.UUID) (Item, bool, error) {
	last, ok, err := s.readMeta(KeySeqMeta(s.namespace, sequenceID))
	if err != nil || !ok {
		return Item{}, false, err
	}
	return s.Get(ctx, sequenceID, last)
}

// LastPosition returns the highest assigned position of the sequence.
func (s *Store) LastPosition(ctx context.Context, sequenceID uuid.UUID) (uint64, bool, error) {
	return s.readMeta(KeySeqMeta(s.namespace, sequenceID))
}

// lastLocked reads the sequence high-water mark; caller holds the lock.
func (s *Store) lastLocked(sequenceID uuid.UUID) (uint64, bool, error) {
	return s.readMeta(KeySeqMeta(s.namespace, sequenceID))
}
