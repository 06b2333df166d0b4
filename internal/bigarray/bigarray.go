package bigarray

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/google/uuid"

	"github.com/rzbill/ledger/internal/sequenced"
	"github.com/rzbill/ledger/internal/sequencer"
)

var (
	// ErrConcurrency reports that another writer won the slot. Retry with a
	// fresh discovery or a freshly issued position.
	ErrConcurrency = sequenced.ErrPositionTaken

	// ErrInvalidPosition reports a position outside the representable range.
	ErrInvalidPosition = sequenced.ErrInvalidPosition

	// ErrRetriesExhausted reports that a bounded retry loop gave up. The
	// wrapped error is ErrConcurrency; the write did not happen.
	ErrRetriesExhausted = errors.New("bigarray: append retries exhausted")
)

// markerTopic names index-tree marker records. Markers live in node
// sequences, never in partitions, so they are invisible to item reads.
const markerTopic = "bigarray/marker"

// ItemStore is the storage capability the BigArray needs. *sequenced.Store
// satisfies it; the array never branches on the backing implementation.
type ItemStore interface {
	Insert(ctx context.Context, item sequenced.Item) error
	Get(ctx context.Context, sequenceID uuid.UUID, pos uint64) (sequenced.Item, bool, error)
	ReadRange(ctx context.Context, sequenceID uuid.UUID, start, stop uint64) ([]sequenced.Item, error)
	LastPosition(ctx context.Context, sequenceID uuid.UUID) (uint64, bool, error)
}

// Item is a stored array element.
type Item struct {
	Position uint64
	Topic    string
	Data     []byte
}

// BigArray maps an unbounded position space onto fixed-size partitions.
// ArraySize is immutable for the life of the array: changing it would change
// the position-to-partition function and scramble every stored item.
type BigArray struct {
	store     ItemStore
	arrayID   uuid.UUID
	arraySize uint64
	rootID    uuid.UUID
}

// New returns a BigArray over store with the given identity and geometry.
func New(store ItemStore, arrayID uuid.UUID, arraySize uint64) (*BigArray, error) {
	if arraySize < 2 {
		return nil, fmt.Errorf("bigarray: array size %d too small", arraySize)
	}
	return &BigArray{
		store:     store,
		arrayID:   arrayID,
		arraySize: arraySize,
		rootID:    uuid.NewSHA1(arrayID, []byte("apex")),
	}, nil
}

// ArraySize returns the fixed partition capacity.
func (a *BigArray) ArraySize() uint64 { return a.arraySize }

// partitionID derives the sequence ID of partition i.
func (a *BigArray) partitionID(i uint64) uuid.UUID {
	return uuid.NewSHA1(a.arrayID, []byte("partition/"+strconv.FormatUint(i, 10)))
}

// nodeID derives the sequence ID of the index node at (height, index).
func (a *BigArray) nodeID(height int, index uint64) uuid.UUID {
	return uuid.NewSHA1(a.arrayID, []byte("node/"+strconv.Itoa(height)+"/"+strconv.FormatUint(index, 10)))
}

// heightFor returns the tree height needed to cover position p, and the
// widths of each level: widths[h-1] == arraySize^(h-1) for h = 1..height.
func (a *BigArray) heightFor(p uint64) (int, []uint64, error) {
	if p == math.MaxUint64 {
		return 0, nil, ErrInvalidPosition
	}
	widths := []uint64{1}
	capacity := a.arraySize
	h := 1
	for p >= capacity {
		if capacity > math.MaxUint64/a.arraySize {
			return 0, nil, ErrInvalidPosition
		}
		widths = append(widths, capacity)
		capacity *= a.arraySize
		h++
	}
	return h, widths, nil
}

// Get returns the item at position p, or ok=false for an unassigned slot.
func (a *BigArray) Get(ctx context.Context, p uint64) (Item, bool, error) {
	if p == math.MaxUint64 {
		return Item{}, false, ErrInvalidPosition
	}
	it, ok, err := a.store.Get(ctx, a.partitionID(p/a.arraySize), p%a.arraySize)
	if err != nil || !ok {
		return Item{}, false, err
	}
	return Item{Position: p, Topic: it.Topic, Data: it.Data}, true, nil
}

// Slice returns positions [start, stop) with nil placeholders for unassigned
// slots. Each underlying partition is read with one contiguous range scan.
func (a *BigArray) Slice(ctx context.Context, start, stop uint64) ([]*Item, error) {
	if stop <= start {
		return nil, nil
	}
	if stop == math.MaxUint64 {
		return nil, ErrInvalidPosition
	}
	out := make([]*Item, stop-start)
	for first := start; first < stop; {
		part := first / a.arraySize
		partEnd := (part + 1) * a.arraySize
		last := stop
		if partEnd < last {
			last = partEnd
		}
		items, err := a.store.ReadRange(ctx, a.partitionID(part), first%a.arraySize, last-part*a.arraySize)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			global := part*a.arraySize + it.Position
			out[global-start] = &Item{Position: global, Topic: it.Topic, Data: it.Data}
		}
		first = last
	}
	return out, nil
}

// Set assigns position p if and only if it is unassigned. Index-tree markers
// are written first, top-down, so a discovered subtree always had a writer
// with a claim on it; the data write is last and is the single atomic
// decision point. A second Set of a filled slot always fails, even with
// identical content.
func (a *BigArray) Set(ctx context.Context, p uint64, topic string, data []byte) error {
	height, widths, err := a.heightFor(p)
	if err != nil {
		return err
	}

	// Root markers: position k records that the tree reaches height k+1.
	rootLast, ok, err := a.store.LastPosition(ctx, a.rootID)
	if err != nil {
		return err
	}
	from := uint64(0)
	if ok {
		from = rootLast + 1
	}
	for k := from; k < uint64(height); k++ {
		if err := a.insertMarker(ctx, a.rootID, k); err != nil {
			return err
		}
	}

	// Internal node markers, top-down. At height h the node index is
	// p/S^h and the child slot is (p/S^(h-1)) % S.
	for h := height; h >= 2; h-- {
		width := widths[h-1]
		nodeIdx := p / (width * a.arraySize)
		childSlot := (p / width) % a.arraySize
		if err := a.insertMarker(ctx, a.nodeID(h, nodeIdx), childSlot); err != nil {
			return err
		}
	}

	return a.store.Insert(ctx, sequenced.Item{
		SequenceID: a.partitionID(p / a.arraySize),
		Position:   p % a.arraySize,
		Topic:      topic,
		Data:       data,
	})
}

// insertMarker conditionally writes a marker; a lost race means the marker is
// already present, which is success.
func (a *BigArray) insertMarker(ctx context.Context, nodeSeq uuid.UUID, slot uint64) error {
	err := a.store.Insert(ctx, sequenced.Item{SequenceID: nodeSeq, Position: slot, Topic: markerTopic})
	if err != nil && !errors.Is(err, ErrConcurrency) {
		return err
	}
	return nil
}

// NextPosition discovers the next unused position by walking from the apex
// into the highest marked child at each level, then reading one partition's
// high-water mark. Cost is O(log_arraySize(highest assigned)).
func (a *BigArray) NextPosition(ctx context.Context) (uint64, error) {
	rootLast, ok, err := a.store.LastPosition(ctx, a.rootID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	height := int(rootLast) + 1

	idx := uint64(0)
	for h := height; h >= 2; h-- {
		last, ok, err := a.store.LastPosition(ctx, a.nodeID(h, idx))
		if err != nil {
			return 0, err
		}
		child := uint64(0)
		if ok {
			child = last
		}
		idx = idx*a.arraySize + child
	}

	local, ok, err := a.store.LastPosition(ctx, a.partitionID(idx))
	if err != nil {
		return 0, err
	}
	if !ok {
		return idx * a.arraySize, nil
	}
	// local+1 == arraySize rolls cleanly into the next partition's start.
	return idx*a.arraySize + local + 1, nil
}

// Append discovers the next free position and conditionally writes to it.
// Another appender may win the race between discovery and write, in which
// case ErrConcurrency is returned and the caller retries.
func (a *BigArray) Append(ctx context.Context, topic string, data []byte) (uint64, error) {
	p, err := a.NextPosition(ctx)
	if err != nil {
		return 0, err
	}
	if err := a.Set(ctx, p, topic, data); err != nil {
		return 0, err
	}
	return p, nil
}

// AppendRetry wraps Append with a bounded retry loop. Exhausting the attempts
// surfaces ErrRetriesExhausted rather than dropping the write silently.
func (a *BigArray) AppendRetry(ctx context.Context, topic string, data []byte, maxAttempts int) (uint64, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		var p uint64
		p, err = a.Append(ctx, topic, data)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrConcurrency) {
			return 0, err
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
	}
	return 0, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, maxAttempts, err)
}

// AppendWith writes at positions issued by an external sequencer, retrying
// with a freshly issued number on conflict. This is the scalable path under
// many concurrent appenders: discovery races disappear, and a duplicate
// number issued by a failed-over counter is rejected by the conditional
// write and retried with the next number.
func (a *BigArray) AppendWith(ctx context.Context, seq sequencer.Sequencer, topic string, data []byte, maxAttempts int) (uint64, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		var p uint64
		p, err = seq.Next(ctx)
		if err != nil {
			return 0, err
		}
		err = a.Set(ctx, p, topic, data)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrConcurrency) {
			return 0, err
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
	}
	return 0, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, maxAttempts, err)
}
