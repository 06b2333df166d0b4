package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rzbill/ledger/internal/bigarray"
	"github.com/rzbill/ledger/internal/sequenced"
)

// Source is any positionally-addressable ordered item source. Positions are
// 0-based on this interface; notification IDs are positions plus one.
type Source interface {
	// HighWater returns the count of positions at or below the highest
	// assigned one (0 for an empty source).
	HighWater(ctx context.Context) (uint64, error)
	// Slice returns positions [start, stop) with nil placeholders for
	// unassigned slots.
	Slice(ctx context.Context, start, stop uint64) ([]*Notification, error)
}

// Log serves sections by ID, including the "current" token.
type Log interface {
	Section(ctx context.Context, id string) (Section, error)
}

// LocalLog paginates a Source into sections of a fixed size.
type LocalLog struct {
	source      Source
	sectionSize uint64
}

// NewLog returns a LocalLog over source with the given section size.
func NewLog(source Source, sectionSize uint64) (*LocalLog, error) {
	if sectionSize == 0 {
		return nil, fmt.Errorf("notification: section size must be positive")
	}
	return &LocalLog{source: source, sectionSize: sectionSize}, nil
}

// SectionSize returns the fixed window size.
func (l *LocalLog) SectionSize() uint64 { return l.sectionSize }

// Section resolves id ("current" or "first,last") to a section. Requests
// beyond the frontier return an empty boundary section rather than an error.
func (l *LocalLog) Section(ctx context.Context, id string) (Section, error) {
	high, err := l.source.HighWater(ctx)
	if err != nil {
		return Section{}, err
	}

	var window uint64
	if id == CurrentID {
		if high > 0 {
			window = (high - 1) / l.sectionSize
		}
	} else {
		first, _, err := ParseSectionID(id)
		if err != nil {
			return Section{}, err
		}
		window = (first - 1) / l.sectionSize
	}
	return l.window(ctx, window, high)
}

// window builds the section for window index w given the current high water.
func (l *LocalLog) window(ctx context.Context, w, high uint64) (Section, error) {
	sz := l.sectionSize
	first := w*sz + 1
	last := (w + 1) * sz

	sec := Section{}
	if w > 0 {
		prev := FormatSectionID(first-sz, last-sz)
		sec.Previous = &prev
	}

	currentWindow := uint64(0)
	if high > 0 {
		currentWindow = (high - 1) / sz
	}
	if w < currentWindow {
		next := FormatSectionID(first+sz, last+sz)
		sec.Next = &next
	}

	if first > high {
		// boundary: nothing committed in this window yet
		sec.ID = FormatSectionID(first, last)
		sec.Items = []*Notification{}
		return sec, nil
	}

	truncated := last
	if high < truncated {
		truncated = high
	}
	sec.ID = FormatSectionID(first, truncated)
	sec.Archived = high >= last

	items, err := l.source.Slice(ctx, first-1, truncated)
	if err != nil {
		return Section{}, err
	}
	sec.Items = items
	return sec, nil
}

// SequenceSource adapts a contiguous sequenced-item stream.
type SequenceSource struct {
	store      *sequenced.Store
	sequenceID uuid.UUID
}

// NewSequenceSource returns a Source over one sequence in store.
func NewSequenceSource(store *sequenced.Store, sequenceID uuid.UUID) *SequenceSource {
	return &SequenceSource{store: store, sequenceID: sequenceID}
}

// HighWater implements Source.
func (s *SequenceSource) HighWater(ctx context.Context) (uint64, error) {
	last, ok, err := s.store.LastPosition(ctx, s.sequenceID)
	if err != nil || !ok {
		return 0, err
	}
	return last + 1, nil
}

// Slice implements Source.
func (s *SequenceSource) Slice(ctx context.Context, start, stop uint64) ([]*Notification, error) {
	items, err := s.store.ReadRange(ctx, s.sequenceID, start, stop)
	if err != nil {
		return nil, err
	}
	out := make([]*Notification, stop-start)
	for _, it := range items {
		out[it.Position-start] = &Notification{ID: it.Position + 1, Topic: it.Topic, Data: it.Data}
	}
	return out, nil
}

// ArraySource adapts a BigArray.
type ArraySource struct {
	array *bigarray.BigArray
}

// NewArraySource returns a Source over the array.
func NewArraySource(array *bigarray.BigArray) *ArraySource {
	return &ArraySource{array: array}
}

// HighWater implements Source.
func (s *ArraySource) HighWater(ctx context.Context) (uint64, error) {
	return s.array.NextPosition(ctx)
}

// Slice implements Source.
func (s *ArraySource) Slice(ctx context.Context, start, stop uint64) ([]*Notification, error) {
	items, err := s.array.Slice(ctx, start, stop)
	if err != nil {
		return nil, err
	}
	out := make([]*Notification, len(items))
	for i, it := range items {
		if it == nil {
			continue
		}
		out[i] = &Notification{ID: it.Position + 1, Topic: it.Topic, Data: it.Data}
	}
	return out, nil
}
