// Package sequencer issues positions for contiguous streams.
//
// A Sequencer hands out a monotonically increasing stream of positions,
// starting at zero. The Local variant is an in-process counter suitable for
// single-process use; Redis is backed by a shared atomic counter and is the
// scalable path for many appenders, because it removes discovery races
// entirely: each writer gets a distinct position up front and the storage
// layer's uniqueness constraint backstops any counter misbehavior.
//
// Issued positions are never reused. A position that is issued but never
// successfully written is permanently lost and shows up downstream as a gap.
package sequencer

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
)

// ErrSequenceExhausted reports numeric overflow of the position space.
// Practically unreachable, but never silent.
var ErrSequenceExhausted = errors.New("sequencer: sequence exhausted")

// Sequencer issues the next unused position.
type Sequencer interface {
	Next(ctx context.Context) (uint64, error)
}

// Local is a process-local Sequencer. Restart resets it to zero, which is
// acceptable only for single-process or demo use.
type Local struct {
	n atomic.Uint64
}

// NewLocal returns a Local sequencer starting at position 0.
func NewLocal() *Local { return &Local{} }

// NewLocalAt returns a Local sequencer whose first issued position is start.
// Used to resume from a persisted high-water mark.
func NewLocalAt(start uint64) *Local {
	l := &Local{}
	l.n.Store(start)
	return l
}

// Next implements Sequencer.
func (l *Local) Next(ctx context.Context) (uint64, error) {
	v := l.n.Add(1)
	if v == 0 {
		// wrapped
		return 0, ErrSequenceExhausted
	}
	return v - 1, nil
}

// Fixed is a Sequencer that replays a predetermined series of positions.
// Test seam for exercising retry paths deterministically.
type Fixed struct {
	positions []uint64
	idx       atomic.Int64
}

// NewFixed returns a Sequencer yielding exactly the given positions.
func NewFixed(positions ...uint64) *Fixed { return &Fixed{positions: positions} }

// Next implements Sequencer.
func (f *Fixed) Next(ctx context.Context) (uint64, error) {
	i := f.idx.Add(1) - 1
	if i >= int64(len(f.positions)) {
		return math.MaxUint64, ErrSequenceExhausted
	}
	return f.positions[i], nil
}
