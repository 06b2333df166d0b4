package notification

import "context"

// Reader is a resumable cursor over a Log. Position is the count of
// notification IDs consumed so far (gap placeholders included), so the next
// expected notification is Position()+1. The Reader holds no durable state;
// persist the position with PositionStore or however the caller prefers.
type Reader struct {
	log      Log
	position uint64
	skipGaps bool
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithSkipGaps drops gap placeholders from Read results instead of yielding
// nils. Position still advances past the gap either way.
func WithSkipGaps() ReaderOption {
	return func(r *Reader) { r.skipGaps = true }
}

// WithPosition starts the reader at the given consumed count.
func WithPosition(n uint64) ReaderOption {
	return func(r *Reader) { r.position = n }
}

// NewReader returns a Reader over log starting at position 0 unless
// configured otherwise.
func NewReader(log Log, opts ...ReaderOption) *Reader {
	r := &Reader{log: log}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Position returns the count of notifications consumed.
func (r *Reader) Position() uint64 { return r.position }

// Seek moves the cursor so the next Read starts after notification n.
func (r *Reader) Seek(n uint64) { r.position = n }

// Read drains everything newly available since the last call, in strictly
// ascending ID order with no duplicates and no omissions. A permanent gap in
// the underlying stream is yielded as a nil placeholder (or skipped, with
// WithSkipGaps) rather than blocking forever.
func (r *Reader) Read(ctx context.Context) ([]*Notification, error) {
	sec, err := r.log.Section(ctx, CurrentID)
	if err != nil {
		return nil, err
	}

	// Seeking phase: walk backward until the section containing the next
	// expected notification, or the very first section.
	for sec.First() > r.position+1 && sec.Previous != nil {
		sec, err = r.log.Section(ctx, *sec.Previous)
		if err != nil {
			return nil, err
		}
	}

	// Forwarding phase: yield everything past the cursor, following Next
	// until the frontier.
	var out []*Notification
	for {
		first := sec.First()
		for i, item := range sec.Items {
			id := first + uint64(i)
			if id <= r.position {
				continue
			}
			if item != nil || !r.skipGaps {
				out = append(out, item)
			}
			r.position = id
		}
		if sec.Next == nil {
			return out, nil
		}
		sec, err = r.log.Section(ctx, *sec.Next)
		if err != nil {
			return nil, err
		}
	}
}

// ReadFrom is slice-style access: Seek(n) then Read.
func (r *Reader) ReadFrom(ctx context.Context, n uint64) ([]*Notification, error) {
	r.Seek(n)
	return r.Read(ctx)
}
