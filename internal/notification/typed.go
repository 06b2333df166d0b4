package notification

import (
	"context"

	"github.com/rzbill/ledger/internal/topic"
)

// Event is a notification whose payload has been decoded through a topic
// registry.
type Event struct {
	ID    uint64
	Topic string
	Value interface{}
}

// TypedReader pairs a Reader with a topic registry, yielding decoded values
// instead of raw payloads. Gap placeholders are skipped; an unregistered
// topic fails the read, because a consumer replaying a log it does not fully
// understand is a bug.
type TypedReader struct {
	reader   *Reader
	registry *topic.Registry
}

// NewTypedReader returns a TypedReader over log using registry.
func NewTypedReader(log Log, registry *topic.Registry, opts ...ReaderOption) *TypedReader {
	opts = append(opts, WithSkipGaps())
	return &TypedReader{reader: NewReader(log, opts...), registry: registry}
}

// Position returns the count of notifications consumed, gaps included.
func (t *TypedReader) Position() uint64 { return t.reader.Position() }

// Seek moves the cursor so the next Read starts after notification n.
func (t *TypedReader) Seek(n uint64) { t.reader.Seek(n) }

// Read drains newly available notifications and decodes each payload.
func (t *TypedReader) Read(ctx context.Context) ([]Event, error) {
	items, err := t.reader.Read(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(items))
	for _, n := range items {
		v, err := t.registry.Decode(n.Topic, n.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, Event{ID: n.ID, Topic: n.Topic, Value: v})
	}
	return out, nil
}
