package notification

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rzbill/ledger/internal/topic"
)

type orderCreated struct {
	N int `json:"n"`
}

func TestTypedReaderDecodesPayloads(t *testing.T) {
	l := newTestLog(t, newMemSource(3), 5)
	reg := topic.NewRegistry()
	if err := reg.Register("thing.created", func(data []byte) (interface{}, error) {
		var v orderCreated
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	tr := NewTypedReader(l, reg)
	events, err := tr.Read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("count: %d", len(events))
	}
	if v, ok := events[2].Value.(orderCreated); !ok || v.N != 3 {
		t.Fatalf("decoded value: %+v", events[2].Value)
	}
	if tr.Position() != 3 {
		t.Fatalf("position: %d", tr.Position())
	}
}

func TestTypedReaderFailsOnUnknownTopic(t *testing.T) {
	l := newTestLog(t, newMemSource(1), 5)
	tr := NewTypedReader(l, topic.NewRegistry())
	if _, err := tr.Read(context.Background()); err == nil {
		t.Fatalf("unregistered topic accepted")
	}
}

func TestTypedReaderSkipsGaps(t *testing.T) {
	src := newMemSource(3)
	src.items[1] = nil
	l := newTestLog(t, src, 5)
	reg := topic.NewRegistry()
	_ = reg.Register("thing.created", func(data []byte) (interface{}, error) { return string(data), nil })

	events, err := NewTypedReader(l, reg).Read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(events) != 2 || events[0].ID != 1 || events[1].ID != 3 {
		t.Fatalf("events: %+v", events)
	}
}
