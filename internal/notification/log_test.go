package notification

import (
	"context"
	"fmt"
	"testing"
)

// memSource serves notifications from a slice; index = 0-based position, nil
// entries are gaps.
type memSource struct {
	items []*Notification
}

func (m *memSource) HighWater(ctx context.Context) (uint64, error) {
	return uint64(len(m.items)), nil
}

func (m *memSource) Slice(ctx context.Context, start, stop uint64) ([]*Notification, error) {
	return m.items[start:stop], nil
}

func (m *memSource) append(topic string) {
	id := uint64(len(m.items)) + 1
	m.items = append(m.items, &Notification{ID: id, Topic: topic, Data: []byte(fmt.Sprintf(`{"n":%d}`, id))})
}

func newMemSource(n int) *memSource {
	m := &memSource{}
	for i := 0; i < n; i++ {
		m.append("thing.created")
	}
	return m
}

func newTestLog(t *testing.T, src Source, sz uint64) *LocalLog {
	t.Helper()
	l, err := NewLog(src, sz)
	if err != nil {
		t.Fatalf("new log: %v", err)
	}
	return l
}

func TestCurrentSectionTruncatedAtHighWater(t *testing.T) {
	l := newTestLog(t, newMemSource(9), 5)
	ctx := context.Background()

	sec, err := l.Section(ctx, CurrentID)
	if err != nil {
		t.Fatalf("section: %v", err)
	}
	if sec.ID != "6,9" {
		t.Fatalf("id: got %q", sec.ID)
	}
	if sec.Previous == nil || *sec.Previous != "1,5" {
		t.Fatalf("previous: got %v", sec.Previous)
	}
	if sec.Next != nil {
		t.Fatalf("next should be nil at frontier, got %q", *sec.Next)
	}
	if sec.Archived {
		t.Fatalf("partial window reported archived")
	}
	if len(sec.Items) != 4 {
		t.Fatalf("items: got %d", len(sec.Items))
	}
	if sec.Items[0].ID != 6 || sec.Items[3].ID != 9 {
		t.Fatalf("item ids: %d..%d", sec.Items[0].ID, sec.Items[3].ID)
	}
}

func TestArchivedSectionLinksForward(t *testing.T) {
	l := newTestLog(t, newMemSource(9), 5)
	ctx := context.Background()

	sec, err := l.Section(ctx, "1,5")
	if err != nil {
		t.Fatalf("section: %v", err)
	}
	if sec.ID != "1,5" {
		t.Fatalf("id: got %q", sec.ID)
	}
	if !sec.Archived {
		t.Fatalf("full window below frontier must be archived")
	}
	if sec.Previous != nil {
		t.Fatalf("first section should have no previous")
	}
	// links always carry the full window encoding, even when the target is
	// only partially filled
	if sec.Next == nil || *sec.Next != "6,10" {
		t.Fatalf("next: got %v", sec.Next)
	}
	if len(sec.Items) != 5 {
		t.Fatalf("items: got %d", len(sec.Items))
	}
}

func TestSectionBeyondFrontierIsEmptyBoundary(t *testing.T) {
	l := newTestLog(t, newMemSource(9), 5)
	ctx := context.Background()

	sec, err := l.Section(ctx, "11,15")
	if err != nil {
		t.Fatalf("section: %v", err)
	}
	if sec.ID != "11,15" {
		t.Fatalf("id: got %q", sec.ID)
	}
	if len(sec.Items) != 0 {
		t.Fatalf("items: got %d", len(sec.Items))
	}
	if sec.Previous == nil || *sec.Previous != "6,10" {
		t.Fatalf("previous: got %v", sec.Previous)
	}
	if sec.Next != nil {
		t.Fatalf("next beyond frontier: got %q", *sec.Next)
	}
	if sec.Archived {
		t.Fatalf("empty boundary reported archived")
	}
}

func TestCurrentSectionOfEmptyLog(t *testing.T) {
	l := newTestLog(t, newMemSource(0), 5)

	sec, err := l.Section(context.Background(), CurrentID)
	if err != nil {
		t.Fatalf("section: %v", err)
	}
	if sec.ID != "1,5" {
		t.Fatalf("id: got %q", sec.ID)
	}
	if len(sec.Items) != 0 || sec.Previous != nil || sec.Next != nil {
		t.Fatalf("empty log section: %+v", sec)
	}
}

func TestSectionExactlyFullIsCurrentAndArchived(t *testing.T) {
	l := newTestLog(t, newMemSource(5), 5)
	ctx := context.Background()

	sec, err := l.Section(ctx, CurrentID)
	if err != nil {
		t.Fatalf("section: %v", err)
	}
	if sec.ID != "1,5" {
		t.Fatalf("id: got %q", sec.ID)
	}
	if !sec.Archived {
		t.Fatalf("exactly full current window must be archived")
	}
	if sec.Next != nil {
		t.Fatalf("next: got %q", *sec.Next)
	}
}

func TestSectionExposesGaps(t *testing.T) {
	src := newMemSource(7)
	src.items[4] = nil // position 4 never committed
	l := newTestLog(t, src, 5)

	sec, err := l.Section(context.Background(), "1,5")
	if err != nil {
		t.Fatalf("section: %v", err)
	}
	if len(sec.Items) != 5 {
		t.Fatalf("items: got %d", len(sec.Items))
	}
	if sec.Items[4] != nil {
		t.Fatalf("gap not surfaced as nil")
	}
	if sec.Items[3].ID != 4 {
		t.Fatalf("neighbor id: got %d", sec.Items[3].ID)
	}
}

func TestNewLogRejectsZeroSectionSize(t *testing.T) {
	if _, err := NewLog(newMemSource(0), 0); err == nil {
		t.Fatalf("want error for zero section size")
	}
}
