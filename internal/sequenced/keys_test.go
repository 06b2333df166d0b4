package sequenced

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
)

func TestItemKeysSortByPosition(t *testing.T) {
	id := uuid.New()
	k1 := KeyItem("ns", id, 1)
	k2 := KeyItem("ns", id, 2)
	k300 := KeyItem("ns", id, 300)
	if !(bytes.Compare(k1, k2) < 0 && bytes.Compare(k2, k300) < 0) {
		t.Fatalf("keys not ordered by position")
	}
	if posFromItemKey(k300) != 300 {
		t.Fatalf("position decode")
	}
}

func TestItemKeysShareSequencePrefix(t *testing.T) {
	id := uuid.New()
	prefix := KeyItemPrefix("ns", id)
	if !bytes.HasPrefix(KeyItem("ns", id, 42), prefix) {
		t.Fatalf("item key missing sequence prefix")
	}
	other := uuid.New()
	if bytes.HasPrefix(KeyItem("ns", other, 42), prefix) {
		t.Fatalf("distinct sequences share prefix")
	}
}
