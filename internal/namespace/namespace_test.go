package namespace

import (
	"sync"
	"testing"

	"github.com/google/uuid"

	pebblestore "github.com/rzbill/ledger/internal/storage/pebble"
)

func openTestDB(t *testing.T) *pebblestore.DB {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestEnsureNamespaceIdempotent(t *testing.T) {
	db := openTestDB(t)

	m1, err := EnsureNamespace(db, "default")
	if err != nil {
		t.Fatalf("ensure1: %v", err)
	}
	m2, err := EnsureNamespace(db, "default")
	if err != nil {
		t.Fatalf("ensure2: %v", err)
	}
	if m1.Name != m2.Name || m1.CreatedAtMs != m2.CreatedAtMs {
		t.Fatalf("not idempotent: %+v vs %+v", m1, m2)
	}
	if _, ok, _ := GetNamespace(db, "other"); ok {
		t.Fatalf("GetNamespace created a namespace")
	}
}

func TestEnsureLogAssignsArrayID(t *testing.T) {
	db := openTestDB(t)

	m1, err := EnsureLog(db, "default", LogMeta{
		Name: "orders", Backing: BackingBigArray, ArraySize: 100, SectionSize: 20,
	})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if m1.ArrayID == uuid.Nil {
		t.Fatalf("array id not assigned")
	}
	m2, err := EnsureLog(db, "default", LogMeta{
		Name: "orders", Backing: BackingBigArray, ArraySize: 100, SectionSize: 20,
	})
	if err != nil {
		t.Fatalf("re-ensure: %v", err)
	}
	// the anchor must be stable; a new ArrayID re-addresses every position
	if m2.ArrayID != m1.ArrayID {
		t.Fatalf("array id changed: %s vs %s", m1.ArrayID, m2.ArrayID)
	}
}

func TestEnsureLogConcurrentCreatorsConverge(t *testing.T) {
	db := openTestDB(t)

	const writers = 8
	metas := make([]LogMeta, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := EnsureLog(db, "default", LogMeta{
				Name: "orders", Backing: BackingBigArray, ArraySize: 100, SectionSize: 20,
			})
			if err != nil {
				t.Errorf("ensure: %v", err)
				return
			}
			metas[i] = m
		}(i)
	}
	wg.Wait()

	stored, ok, err := GetLog(db, "default", "orders")
	if err != nil || !ok {
		t.Fatalf("get: %v %v", ok, err)
	}
	// every creator must hold the identity that persisted; a divergent
	// ArrayID would strand its items after a restart
	for i, m := range metas {
		if m.ArrayID != stored.ArrayID {
			t.Fatalf("creator %d holds array id %s, stored %s", i, m.ArrayID, stored.ArrayID)
		}
	}
}

func TestEnsureLogIdentityStableAcrossStores(t *testing.T) {
	meta := LogMeta{Name: "orders", Backing: BackingBigArray, ArraySize: 100, SectionSize: 20}

	m1, err := EnsureLog(openTestDB(t), "default", meta)
	if err != nil {
		t.Fatalf("ensure1: %v", err)
	}
	m2, err := EnsureLog(openTestDB(t), "default", meta)
	if err != nil {
		t.Fatalf("ensure2: %v", err)
	}
	if m1.ArrayID != m2.ArrayID {
		t.Fatalf("same log named different ids: %s vs %s", m1.ArrayID, m2.ArrayID)
	}

	other := meta
	other.Name = "payments"
	m3, err := EnsureLog(openTestDB(t), "default", other)
	if err != nil {
		t.Fatalf("ensure3: %v", err)
	}
	if m3.ArrayID == m1.ArrayID {
		t.Fatalf("distinct logs share an array id")
	}
}

func TestEnsureLogRejectsConflictingSettings(t *testing.T) {
	db := openTestDB(t)

	if _, err := EnsureLog(db, "default", LogMeta{
		Name: "orders", Backing: BackingBigArray, ArraySize: 100, SectionSize: 20,
	}); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := EnsureLog(db, "default", LogMeta{
		Name: "orders", Backing: BackingBigArray, ArraySize: 500, SectionSize: 20,
	}); err == nil {
		t.Fatalf("geometry change accepted")
	}
	if _, err := EnsureLog(db, "default", LogMeta{
		Name: "orders", Backing: BackingSequence, ArraySize: 100, SectionSize: 20,
	}); err == nil {
		t.Fatalf("backing change accepted")
	}
}

func TestEnsureLogRejectsUnknownBacking(t *testing.T) {
	db := openTestDB(t)
	if _, err := EnsureLog(db, "default", LogMeta{Name: "x", Backing: "btree"}); err == nil {
		t.Fatalf("unknown backing accepted")
	}
}

func TestListLogsScopedToNamespace(t *testing.T) {
	db := openTestDB(t)

	for _, name := range []string{"orders", "payments"} {
		if _, err := EnsureLog(db, "default", LogMeta{
			Name: name, Backing: BackingSequence, ArraySize: 100, SectionSize: 20,
		}); err != nil {
			t.Fatalf("ensure %s: %v", name, err)
		}
	}
	if _, err := EnsureLog(db, "tenant-a", LogMeta{
		Name: "orders", Backing: BackingSequence, ArraySize: 100, SectionSize: 20,
	}); err != nil {
		t.Fatalf("ensure tenant: %v", err)
	}

	logs, err := ListLogs(db, "default")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 2 || logs[0].Name != "orders" || logs[1].Name != "payments" {
		t.Fatalf("list: %+v", logs)
	}
}

func TestValidator(t *testing.T) {
	v, err := NewValidator("[a-z0-9-_]{1,64}")
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}
	if err := v.Check("default"); err != nil {
		t.Fatalf("valid name rejected: %v", err)
	}
	for _, bad := range []string{"", "Has Space", "UPPER", "a/b"} {
		if err := v.Check(bad); err == nil {
			t.Fatalf("invalid name %q accepted", bad)
		}
	}
}
