package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// sectionServer serves a LocalLog over the section endpoint with the same
// caching headers the real server emits, counting hits per section id.
type sectionServer struct {
	log  *LocalLog
	etag string

	mu   sync.Mutex
	hits map[string]int
}

func (s *sectionServer) handler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	s.mu.Lock()
	s.hits[id]++
	s.mu.Unlock()

	sec, err := s.log.Section(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !sec.Archived {
		w.Header().Set("ETag", s.etag)
		if r.Header.Get("If-None-Match") == s.etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	_ = json.NewEncoder(w).Encode(sec)
}

func newSectionServer(t *testing.T, src Source, sz uint64) (*sectionServer, *RemoteLog) {
	t.Helper()
	s := &sectionServer{log: newTestLog(t, src, sz), etag: `"v1"`, hits: map[string]int{}}
	ts := httptest.NewServer(http.HandlerFunc(s.handler))
	t.Cleanup(ts.Close)
	return s, NewRemoteLog(ts.URL, "ns", "orders", ts.Client())
}

func (s *sectionServer) hitCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[id]
}

func TestRemoteLogFetchesSections(t *testing.T) {
	_, remote := newSectionServer(t, newMemSource(9), 5)
	ctx := context.Background()

	sec, err := remote.Section(ctx, CurrentID)
	if err != nil {
		t.Fatalf("section: %v", err)
	}
	if sec.ID != "6,9" || len(sec.Items) != 4 {
		t.Fatalf("current: %+v", sec)
	}
	if sec.Previous == nil || *sec.Previous != "1,5" {
		t.Fatalf("previous: %v", sec.Previous)
	}

	prev, err := remote.Section(ctx, *sec.Previous)
	if err != nil {
		t.Fatalf("previous section: %v", err)
	}
	if prev.ID != "1,5" || !prev.Archived || len(prev.Items) != 5 {
		t.Fatalf("archived: %+v", prev)
	}
	if prev.Items[0].ID != 1 || string(prev.Items[0].Data) != `{"n":1}` {
		t.Fatalf("payload: %+v", prev.Items[0])
	}
}

func TestRemoteLogCachesArchivedSections(t *testing.T) {
	srv, remote := newSectionServer(t, newMemSource(9), 5)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := remote.Section(ctx, "1,5"); err != nil {
			t.Fatalf("section: %v", err)
		}
	}
	if n := srv.hitCount("1,5"); n != 1 {
		t.Fatalf("archived section fetched %d times", n)
	}
}

func TestRemoteLogRevalidatesCurrentWithETag(t *testing.T) {
	srv, remote := newSectionServer(t, newMemSource(9), 5)
	ctx := context.Background()

	first, err := remote.Section(ctx, CurrentID)
	if err != nil {
		t.Fatalf("section: %v", err)
	}
	second, err := remote.Section(ctx, CurrentID)
	if err != nil {
		t.Fatalf("revalidate: %v", err)
	}
	if second.ID != first.ID || len(second.Items) != len(first.Items) {
		t.Fatalf("304 served wrong section: %+v", second)
	}
	// both requests reach the server; the second is answered with 304
	if n := srv.hitCount(CurrentID); n != 2 {
		t.Fatalf("current hit %d times", n)
	}
}

func TestReaderOverRemoteLog(t *testing.T) {
	_, remote := newSectionServer(t, newMemSource(23), 5)

	got, err := NewReader(remote).Read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 23 || got[0].ID != 1 || got[22].ID != 23 {
		t.Fatalf("remote read: %d items", len(got))
	}
}
