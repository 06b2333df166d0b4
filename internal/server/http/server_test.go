package httpserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	cfgpkg "github.com/rzbill/ledger/internal/config"
	"github.com/rzbill/ledger/internal/notification"
	"github.com/rzbill/ledger/internal/runtime"
	pebblestore "github.com/rzbill/ledger/internal/storage/pebble"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	rt, err := runtime.Open(runtime.Options{
		DataDir: t.TempDir(),
		Fsync:   pebblestore.FsyncModeAlways,
		Config:  cfgpkg.Default(),
	})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	ts := httptest.NewServer(New(rt).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func createLog(t *testing.T, ts *httptest.Server, name, backing string, arraySize, sectionSize uint64) {
	t.Helper()
	resp := postJSON(t, ts.URL+"/v1/logs/create", map[string]any{
		"namespace": "default", "log": name, "backing": backing,
		"arraySize": arraySize, "sectionSize": sectionSize,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create log: status %d", resp.StatusCode)
	}
}

func appendItem(t *testing.T, ts *httptest.Server, logName, topic, data string) uint64 {
	t.Helper()
	resp := postJSON(t, ts.URL+"/v1/logs/append", map[string]any{
		"namespace": "default", "log": logName, "topic": topic, "data": []byte(data),
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("append: status %d", resp.StatusCode)
	}
	var out struct {
		Position uint64 `json:"position"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode append: %v", err)
	}
	return out.Position
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/v1/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
}

func TestCreateAppendSection(t *testing.T) {
	ts := newTestServer(t)
	createLog(t, ts, "orders", "bigarray", 100, 5)

	for i := 0; i < 9; i++ {
		pos := appendItem(t, ts, "orders", "order.created", `{"n":1}`)
		if pos != uint64(i) {
			t.Fatalf("append %d assigned %d", i, pos)
		}
	}

	resp, err := http.Get(ts.URL + "/v1/logs/section?namespace=default&log=orders")
	if err != nil {
		t.Fatalf("section: %v", err)
	}
	defer resp.Body.Close()
	var sec notification.Section
	if err := json.NewDecoder(resp.Body).Decode(&sec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sec.ID != "6,9" || sec.Previous == nil || *sec.Previous != "1,5" {
		t.Fatalf("current section: %+v", sec)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-cache" {
		t.Fatalf("current cache-control: %q", cc)
	}
	if resp.Header.Get("ETag") == "" {
		t.Fatalf("current section missing etag")
	}
}

func TestSectionConditionalGet(t *testing.T) {
	ts := newTestServer(t)
	createLog(t, ts, "orders", "bigarray", 100, 5)
	appendItem(t, ts, "orders", "t", "{}")

	url := ts.URL + "/v1/logs/section?namespace=default&log=orders&id=current"
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	etag := resp.Header.Get("ETag")
	resp.Body.Close()
	if etag == "" {
		t.Fatalf("missing etag")
	}

	req, _ := http.NewRequest(http.MethodGet, url, nil)
	req.Header.Set("If-None-Match", etag)
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("conditional get: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotModified {
		t.Fatalf("unchanged section: status %d", resp2.StatusCode)
	}

	// content change invalidates the tag
	appendItem(t, ts, "orders", "t", "{}")
	resp3, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get after append: %v", err)
	}
	defer resp3.Body.Close()
	if resp3.StatusCode != http.StatusOK {
		t.Fatalf("changed section: status %d", resp3.StatusCode)
	}
}

func TestArchivedSectionIsImmutable(t *testing.T) {
	ts := newTestServer(t)
	createLog(t, ts, "orders", "bigarray", 100, 5)
	for i := 0; i < 9; i++ {
		appendItem(t, ts, "orders", "t", "{}")
	}

	resp, err := http.Get(ts.URL + "/v1/logs/section?namespace=default&log=orders&id=1,5")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if cc := resp.Header.Get("Cache-Control"); !strings.Contains(cc, "immutable") {
		t.Fatalf("archived cache-control: %q", cc)
	}
	var sec notification.Section
	if err := json.NewDecoder(resp.Body).Decode(&sec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !sec.Archived || sec.Next == nil || *sec.Next != "6,10" {
		t.Fatalf("archived section: %+v", sec)
	}
}

func TestAppendAtConflict(t *testing.T) {
	ts := newTestServer(t)
	createLog(t, ts, "orders", "bigarray", 100, 5)

	pos := uint64(0)
	resp := postJSON(t, ts.URL+"/v1/logs/append", map[string]any{
		"namespace": "default", "log": "orders", "topic": "t", "data": []byte("{}"), "position": pos,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first write: status %d", resp.StatusCode)
	}
	resp = postJSON(t, ts.URL+"/v1/logs/append", map[string]any{
		"namespace": "default", "log": "orders", "topic": "t", "data": []byte("{}"), "position": pos,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second write: status %d", resp.StatusCode)
	}
}

func TestAppendToUnknownLog(t *testing.T) {
	ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/v1/logs/append", map[string]any{
		"namespace": "default", "log": "missing", "topic": "t", "data": []byte("{}"),
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d", resp.StatusCode)
	}
}

func TestPositionsCommitAndGet(t *testing.T) {
	ts := newTestServer(t)
	createLog(t, ts, "orders", "sequence", 0, 5)

	resp := postJSON(t, ts.URL+"/v1/positions/commit", map[string]any{
		"namespace": "default", "log": "orders", "group": "projector", "position": 7,
	})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("commit: status %d", resp.StatusCode)
	}

	get, err := http.Get(ts.URL + "/v1/positions?namespace=default&log=orders&group=projector")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer get.Body.Close()
	var out struct {
		Position uint64 `json:"position"`
		Known    bool   `json:"known"`
	}
	if err := json.NewDecoder(get.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Known || out.Position != 7 {
		t.Fatalf("position: %+v", out)
	}

	// stale commit is ignored
	postJSON(t, ts.URL+"/v1/positions/commit", map[string]any{
		"namespace": "default", "log": "orders", "group": "projector", "position": 3,
	})
	get2, err := http.Get(ts.URL + "/v1/positions?namespace=default&log=orders&group=projector")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer get2.Body.Close()
	_ = json.NewDecoder(get2.Body).Decode(&out)
	if out.Position != 7 {
		t.Fatalf("position regressed: %d", out.Position)
	}
}

func TestFollowStreamsAppends(t *testing.T) {
	ts := newTestServer(t)
	createLog(t, ts, "orders", "bigarray", 100, 5)
	for i := 0; i < 3; i++ {
		appendItem(t, ts, "orders", "order.created", "{}")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/logs/follow?namespace=default&log=orders", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("follow: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type: %q", ct)
	}

	var ids []uint64
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var n notification.Notification
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &n); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		ids = append(ids, n.ID)
		if len(ids) == 3 {
			break
		}
	}
	if len(ids) != 3 || ids[0] != 1 || ids[2] != 3 {
		t.Fatalf("streamed ids: %v", ids)
	}
}

func TestFollowRejectsBadFilter(t *testing.T) {
	ts := newTestServer(t)
	createLog(t, ts, "orders", "bigarray", 100, 5)
	resp, err := http.Get(ts.URL + "/v1/logs/follow?namespace=default&log=orders&filter=topic%20%3D%3D")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d", resp.StatusCode)
	}
}
