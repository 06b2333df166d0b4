package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
)

// RemoteLog fetches sections from a ledger server's HTTP API, so a Reader in
// another process follows a log exactly as a local one would.
//
// Archived sections are immutable and cached indefinitely. The current
// section is revalidated with If-None-Match on every fetch; a 304 serves the
// cached copy.
type RemoteLog struct {
	base      string
	namespace string
	logName   string
	client    *http.Client

	mu       sync.Mutex
	archived map[string]Section
	curETag  string
	current  Section
	hasCur   bool
}

// NewRemoteLog returns a RemoteLog for the named log behind base, e.g.
// "http://127.0.0.1:8080".
func NewRemoteLog(base, namespace, logName string, client *http.Client) *RemoteLog {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteLog{
		base:      base,
		namespace: namespace,
		logName:   logName,
		client:    client,
		archived:  map[string]Section{},
	}
}

// Section implements Log.
func (r *RemoteLog) Section(ctx context.Context, id string) (Section, error) {
	r.mu.Lock()
	if sec, ok := r.archived[id]; ok {
		r.mu.Unlock()
		return sec, nil
	}
	etag := ""
	if id == CurrentID && r.hasCur {
		etag = r.curETag
	}
	r.mu.Unlock()

	u := fmt.Sprintf("%s/v1/logs/section?namespace=%s&log=%s&id=%s",
		r.base, url.QueryEscape(r.namespace), url.QueryEscape(r.logName), url.QueryEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Section{}, err
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return Section{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.hasCur {
			return r.current, nil
		}
		return Section{}, fmt.Errorf("notification: 304 without cached current section")
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Section{}, fmt.Errorf("notification: fetch section %q: %s: %s", id, resp.Status, body)
	}

	var sec Section
	if err := json.NewDecoder(resp.Body).Decode(&sec); err != nil {
		return Section{}, fmt.Errorf("notification: decode section %q: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if sec.Archived {
		r.archived[sec.ID] = sec
		if id != sec.ID {
			r.archived[id] = sec
		}
	} else if id == CurrentID {
		r.current = sec
		r.curETag = resp.Header.Get("ETag")
		r.hasCur = r.curETag != ""
	}
	return sec, nil
}
