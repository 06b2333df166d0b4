package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"

	"github.com/rzbill/ledger/internal/namespace"
	"github.com/rzbill/ledger/internal/notification"
	"github.com/rzbill/ledger/internal/runtime"
	"github.com/rzbill/ledger/internal/sequenced"
)

// LogsController handles log management, appends, and section reads.
type LogsController struct {
	rt *runtime.Runtime
}

// NewLogsController creates a new logs controller.
func NewLogsController(rt *runtime.Runtime) *LogsController {
	return &LogsController{rt: rt}
}

// RegisterRoutes registers log routes with the given mux.
//
// This method sets up HTTP endpoints for:
// - Log management (/v1/logs/create, /v1/logs/list)
// - Appending items (/v1/logs/append)
// - Section reads with HTTP caching (/v1/logs/section)
func (c *LogsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/logs/create", c.handleCreate)
	mux.HandleFunc("/v1/logs/list", c.handleList)
	mux.HandleFunc("/v1/logs/append", c.handleAppend)
	mux.HandleFunc("/v1/logs/section", c.handleSection)
}

func (c *LogsController) namespaceOrDefault(ns string) string {
	if ns == "" {
		return c.rt.Config().DefaultNamespaceName
	}
	return ns
}

// handleCreate creates a log (idempotently) within a namespace.
func (c *LogsController) handleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req createLogReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	ns := c.namespaceOrDefault(req.Namespace)
	backing := namespace.Backing(req.Backing)
	if req.Backing == "" {
		backing = namespace.BackingBigArray
	}
	l, err := c.rt.CreateLog(ns, req.Log, backing, req.ArraySize, req.SectionSize)
	if err != nil {
		switch {
		case errors.Is(err, runtime.ErrNamespaceNotAllowed):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, runtime.ErrNamespaceNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	meta := l.Meta()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(createLogResp{
		Namespace:   ns,
		Log:         meta.Name,
		Backing:     string(meta.Backing),
		ArraySize:   meta.ArraySize,
		SectionSize: meta.SectionSize,
	})
}

// handleList lists the logs of a namespace.
func (c *LogsController) handleList(w http.ResponseWriter, r *http.Request) {
	ns := c.namespaceOrDefault(r.URL.Query().Get("namespace"))
	metas, err := c.rt.ListLogs(ns)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list logs")
		return
	}
	out := make([]createLogResp, 0, len(metas))
	for _, m := range metas {
		out = append(out, createLogResp{
			Namespace:   ns,
			Log:         m.Name,
			Backing:     string(m.Backing),
			ArraySize:   m.ArraySize,
			SectionSize: m.SectionSize,
		})
	}
	writeJSON(w, map[string]any{"logs": out})
}

// handleAppend writes one item. Without a position the server assigns the
// next one; with a position the write is conditional and a taken slot is 409.
func (c *LogsController) handleAppend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req appendReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Topic == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}
	l, err := c.rt.OpenLog(c.namespaceOrDefault(req.Namespace), req.Log)
	if err != nil {
		if errors.Is(err, runtime.ErrLogNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if req.Position != nil {
		err = l.AppendAt(r.Context(), *req.Position, req.Topic, req.Data)
		switch {
		case err == nil:
			writeJSON(w, appendResp{Position: *req.Position})
		case errors.Is(err, sequenced.ErrPositionTaken):
			writeError(w, http.StatusConflict, "position already assigned")
		case errors.Is(err, sequenced.ErrPayloadTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	pos, err := l.Append(r.Context(), req.Topic, req.Data)
	if err != nil {
		switch {
		case errors.Is(err, sequenced.ErrPayloadTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, appendResp{Position: pos})
}

// handleSection serves one section with caching headers. Archived sections
// are immutable and cacheable forever; the current section carries an ETag
// and answers If-None-Match with 304.
func (c *LogsController) handleSection(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := q.Get("id")
	if id == "" {
		id = notification.CurrentID
	}
	l, err := c.rt.OpenLog(c.namespaceOrDefault(q.Get("namespace")), q.Get("log"))
	if err != nil {
		if errors.Is(err, runtime.ErrLogNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sec, err := l.Section(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	body, err := json.Marshal(sec)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if sec.Archived {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	} else {
		etag := etagFor(body)
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

// etagFor derives a strong validator from the encoded section bytes, so any
// content change (new items, a filled gap) changes the tag.
func etagFor(body []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(body)
	return fmt.Sprintf("%q", fmt.Sprintf("%016x", h.Sum64()))
}
