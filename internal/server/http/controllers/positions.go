package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/rzbill/ledger/internal/runtime"
)

// PositionsController handles durable reader positions per consumer group.
type PositionsController struct {
	rt *runtime.Runtime
}

// NewPositionsController creates a new positions controller.
func NewPositionsController(rt *runtime.Runtime) *PositionsController {
	return &PositionsController{rt: rt}
}

// RegisterRoutes registers position routes with the given mux.
func (c *PositionsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/positions/commit", c.handleCommit)
	mux.HandleFunc("/v1/positions", c.handleGet)
}

func (c *PositionsController) namespaceOrDefault(ns string) string {
	if ns == "" {
		return c.rt.Config().DefaultNamespaceName
	}
	return ns
}

// handleCommit stores a group's consumed count. Stale commits are accepted
// and ignored, so retries and out-of-order deliveries are harmless.
func (c *PositionsController) handleCommit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req commitPositionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Log == "" || req.Group == "" {
		writeError(w, http.StatusBadRequest, "log and group are required")
		return
	}
	ns := c.namespaceOrDefault(req.Namespace)
	if err := c.rt.Positions(ns).Commit(req.Log, req.Group, req.Position); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGet returns a group's stored position; Known is false when the group
// never committed.
func (c *PositionsController) handleGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	logName, group := q.Get("log"), q.Get("group")
	if logName == "" || group == "" {
		writeError(w, http.StatusBadRequest, "log and group are required")
		return
	}
	ns := c.namespaceOrDefault(q.Get("namespace"))
	pos, ok := c.rt.Positions(ns).Get(logName, group)
	writeJSON(w, positionResp{Group: group, Position: pos, Known: ok})
}
