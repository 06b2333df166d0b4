package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rzbill/ledger/internal/runtime"
)

// GeneralController handles general HTTP endpoints like health and namespaces.
type GeneralController struct {
	rt *runtime.Runtime
}

// NewGeneralController creates a new general controller.
func NewGeneralController(rt *runtime.Runtime) *GeneralController {
	return &GeneralController{rt: rt}
}

// RegisterRoutes registers general routes with the given mux.
//
// This method sets up HTTP endpoints for:
// - Health checks (/v1/healthz)
// - Namespace management (/v1/namespaces, /v1/ns/create)
func (c *GeneralController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/healthz", c.handleHealth)
	mux.HandleFunc("/v1/ns/create", c.handleNSCreate)
}

// handleHealth returns the health status of the service.
//
// Returns 200 OK with {"status": "ok"} if healthy, 503 Service Unavailable otherwise.
func (c *GeneralController) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := c.rt.CheckHealth(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_serving")
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleNSCreate creates a new namespace.
//
// Expects a JSON body with a "namespace" field. Returns 201 Created on success.
func (c *GeneralController) handleNSCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req nsCreateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if _, err := c.rt.EnsureNamespace(req.Namespace); err != nil {
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
	writeCreated(w)
}
