package controllers

import (
	"net/http"

	"github.com/rzbill/ledger/internal/runtime"
)

// ControllerRegistry manages all HTTP controllers.
//
// It provides a centralized way to register all controller routes
// and manages the lifecycle of individual controllers.
type ControllerRegistry struct {
	general   *GeneralController
	logs      *LogsController
	positions *PositionsController
	follow    *FollowController
}

// NewControllerRegistry creates a new controller registry.
func NewControllerRegistry(rt *runtime.Runtime) *ControllerRegistry {
	return &ControllerRegistry{
		general:   NewGeneralController(rt),
		logs:      NewLogsController(rt),
		positions: NewPositionsController(rt),
		follow:    NewFollowController(rt),
	}
}

// RegisterAllRoutes registers all controller routes with the given mux.
//
// This method sets up all HTTP endpoints for the ledger service: general
// endpoints (health, namespaces), log endpoints (create, append, section),
// durable positions, and the SSE follow endpoint.
func (r *ControllerRegistry) RegisterAllRoutes(mux *http.ServeMux) {
	r.general.RegisterRoutes(mux)
	r.logs.RegisterRoutes(mux)
	r.positions.RegisterRoutes(mux)
	r.follow.RegisterRoutes(mux)
}
