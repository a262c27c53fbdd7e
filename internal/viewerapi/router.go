// Package viewerapi provides the viewer's local HTTP debug/control surface:
// a liveness probe, a read-only projection snapshot, and range-filter
// control endpoints. A non-blocking HTTP API, rather than a console reader
// typing add/clear/quit at a terminal, keeps the viewer's receiver loop
// from ever stalling on operator input.
package viewerapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter returns a configured chi.Router for the viewer's debug/control
// API.
//
// Route layout:
//
//	GET    /healthz            – liveness probe
//	GET    /api/v1/snapshot    – current projection snapshot
//	POST   /api/v1/ranges      – add address ranges to the active filter
//	DELETE /api/v1/ranges      – clear the active range filter
//
// This surface is meant to be bound to a loopback address only and carries
// no JWT middleware, since it is a local operator/tooling control plane
// rather than a multi-tenant service.
func NewRouter(srv *Server) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", srv.handleHealthz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/snapshot", srv.handleGetSnapshot)
		r.Post("/ranges", srv.handlePostRanges)
		r.Delete("/ranges", srv.handleDeleteRanges)
	})

	return r
}
