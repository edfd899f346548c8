package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"tenantkit/internal/core"
)

// FeatureSnapshot exposes the resolved feature flags.
type FeatureSnapshot interface {
	Snapshot() map[string]bool
}

// FeatureHandler serves GET /features.
type FeatureHandler struct {
	flags FeatureSnapshot
}

// NewFeatureHandler builds a FeatureHandler.
func NewFeatureHandler(flags FeatureSnapshot) *FeatureHandler {
	return &FeatureHandler{flags: flags}
}

// RegisterRoutes mounts the public feature endpoint.
func (h *FeatureHandler) RegisterRoutes(r chi.Router) {
	r.Get("/features", h.List)
}

// List returns every known flag with its resolved value.
func (h *FeatureHandler) List(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, map[string]any{"features": h.flags.Snapshot()})
}
