package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tenantkit/internal/core"
	"tenantkit/internal/policy"
	"tenantkit/internal/types"
)

// AuditLogReader pages through an organization's audit trail.
type AuditLogReader interface {
	List(ctx context.Context, orgID string, params types.PageParams) (*types.AuditLogPage, error)
}

// AuditLogHandler serves GET /{tenant}/audit-logs. It is mounted behind the
// auditLog feature gate, so a disabled flag answers 404 before this runs.
type AuditLogHandler struct {
	reader AuditLogReader
}

// NewAuditLogHandler builds an AuditLogHandler.
func NewAuditLogHandler(reader AuditLogReader) *AuditLogHandler {
	return &AuditLogHandler{reader: reader}
}

// RegisterTenantRoutes mounts endpoints under /{tenant}.
func (h *AuditLogHandler) RegisterTenantRoutes(r chi.Router) {
	r.Get("/audit-logs", h.List)
}

// List handles GET /{tenant}/audit-logs?page=&pageSize=. Owners and admins
// only. Missing or unparsable values fall back to the defaults and
// pageSize is clamped to 100.
func (h *AuditLogHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	if err := policy.Require(caller.Role, policy.ResourceReports, policy.ActionRead); err != nil {
		core.Error(w, r, err)
		return
	}

	q := r.URL.Query()
	params := types.NewPageParams(queryInt(q.Get("page")), queryInt(q.Get("pageSize")))

	page, err := h.reader.List(r.Context(), caller.OrganizationID, params)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, page)
}

// queryInt parses raw, returning 0 when it is empty or not an integer.
func queryInt(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
