package types

import "math"

// Page-size bounds for offset-paginated list endpoints.
const (
	DefaultPage     = 1
	DefaultPageSize = 25
	MaxPageSize     = 100
)

// ResponseMeta contains non-blocking metadata returned with API responses.
type ResponseMeta struct {
	Warnings []string `json:"warnings,omitempty"`
}

// PageParams is a normalized page request: Page >= 1 and
// 1 <= PageSize <= MaxPageSize.
type PageParams struct {
	Page     int
	PageSize int
}

// NewPageParams normalizes raw page inputs. Values below 1 fall back to the
// defaults, oversized pages are clamped to MaxPageSize, and page is capped so
// Offset cannot overflow.
func NewPageParams(page, pageSize int) PageParams {
	if page < 1 {
		page = DefaultPage
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if maxPage := math.MaxInt / pageSize; page > maxPage {
		page = maxPage
	}
	return PageParams{Page: page, PageSize: pageSize}
}

// Offset returns the number of rows to skip for this page.
func (p PageParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// PageCount returns max(1, ceil(total/pageSize)).
func PageCount(total, pageSize int) int {
	if pageSize < 1 || total <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

// AuditLogPage is one page of the audit trail, newest first.
type AuditLogPage struct {
	Logs      []*AuditLogEntry `json:"logs"`
	Page      int              `json:"page"`
	PageSize  int              `json:"pageSize"`
	Total     int              `json:"total"`
	PageCount int              `json:"pageCount"`
}

// Standard audit action strings.
// Handlers and services MUST use these action strings for consistency.
const (
	AuditActionOrganizationCreate     = "organization.create"
	AuditActionOrganizationUpdate     = "organization.update"
	AuditActionOrganizationLogoUpdate = "organization.logoUpdate"
	AuditActionOrganizationDelete     = "organization.delete"
	AuditActionOwnershipTransfer      = "organization.transferOwnership"

	AuditActionMemberUpdateRole = "member.updateRole"
	AuditActionMemberRemove     = "member.remove"

	AuditActionInvitationCreate = "invitation.create"
	AuditActionInvitationResend = "invitation.resend"
	AuditActionInvitationCancel = "invitation.cancel"
	AuditActionInvitationAccept = "invitation.accept"

	AuditActionSessionCreate = "session.create"
)

// Audit target types.
const (
	AuditTargetOrganization = "organization"
	AuditTargetMembership   = "membership"
	AuditTargetInvitation   = "invitation"
	AuditTargetUser         = "user"
	AuditTargetSession      = "session"
)
