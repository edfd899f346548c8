package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All handlers MUST use these constants instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidEmail ErrorCode = "validation_invalid_email"
	ErrCodeValidationInvalidSlug  ErrorCode = "validation_invalid_slug"
	ErrCodeValidationInvalidRole  ErrorCode = "validation_invalid_role"
	ErrCodeValidationPassword     ErrorCode = "validation_weak_password"
	ErrCodeValidationSelfTarget   ErrorCode = "validation_self_target"
	ErrCodeValidationBody         ErrorCode = "validation_invalid_body"

	// Auth (401)
	ErrCodeAuthTokenMissing   ErrorCode = "auth_token_missing"
	ErrCodeAuthTokenInvalid   ErrorCode = "auth_token_invalid"
	ErrCodeAuthSessionExpired ErrorCode = "auth_session_expired"
	ErrCodeAuthInvalidCreds   ErrorCode = "auth_invalid_credentials"
	ErrCodeAuthLocked         ErrorCode = "auth_account_locked"
	ErrCodeAuthPasswordNotSet ErrorCode = "auth_password_not_set"

	// Permission (403)
	ErrCodePermissionRole          ErrorCode = "permission_role_insufficient"
	ErrCodePermissionNotMember     ErrorCode = "permission_not_a_member"
	ErrCodePermissionEmailMismatch ErrorCode = "permission_email_mismatch"
	ErrCodePermissionSelfRemoval   ErrorCode = "permission_owner_self_removal"

	// Not Found (404)
	ErrCodeNotFoundOrg        ErrorCode = "not_found_organization"
	ErrCodeNotFoundUser       ErrorCode = "not_found_user"
	ErrCodeNotFoundMembership ErrorCode = "not_found_membership"
	ErrCodeNotFoundInvitation ErrorCode = "not_found_invitation"
	ErrCodeNotFoundFeature    ErrorCode = "not_found_feature"
	ErrCodeNotFoundSession    ErrorCode = "not_found_session"

	// Gone (410)
	ErrCodeInvitationExpired ErrorCode = "invitation_expired"

	// Conflict (409)
	ErrCodeConflictSlug              ErrorCode = "conflict_slug_taken"
	ErrCodeConflictEmail             ErrorCode = "conflict_email_exists"
	ErrCodeConflictAlreadyMember     ErrorCode = "conflict_already_member"
	ErrCodeConflictInvitationPending ErrorCode = "conflict_invitation_pending"
	ErrCodeConflictLastOwner         ErrorCode = "conflict_last_owner"
	ErrCodeConflictNotOwner          ErrorCode = "conflict_not_owner"
	ErrCodeConflictConcurrent        ErrorCode = "conflict_concurrent_modification"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB            ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected    ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamStripe        ErrorCode = "upstream_stripe_unavailable"
	ErrCodeUpstreamEmailProvider ErrorCode = "upstream_email_provider_unavailable"
	ErrCodeUpstreamQueue         ErrorCode = "upstream_queue_unavailable"
	ErrCodeUpstreamUnavailable   ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited   ErrorCode = "upstream_rate_limited"

	// Delivery
	ErrCodeEmailBlocked ErrorCode = "email_blocked"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the API layer to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case s == string(ErrCodeAuthLocked):
		return http.StatusTooManyRequests // 429
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized // 401
	case strings.HasPrefix(s, "permission_"):
		return http.StatusForbidden // 403
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case s == string(ErrCodeInvitationExpired):
		return http.StatusGone // 410
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict // 409
	case s == string(ErrCodeEmailBlocked):
		return http.StatusForbidden // 403
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the service.
// All domain and handler errors should be expressed as AppError to enable
// consistent error formatting, HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// CodeOf returns the ErrorCode carried by err, or "" when err is not an
// AppError (anywhere in its chain).
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
