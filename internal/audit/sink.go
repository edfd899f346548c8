// Package audit records privileged actions into the per-organization audit
// trail and serves it back one page at a time.
package audit

import (
	"context"
	"log/slog"

	"tenantkit/internal/features"
	"tenantkit/internal/types"
)

// Writer persists audit entries. *db.AuditRepository satisfies it.
type Writer interface {
	Insert(ctx context.Context, entry *types.AuditLogEntry) error
}

// FlagChecker reports whether a feature is enabled. *features.Resolver
// satisfies it.
type FlagChecker interface {
	IsEnabled(key string) bool
}

// Event is a privileged action to record. An empty ActorID is stored as NULL.
type Event struct {
	OrganizationID string
	ActorID        string
	Action         string
	TargetType     string
	TargetID       string
	Metadata       map[string]any
}

// Recorder is the write side of the audit trail as services see it.
type Recorder interface {
	Record(ctx context.Context, e Event)
}

// Sink writes events when the auditLog feature is on. Record never fails the
// caller: persistence errors are logged and dropped.
type Sink struct {
	writer Writer
	flags  FlagChecker
	clock  types.Clock
	logger *slog.Logger
}

func NewSink(writer Writer, flags FlagChecker, clock types.Clock, logger *slog.Logger) *Sink {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{writer: writer, flags: flags, clock: clock, logger: logger}
}

// Record persists e with the client info stored in ctx by
// ClientInfoMiddleware.
func (s *Sink) Record(ctx context.Context, e Event) {
	if s == nil || s.writer == nil {
		return
	}
	if s.flags != nil && !s.flags.IsEnabled(features.AuditLog) {
		return
	}

	client := types.GetClientInfo(ctx)
	entry := &types.AuditLogEntry{
		OrganizationID: e.OrganizationID,
		ActorID:        optional(e.ActorID),
		Action:         e.Action,
		TargetType:     e.TargetType,
		TargetID:       e.TargetID,
		Metadata:       types.AuditMetadata(e.Metadata),
		IPAddress:      optional(client.IPAddress),
		UserAgent:      optional(client.UserAgent),
		CreatedAt:      s.clock.Now(),
	}

	if err := s.writer.Insert(ctx, entry); err != nil {
		s.logger.WarnContext(ctx, "failed to write audit log",
			"action", e.Action,
			"organization_id", e.OrganizationID,
			"target_id", e.TargetID,
			"error", err,
		)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Discard is a Recorder that drops every event.
type Discard struct{}

func (Discard) Record(context.Context, Event) {}
