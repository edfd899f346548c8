package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tenantkit/internal/types"
)

// SessionPurger is satisfied by *db.SessionRepository.
type SessionPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// InvitationPurger is satisfied by *db.InvitationRepository.
type InvitationPurger interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditStore is the audit_logs access archival needs. *db.AuditRepository
// satisfies it.
type AuditStore interface {
	ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*types.AuditLogEntry, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}

// Archiver stores one serialized batch of audit entries under key.
type Archiver interface {
	UploadArchive(ctx context.Context, key string, data []byte) error
}

// CleanupService runs the maintenance tasks.
type CleanupService struct {
	sessions    SessionPurger
	invitations InvitationPurger
	audit       AuditStore
	archiver    Archiver // nil: expired audit entries are deleted, not archived
	logger      *slog.Logger
}

// NewCleanupService wires the repositories. archiver may be nil.
func NewCleanupService(sessions SessionPurger, invitations InvitationPurger, audit AuditStore, archiver Archiver, logger *slog.Logger) *CleanupService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupService{
		sessions:    sessions,
		invitations: invitations,
		audit:       audit,
		archiver:    archiver,
		logger:      logger,
	}
}

// PurgeExpiredSessions deletes every session that expired before now.
func (c *CleanupService) PurgeExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	n, err := c.sessions.DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	if n > 0 {
		c.logger.InfoContext(ctx, "purged expired sessions", "count", n)
	}
	return int(n), nil
}

// PurgeExpiredInvitations deletes invitations that expired more than grace
// ago. Recently expired ones stay listable so admins can see and resend them.
func (c *CleanupService) PurgeExpiredInvitations(ctx context.Context, now time.Time, grace time.Duration) (int, error) {
	cutoff := now.Add(-grace)
	n, err := c.invitations.DeleteExpired(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting expired invitations: %w", err)
	}
	if n > 0 {
		c.logger.InfoContext(ctx, "purged expired invitations",
			"count", n,
			"cutoff", cutoff.Format(time.RFC3339),
		)
	}
	return int(n), nil
}

// ArchiveAuditLogs moves entries older than retention to cold storage in
// batches: list, upload, then delete what was uploaded. Without an archiver
// nothing is touched.
func (c *CleanupService) ArchiveAuditLogs(ctx context.Context, now time.Time, retention time.Duration, batchSize int) (int, error) {
	cutoff := now.Add(-retention)

	if c.archiver == nil {
		c.logger.WarnContext(ctx, "audit archive not configured, skipping archival",
			"cutoff", cutoff.Format(time.RFC3339),
		)
		return 0, nil
	}

	total := 0
	for batch := 0; ; batch++ {
		entries, err := c.audit.ListOlderThan(ctx, cutoff, batchSize)
		if err != nil {
			return total, fmt.Errorf("listing audit logs for archival: %w", err)
		}
		if len(entries) == 0 {
			break
		}

		data, err := encodeAuditBatch(entries)
		if err != nil {
			return total, fmt.Errorf("encoding audit batch: %w", err)
		}
		key := archiveKey(now, batch)
		if err := c.archiver.UploadArchive(ctx, key, data); err != nil {
			return total, fmt.Errorf("uploading audit archive %s: %w", key, err)
		}

		ids := make([]string, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
		}
		deleted, err := c.audit.DeleteByIDs(ctx, ids)
		if err != nil {
			return total, fmt.Errorf("deleting archived audit logs: %w", err)
		}
		total += int(deleted)

		c.logger.InfoContext(ctx, "archived audit log batch",
			"batch_size", deleted,
			"key", key,
			"total_archived", total,
		)

		if len(entries) < batchSize {
			break
		}
	}
	return total, nil
}

func archiveKey(now time.Time, batch int) string {
	return fmt.Sprintf("audit/%d/%02d/%s_%03d.jsonl.zst",
		now.Year(), now.Month(), now.Format("20060102T150405Z"), batch)
}
