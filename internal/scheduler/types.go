// Package scheduler implements the periodic maintenance jobs run by
// cmd/archiver: purging expired sessions and invitations and moving old audit
// entries to cold storage.
package scheduler

import "time"

// TaskType names the job an EventBridge rule asks the archiver to run.
type TaskType string

const (
	TaskPurgeSessions    TaskType = "purge_sessions"
	TaskPurgeInvitations TaskType = "purge_invitations"
	TaskArchiveAuditLogs TaskType = "archive_audit_logs"
)

// MaintenancePayload is the event body the archiver receives, e.g.
//
//	{"task": "archive_audit_logs", "reference_time": "2026-02-06T03:00:00Z"}
//
// ReferenceTime overrides "now" for manual runs and backfills.
type MaintenancePayload struct {
	Task          TaskType   `json:"task"`
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}
