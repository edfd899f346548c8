// Package main is the entrypoint for the Archiver Lambda function.
//
// EventBridge rules invoke it with a MaintenancePayload naming one task:
// purging expired sessions, purging long-expired invitations, or moving old
// audit entries to the archive bucket. In local mode the payload is read
// from stdin instead.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"tenantkit/internal/config"
	"tenantkit/internal/db"
	"tenantkit/internal/scheduler"
)

// archiverConfig reads the same variable names as the API where they
// overlap.
type archiverConfig struct {
	Environment    string        `envconfig:"APP_ENV" default:"local"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	Region         string        `envconfig:"AWS_REGION" default:"us-east-1"`
	EndpointURL    string        `envconfig:"AWS_ENDPOINT_URL"`
	ArchiveBucket  string        `envconfig:"AUDIT_ARCHIVE_BUCKET"`
	AuditRetention time.Duration `envconfig:"AUDIT_RETENTION" default:"8760h"`
	BatchSize      int           `envconfig:"AUDIT_ARCHIVE_BATCH" default:"500"`
	InvitationKeep time.Duration `envconfig:"INVITATION_PURGE_GRACE" default:"720h"`

	Database config.DatabaseConfig
}

// Cleanup is satisfied by *scheduler.CleanupService.
type Cleanup interface {
	PurgeExpiredSessions(ctx context.Context, now time.Time) (int, error)
	PurgeExpiredInvitations(ctx context.Context, now time.Time, grace time.Duration) (int, error)
	ArchiveAuditLogs(ctx context.Context, now time.Time, retention time.Duration, batchSize int) (int, error)
}

// Handler routes maintenance payloads to the cleanup service.
type Handler struct {
	Cleanup        Cleanup
	AuditRetention time.Duration
	BatchSize      int
	InvitationKeep time.Duration
	Logger         *slog.Logger
}

// Handle runs the task named by payload and reports how many rows it touched.
func (h *Handler) Handle(ctx context.Context, payload scheduler.MaintenancePayload) (string, error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := time.Now().UTC()
	if payload.ReferenceTime != nil {
		now = payload.ReferenceTime.UTC()
	}
	if payload.Task == "" {
		return "", fmt.Errorf("empty task type in maintenance payload")
	}

	logger.InfoContext(ctx, "archiver handler invoked",
		"task", payload.Task,
		"reference_time", now.Format(time.RFC3339),
	)

	items, err := h.dispatch(ctx, payload.Task, now)
	if err != nil {
		logger.ErrorContext(ctx, "task execution failed",
			"task", payload.Task,
			"error", err,
			"items_before_error", items,
		)
		return "", fmt.Errorf("task %s failed: %w", payload.Task, err)
	}

	result := fmt.Sprintf("task %s complete: %d items processed", payload.Task, items)
	logger.InfoContext(ctx, result, "task", payload.Task, "items", items)
	return result, nil
}

func (h *Handler) dispatch(ctx context.Context, task scheduler.TaskType, now time.Time) (int, error) {
	switch task {
	case scheduler.TaskPurgeSessions:
		return h.Cleanup.PurgeExpiredSessions(ctx, now)
	case scheduler.TaskPurgeInvitations:
		return h.Cleanup.PurgeExpiredInvitations(ctx, now, h.InvitationKeep)
	case scheduler.TaskArchiveAuditLogs:
		return h.Cleanup.ArchiveAuditLogs(ctx, now, h.AuditRetention, h.BatchSize)
	default:
		return 0, fmt.Errorf("unknown task type: %q", task)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func main() {
	_ = godotenv.Load()

	if err := config.ResolveSecrets(config.NewSecretProvider(os.Getenv("APP_ENV"), os.Getenv("AWS_REGION"))); err != nil {
		fmt.Fprintf(os.Stderr, "archiver: resolving secrets: %v\n", err)
		os.Exit(1)
	}

	var cfg archiverConfig
	if err := envconfig.Process("", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "archiver: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel).With("service", "tenantkit-archiver")
	logger.Info("archiver initializing (cold start)", "archive_bucket", cfg.ArchiveBucket)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to open database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	var archiver scheduler.Archiver
	if cfg.ArchiveBucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			logger.Error("failed to load AWS SDK config", "error", err)
			os.Exit(1)
		}
		if cfg.EndpointURL != "" {
			awsCfg.BaseEndpoint = aws.String(cfg.EndpointURL)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = cfg.EndpointURL != ""
		})
		archiver = scheduler.NewS3Archiver(client, cfg.ArchiveBucket)
	}

	repos := db.NewRepositories(pool)
	handler := &Handler{
		Cleanup:        scheduler.NewCleanupService(repos.Sessions, repos.Invitations, repos.Audit, archiver, logger),
		AuditRetention: cfg.AuditRetention,
		BatchSize:      cfg.BatchSize,
		InvitationKeep: cfg.InvitationKeep,
		Logger:         logger,
	}

	// echo '{"task":"purge_sessions"}' | go run ./cmd/archiver
	if cfg.Environment == "local" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil || len(raw) == 0 {
			logger.Error("no maintenance payload on stdin", "error", err)
			os.Exit(1)
		}
		var payload scheduler.MaintenancePayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			logger.Error("failed to parse stdin as maintenance payload", "error", err)
			os.Exit(1)
		}
		if _, err := handler.Handle(ctx, payload); err != nil {
			os.Exit(1)
		}
		return
	}

	lambda.Start(handler.Handle)
}
