// Package main is the entrypoint for the Email Worker Lambda function.
//
// The worker consumes EmailMessage envelopes from the email SQS queue,
// renders them in the recipient's locale and delivers them through the
// configured provider. Failed messages are reported as batch item failures
// so SQS redelivers only those; blocked recipients and malformed messages are
// acknowledged and dropped.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"tenantkit/internal/i18n"
	"tenantkit/internal/notifications/core"
	emailpkg "tenantkit/internal/notifications/email"
	"tenantkit/internal/types"
)

// workerConfig is the subset of settings the worker needs. It reads the same
// variable names as the API's config package.
type workerConfig struct {
	Environment     string             `envconfig:"APP_ENV" default:"local"`
	LogLevel        string             `envconfig:"LOG_LEVEL" default:"info"`
	Provider        string             `envconfig:"EMAIL_PROVIDER" default:"stub"`
	FromAddress     string             `envconfig:"EMAIL_FROM_ADDRESS" default:"no-reply@tenantkit.dev"`
	FromName        string             `envconfig:"EMAIL_FROM_NAME" default:"TenantKit"`
	SendGridAPIKey  types.SecretString `envconfig:"SENDGRID_API_KEY"`
	SESConfigSet    string             `envconfig:"SES_CONFIGURATION_SET"`
	MetricNamespace string             `envconfig:"METRIC_NAMESPACE" default:"TenantKit"`
	EnableMetrics   bool               `envconfig:"ENABLE_METRICS" default:"true"`
}

// EmailSender is satisfied by *email.Sender.
type EmailSender interface {
	Send(ctx context.Context, msg types.EmailMessage) error
}

// Handler holds the dependencies for the email worker Lambda handler.
type Handler struct {
	sender  EmailSender
	metrics core.Metrics
	clock   types.Clock
	logger  *slog.Logger
}

// Handle processes an SQS batch. Each record is independent; only retryable
// failures are returned in BatchItemFailures.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processMessage(ctx, record); err != nil {
			h.logger.ErrorContext(ctx, "failed to process SQS message",
				"message_id", record.MessageId,
				"error", err,
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

func (h *Handler) processMessage(ctx context.Context, record events.SQSMessage) error {
	var msg types.EmailMessage
	if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
		// Permanent; redelivery would fail the same way.
		h.logger.ErrorContext(ctx, "failed to unmarshal email message",
			"message_id", record.MessageId,
			"error", err,
		)
		return nil
	}

	if sent, ok := record.Attributes["SentTimestamp"]; ok {
		if ts, err := parseMillisTimestamp(sent); err == nil {
			h.metrics.RecordQueueLag(ctx, h.clock.Now().Sub(ts))
		}
	}

	if msg.RequestID != "" {
		ctx = types.WithRequestID(ctx, msg.RequestID)
	}

	err := h.sender.Send(ctx, msg)
	if err != nil && emailpkg.IsBlocklistError(err) {
		return nil
	}
	return err
}

// parseMillisTimestamp parses the millisecond epoch SQS uses for
// SentTimestamp.
func parseMillisTimestamp(ms string) (time.Time, error) {
	millis, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(millis), nil
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

	var cfg workerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "email-worker: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel).With("service", "tenantkit-email-worker")
	logger.Info("email worker initializing (cold start)", "provider", cfg.Provider)

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		logger.Error("failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	provider, err := emailpkg.NewProvider(emailpkg.ProviderConfig{
		Kind:           cfg.Provider,
		SendGridAPIKey: cfg.SendGridAPIKey,
		SESConfigSet:   cfg.SESConfigSet,
	}, awsCfg, logger)
	if err != nil {
		logger.Error("failed to build email provider", "error", err)
		os.Exit(1)
	}

	renderer, err := emailpkg.NewRenderer(i18n.MustNew(), types.SenderIdentity{
		Name:    cfg.FromName,
		Address: cfg.FromAddress,
	})
	if err != nil {
		logger.Error("failed to initialize renderer", "error", err)
		os.Exit(1)
	}

	var metrics core.Metrics = core.NoopMetrics{}
	if cfg.EnableMetrics {
		metrics = core.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.MetricNamespace, logger)
	}

	handler := &Handler{
		sender:  emailpkg.NewSender(renderer, provider, metrics, types.RealClock{}, logger),
		metrics: metrics,
		clock:   types.RealClock{},
		logger:  logger,
	}

	// Local mode: read one SQS event from stdin instead of starting the
	// Lambda runtime.
	//   echo '{"Records":[{"messageId":"1","body":"{...}"}]}' | go run ./cmd/email-worker
	if cfg.Environment == "local" {
		payload, err := io.ReadAll(os.Stdin)
		if err != nil || len(payload) == 0 {
			logger.Error("no SQS event on stdin", "error", err)
			os.Exit(1)
		}
		var sqsEvent events.SQSEvent
		if err := json.Unmarshal(payload, &sqsEvent); err != nil {
			logger.Error("failed to parse stdin as SQS event", "error", err)
			os.Exit(1)
		}
		response, _ := handler.Handle(context.Background(), sqsEvent)
		logger.Info("local run completed",
			"records", len(sqsEvent.Records),
			"failures", len(response.BatchItemFailures),
		)
		return
	}

	lambda.Start(handler.Handle)
}
