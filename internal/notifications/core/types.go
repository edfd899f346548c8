// Package core holds the email dispatch plumbing shared by the API and the
// email worker: the Dispatcher contract, the SQS-backed dispatcher and
// delivery metrics.
package core

import (
	"context"
	"time"

	"tenantkit/internal/types"
)

// Dispatcher hands an email off for delivery. Implementations either enqueue
// it (QueueDispatcher) or render and send inline.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg types.EmailMessage) error
}

// MetricResult is the outcome dimension of a delivery metric.
type MetricResult string

const (
	MetricSuccess MetricResult = "success"
	MetricFailed  MetricResult = "failed"
	MetricBlocked MetricResult = "blocked"
)

// Metric names and dimensions.
const (
	DefaultMetricNamespace = "TenantKit"
	MetricEmailDelivery    = "EmailDelivery"
	MetricEmailLatency     = "EmailDeliveryLatency"
	MetricEmailQueueLag    = "EmailQueueLag"
	DimTemplate            = "Template"
	DimResult              = "Result"
)

// Metrics records email delivery outcomes. Implementations must not fail the
// delivery they observe.
type Metrics interface {
	RecordDelivery(ctx context.Context, template types.EmailTemplate, result MetricResult)
	RecordLatency(ctx context.Context, template types.EmailTemplate, d time.Duration)
	RecordQueueLag(ctx context.Context, lag time.Duration)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) RecordDelivery(context.Context, types.EmailTemplate, MetricResult) {}
func (NoopMetrics) RecordLatency(context.Context, types.EmailTemplate, time.Duration) {}
func (NoopMetrics) RecordQueueLag(context.Context, time.Duration)                     {}
