package core

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"tenantkit/internal/types"
)

// SQSSender is the subset of *sqs.Client QueueDispatcher uses.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// QueueDispatcher enqueues email messages on SQS for the email worker.
type QueueDispatcher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

func NewQueueDispatcher(client SQSSender, queueURL string, logger *slog.Logger) *QueueDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueDispatcher{client: client, queueURL: queueURL, logger: logger}
}

// Dispatch serializes msg as the SQS message body. The template name travels
// as a message attribute so the queue can be filtered without parsing.
func (d *QueueDispatcher) Dispatch(ctx context.Context, msg types.EmailMessage) error {
	if msg.RequestID == "" {
		msg.RequestID = types.GetRequestID(ctx)
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode email message", err)
	}

	_, err = d.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(d.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"template": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(msg.Template)),
			},
		},
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamQueue, "failed to enqueue email", err)
	}

	d.logger.InfoContext(ctx, "email enqueued",
		"message_id", msg.ID,
		"template", msg.Template,
	)
	return nil
}

var _ Dispatcher = (*QueueDispatcher)(nil)
