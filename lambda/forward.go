package lambda

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"github.com/queueglue/plugins/logging"
	"github.com/queueglue/plugins/sqs"
)

// BatchSender sends message bodies in batches. It is satisfied by
// *sqs.Client.
type BatchSender interface {
	SendBatch(ctx context.Context, bodies []string) (*sqs.BatchResult, error)
}

// ForwardHandler forwards every record of an SQS event to another queue.
type ForwardHandler struct {
	sender BatchSender
	logger logging.Logger
}

// NewForwardHandler returns a handler that forwards records through sender.
func NewForwardHandler(sender BatchSender, logger logging.Logger) *ForwardHandler {
	return &ForwardHandler{
		sender: sender,
		logger: logger.WithField("handler", "forward"),
	}
}

// Handle sends all record bodies with a single SendBatch call, preserving
// record order. Records that were not accepted by SQS are reported as batch
// item failures. An error is returned only when no record can be accounted
// for, in which case the whole event is retried.
func (h *ForwardHandler) Handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	logger := withRequestID(ctx, h.logger).WithField("records", len(event.Records))

	bodies := make([]string, len(event.Records))
	for i, r := range event.Records {
		bodies[i] = r.Body
	}

	result, err := h.sender.SendBatch(ctx, bodies)
	if err != nil && result == nil {
		return events.SQSEventResponse{}, err
	}

	if err != nil {
		logger.Errorf("Forwarding interrupted: %v", err)
	}

	var response events.SQSEventResponse

	for i, r := range event.Records {
		if i < len(result.MessageIDs) && result.MessageIDs[i] != "" {
			continue
		}

		response.BatchItemFailures = append(response.BatchItemFailures, events.SQSBatchItemFailure{
			ItemIdentifier: r.MessageId,
		})
	}

	for _, f := range result.Failed {
		logger.WithField("message_id", event.Records[f.Index].MessageId).
			WithField("code", f.Code).
			Warnf("Record rejected: %s", f.Message)
	}

	logger.WithField("failed", len(response.BatchItemFailures)).Info("Records forwarded")

	return response, nil
}

func withRequestID(ctx context.Context, logger logging.Logger) logging.Logger {
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		return logger.WithField("request_id", lc.AwsRequestID)
	}

	return logger
}
