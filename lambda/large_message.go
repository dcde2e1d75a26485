package lambda

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"golang.org/x/sync/semaphore"

	"github.com/queueglue/plugins/logging"
)

// extendedPayloadSizeAttr marks a record whose body is a payload pointer.
const extendedPayloadSizeAttr = "ExtendedPayloadSize"

// ExtendedQueue sends to a queue that offloads large payloads. It is
// satisfied by *sqs.Client configured with a payload store.
type ExtendedQueue interface {
	Send(ctx context.Context, body string) error
	ResolvePayload(ctx context.Context, pointer string) (string, error)
	DeletePayload(ctx context.Context, pointer string) error
}

// LargeMessageHandler forwards records whose payloads were offloaded by the
// producer. Each payload is resolved, re-sent through the forward queue
// (which offloads it again) and the original stored payload is deleted.
type LargeMessageHandler struct {
	queue       ExtendedQueue
	concurrency int64
	logger      logging.Logger
}

// NewLargeMessageHandler returns a handler that processes up to concurrency
// records at once. Values below 1 are treated as 1.
func NewLargeMessageHandler(queue ExtendedQueue, concurrency int, logger logging.Logger) *LargeMessageHandler {
	return &LargeMessageHandler{
		queue:       queue,
		concurrency: int64(max(concurrency, 1)),
		logger:      logger.WithField("handler", "large-forward"),
	}
}

// Handle processes every record and reports the ones that failed as batch
// item failures. Records without the ExtendedPayloadSize attribute are
// forwarded as they are.
func (h *LargeMessageHandler) Handle(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	logger := withRequestID(ctx, h.logger)

	sem := semaphore.NewWeighted(h.concurrency)
	failed := make([]bool, len(event.Records))

	var wg sync.WaitGroup

	for i, r := range event.Records {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled: every record not yet started is retried.
			for j := i; j < len(event.Records); j++ {
				failed[j] = true
			}
			break
		}

		wg.Add(1)

		go func() {
			defer wg.Done()
			defer sem.Release(1)

			if err := h.forward(ctx, r); err != nil {
				logger.WithField("message_id", r.MessageId).Errorf("Failed to forward record: %v", err)
				failed[i] = true
			}
		}()
	}

	wg.Wait()

	var response events.SQSEventResponse

	for i, r := range event.Records {
		if failed[i] {
			response.BatchItemFailures = append(response.BatchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: r.MessageId,
			})
		}
	}

	logger.WithField("records", len(event.Records)).
		WithField("failed", len(response.BatchItemFailures)).
		Info("Large records forwarded")

	return response, nil
}

func (h *LargeMessageHandler) forward(ctx context.Context, record events.SQSMessage) error {
	if _, ok := record.MessageAttributes[extendedPayloadSizeAttr]; !ok {
		return h.queue.Send(ctx, record.Body)
	}

	body, err := h.queue.ResolvePayload(ctx, record.Body)
	if err != nil {
		return err
	}

	if err := h.queue.Send(ctx, body); err != nil {
		return err
	}

	// The record has been forwarded; a leftover payload only costs storage
	// until it expires, so this does not fail the record.
	if err := h.queue.DeletePayload(ctx, record.Body); err != nil {
		h.logger.WithField("message_id", record.MessageId).Warnf("Failed to delete forwarded payload: %v", err)
	}

	return nil
}
