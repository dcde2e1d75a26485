package sqs

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"golang.org/x/sync/errgroup"
)

const (
	batchMaxRetries     = 5
	batchInitialBackoff = 50 * time.Millisecond
	batchMaxBackoff     = 2 * time.Second
)

// FailedEntry describes a message SQS rejected after all retries.
type FailedEntry struct {
	// Index is the position of the message in the input to SendBatch.
	Index       int
	ID          string
	Code        string
	Message     string
	SenderFault bool
}

// BatchResult reports the outcome of [Client.SendBatch].
type BatchResult struct {
	// MessageIDs holds the SQS message ID for each input message, by input
	// index. Entries for failed messages are empty.
	MessageIDs []string

	// Failed lists rejected messages ordered by input index.
	Failed []FailedEntry

	// Batches is the number of SendMessageBatch requests that were built.
	Batches int
}

// AllSucceeded reports whether every message was accepted.
func (r *BatchResult) AllSucceeded() bool {
	return len(r.Failed) == 0
}

// SendBatch partitions bodies into SendMessageBatch requests that respect
// the configured byte and count bounds and sends them, preserving input
// order within and across batches when the send concurrency is 1.
//
// Bodies above the payload threshold are offloaded before partitioning, so
// batches are sized by the pointers actually sent. On FIFO queues each entry
// is deduplicated by its group, body and input index.
//
// Entries rejected by SQS for reasons other than sender faults are retried
// with exponential backoff. Entries still failing afterwards are reported in
// [BatchResult.Failed] rather than as an error; the error return is reserved
// for request-level failures, in which case the partial result is returned
// as well. A failure to offload a payload aborts the call before anything is
// sent and returns a nil result.
func (c *Client) SendBatch(ctx context.Context, bodies []string) (*BatchResult, error) {
	if !c.initialized {
		return nil, ErrNotInitialized
	}

	out, err := c.prepareBatch(ctx, bodies)
	if err != nil {
		return nil, err
	}

	extra := make([]int, len(bodies))
	for i, attrs := range out.attrs {
		extra[i] = attributesSize(attrs)
	}

	batches := c.partitioner.partition(out.wire, extra)

	result := &BatchResult{
		MessageIDs: make([]string, len(bodies)),
	}

	failedPerBatch := make([][]FailedEntry, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.batchSendConcurrency)

	offset := 0

	for i, batch := range batches {
		start := offset
		offset += len(batch)

		// Empty input partitions into one empty batch, which SQS would reject.
		if len(batch) == 0 {
			continue
		}

		result.Batches++

		g.Go(func() error {
			failed, err := c.sendBatch(gctx, batch, start, out, result.MessageIDs)
			failedPerBatch[i] = failed
			return err
		})
	}

	err = g.Wait()

	for _, failed := range failedPerBatch {
		result.Failed = append(result.Failed, failed...)
	}

	if err != nil {
		return result, err
	}

	c.logger.
		WithField("messages", len(bodies)).
		WithField("batches", result.Batches).
		WithField("failed", len(result.Failed)).
		Debug("SQS message batches sent")

	return result, nil
}

// outboundBatch holds the input of one SendBatch call next to what is put on
// the wire for it. All slices are indexed by input position.
type outboundBatch struct {
	bodies []string
	wire   []string
	attrs  []map[string]sqstypes.MessageAttributeValue
}

// prepareBatch offloads every body above the payload threshold.
func (c *Client) prepareBatch(ctx context.Context, bodies []string) (*outboundBatch, error) {
	out := &outboundBatch{
		bodies: bodies,
		wire:   slices.Clone(bodies),
		attrs:  make([]map[string]sqstypes.MessageAttributeValue, len(bodies)),
	}

	if c.opts.payloadStore == nil {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.batchSendConcurrency)

	for i, body := range bodies {
		if len(body) <= c.opts.payloadSizeThreshold {
			continue
		}

		g.Go(func() error {
			wire, attrs, err := c.offload(gctx, body)
			if err != nil {
				return fmt.Errorf("failed to offload message %d: %w", i, err)
			}

			out.wire[i], out.attrs[i] = wire, attrs

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// attrFraming is the JSON framing around one string message attribute.
const attrFraming = len(`"":{"DataType":"","StringValue":""},`)

// attributesSize estimates the bytes attrs add to a batch entry in a JSON
// protocol request.
func attributesSize(attrs map[string]sqstypes.MessageAttributeValue) int {
	if len(attrs) == 0 {
		return 0
	}

	n := len(`,"MessageAttributes":{}`)

	for name, v := range attrs {
		n += attrFraming + len(name) + len(aws.ToString(v.DataType)) + len(aws.ToString(v.StringValue))
	}

	return n
}

// sendBatch sends one partitioned batch. The entry at position i in batch
// corresponds to input index offset+i, and its message ID is written to
// messageIDs at that index.
func (c *Client) sendBatch(ctx context.Context, batch Batch, offset int, out *outboundBatch, messageIDs []string) ([]FailedEntry, error) {
	indexByID := make(map[string]int, len(batch))
	entries := make([]sqstypes.SendMessageBatchRequestEntry, 0, len(batch))

	for i, e := range batch {
		index := offset + i

		entry := sqstypes.SendMessageBatchRequestEntry{
			Id:                aws.String(e.ID),
			MessageBody:       aws.String(e.Body),
			MessageAttributes: out.attrs[index],
		}

		if c.fifo {
			entry.MessageGroupId = aws.String(c.opts.messageGroupID)
			entry.MessageDeduplicationId = aws.String(deduplicationID(c.opts.messageGroupID, out.bodies[index], index))
		}

		indexByID[e.ID] = index
		entries = append(entries, entry)
	}

	var failed []FailedEntry

	backoff := batchInitialBackoff

	for attempt := 0; ; attempt++ {
		resp, err := c.client.SendMessageBatch(ctx, &sqs.SendMessageBatchInput{
			QueueUrl: &c.queueURL,
			Entries:  entries,
		})
		if err != nil {
			return failed, fmt.Errorf("failed to send SQS message batch: %w", err)
		}

		for _, s := range resp.Successful {
			index, ok := indexByID[aws.ToString(s.Id)]
			if !ok {
				c.logger.WithField("entry_id", aws.ToString(s.Id)).Warn("Ignoring SQS batch result for unknown entry")
				continue
			}

			messageIDs[index] = aws.ToString(s.MessageId)
		}

		var retry []sqstypes.SendMessageBatchRequestEntry

		for _, f := range resp.Failed {
			id := aws.ToString(f.Id)

			index, ok := indexByID[id]
			if !ok {
				c.logger.WithField("entry_id", id).Warn("Ignoring SQS batch result for unknown entry")
				continue
			}

			if f.SenderFault || attempt >= batchMaxRetries {
				failed = append(failed, FailedEntry{
					Index:       index,
					ID:          id,
					Code:        aws.ToString(f.Code),
					Message:     aws.ToString(f.Message),
					SenderFault: f.SenderFault,
				})

				continue
			}

			for _, e := range entries {
				if aws.ToString(e.Id) == id {
					retry = append(retry, e)
					break
				}
			}
		}

		if len(retry) == 0 {
			break
		}

		c.logger.
			WithField("attempt", attempt+1).
			WithField("entries", len(retry)).
			Debug("Retrying failed SQS batch entries")

		select {
		case <-ctx.Done():
			return failed, ctx.Err()
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, batchMaxBackoff)
		entries = retry
	}

	slices.SortFunc(failed, func(a, b FailedEntry) int {
		return cmp.Compare(a.Index, b.Index)
	})

	return failed, nil
}
