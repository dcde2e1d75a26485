package kinesis

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"
)

// RecordTooLarge is the error code reported for a message whose data and
// partition key exceed the 1 MiB record limit. Such messages are never sent.
const RecordTooLarge = "RecordTooLarge"

// PutResult reports the outcome of [Client.PutRecords].
type PutResult struct {
	// Sent is the number of records Kinesis accepted.
	Sent int

	// Failed holds the records that were rejected, ordered by input index.
	Failed []FailedRecord
}

// FailedRecord is a message Kinesis did not accept.
type FailedRecord struct {
	Index        int
	ErrorCode    string
	ErrorMessage string
}

type pendingRecord struct {
	index int
	entry types.PutRecordsRequestEntry
}

// PutRecords writes messages to the stream in input order. Messages are
// grouped into PutRecords calls of at most 500 records and 5 MiB. A record
// rejected by Kinesis is reported in [PutResult.Failed] and is not retried.
// A failed call stops the operation; the result then covers the calls that
// completed.
func (c *Client) PutRecords(ctx context.Context, messages []string) (*PutResult, error) {
	if !c.initialized {
		return nil, ErrNotInitialized
	}

	result := &PutResult{}

	var (
		batch []pendingRecord
		size  int
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}

		err := c.putBatch(ctx, batch, result)
		batch, size = nil, 0

		return err
	}

	for i, msg := range messages {
		key := c.opts.partitionKey()
		recordSize := len(msg) + len(key)

		if recordSize > maxRecordBytes {
			result.Failed = append(result.Failed, FailedRecord{
				Index:        i,
				ErrorCode:    RecordTooLarge,
				ErrorMessage: fmt.Sprintf("record is %d bytes, limit is %d", recordSize, maxRecordBytes),
			})

			continue
		}

		if len(batch) == maxRecordsPerRequest || size+recordSize > maxRequestBytes {
			if err := flush(); err != nil {
				slices.SortFunc(result.Failed, func(a, b FailedRecord) int { return cmp.Compare(a.Index, b.Index) })
				return result, err
			}
		}

		batch = append(batch, pendingRecord{
			index: i,
			entry: types.PutRecordsRequestEntry{
				Data:         []byte(msg),
				PartitionKey: aws.String(key),
			},
		})
		size += recordSize
	}

	err := flush()

	slices.SortFunc(result.Failed, func(a, b FailedRecord) int { return cmp.Compare(a.Index, b.Index) })

	if err != nil {
		return result, err
	}

	c.logger.WithField("sent", result.Sent).WithField("failed", len(result.Failed)).Debug("Kinesis records written")

	return result, nil
}

func (c *Client) putBatch(ctx context.Context, batch []pendingRecord, result *PutResult) error {
	entries := make([]types.PutRecordsRequestEntry, len(batch))
	for i, r := range batch {
		entries[i] = r.entry
	}

	resp, err := c.client.PutRecords(ctx, &kinesis.PutRecordsInput{
		StreamName: aws.String(c.stream),
		Records:    entries,
	})
	if err != nil {
		return fmt.Errorf("failed to put records to Kinesis stream %s: %w", c.stream, err)
	}

	// Response records are positional.
	for i, r := range resp.Records {
		if i >= len(batch) {
			break
		}

		if r.ErrorCode == nil {
			result.Sent++
			continue
		}

		result.Failed = append(result.Failed, FailedRecord{
			Index:        batch[i].index,
			ErrorCode:    aws.ToString(r.ErrorCode),
			ErrorMessage: aws.ToString(r.ErrorMessage),
		})
	}

	return nil
}
