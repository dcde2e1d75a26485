package kinesis

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"
)

// Record is a record read from the stream.
type Record struct {
	ShardID        string
	SequenceNumber string
	PartitionKey   string
	Data           []byte
	ArrivalTime    time.Time
}

// shardReader tracks the read position of one shard. A nil iterator on a
// known shard means the shard is closed and fully read.
type shardReader struct {
	iterator *string
	done     bool
}

// Listen reads every shard of the stream from its oldest record and sends
// each record to sinkCh, in sequence order per shard. The stream is read
// every [WithPollInterval] with at most [WithReadLimit] records per shard
// and read. Shards added by resharding are picked up on the next read.
//
// Listen blocks until ctx is cancelled and closes sinkCh before returning.
// Read errors are logged and retried.
func (c *Client) Listen(ctx context.Context, sinkCh chan<- *Record) error {
	defer close(sinkCh)

	if !c.initialized {
		return ErrNotInitialized
	}

	shards := map[string]*shardReader{}

	for {
		if err := c.readShards(ctx, shards, sinkCh); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			c.logger.Errorf("Error reading Kinesis stream %s: %v", c.stream, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.opts.pollInterval):
		}
	}
}

func (c *Client) readShards(ctx context.Context, shards map[string]*shardReader, sinkCh chan<- *Record) error {
	ids, err := c.listShards(ctx)
	if err != nil {
		return err
	}

	for _, id := range ids {
		reader, ok := shards[id]
		if !ok {
			iterator, err := c.trimHorizon(ctx, id)
			if err != nil {
				return err
			}

			reader = &shardReader{iterator: iterator}
			shards[id] = reader
		}

		if reader.done {
			continue
		}

		if err := c.readShard(ctx, id, reader, sinkCh); err != nil {
			return err
		}
	}

	return nil
}

func (c *Client) listShards(ctx context.Context) ([]string, error) {
	var (
		ids   []string
		input = &kinesis.ListShardsInput{StreamName: aws.String(c.stream)}
	)

	for {
		output, err := c.client.ListShards(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to list shards of Kinesis stream %s: %w", c.stream, err)
		}

		for _, shard := range output.Shards {
			ids = append(ids, aws.ToString(shard.ShardId))
		}

		if output.NextToken == nil {
			return ids, nil
		}

		// StreamName and NextToken are mutually exclusive.
		input = &kinesis.ListShardsInput{NextToken: output.NextToken}
	}
}

func (c *Client) trimHorizon(ctx context.Context, shardID string) (*string, error) {
	output, err := c.client.GetShardIterator(ctx, &kinesis.GetShardIteratorInput{
		StreamName:        aws.String(c.stream),
		ShardId:           aws.String(shardID),
		ShardIteratorType: types.ShardIteratorTypeTrimHorizon,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get iterator for Kinesis shard %s: %w", shardID, err)
	}

	return output.ShardIterator, nil
}

func (c *Client) readShard(ctx context.Context, shardID string, reader *shardReader, sinkCh chan<- *Record) error {
	if reader.iterator == nil {
		reader.done = true
		return nil
	}

	output, err := c.client.GetRecords(ctx, &kinesis.GetRecordsInput{
		ShardIterator: reader.iterator,
		Limit:         aws.Int32(c.opts.readLimit),
	})
	if err != nil {
		return fmt.Errorf("failed to get records from Kinesis shard %s: %w", shardID, err)
	}

	for _, r := range output.Records {
		record := &Record{
			ShardID:        shardID,
			SequenceNumber: aws.ToString(r.SequenceNumber),
			PartitionKey:   aws.ToString(r.PartitionKey),
			Data:           r.Data,
			ArrivalTime:    aws.ToTime(r.ApproximateArrivalTimestamp),
		}

		select {
		case sinkCh <- record:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	reader.iterator = output.NextShardIterator
	if reader.iterator == nil {
		reader.done = true
		c.logger.WithField("shard", shardID).Debug("Kinesis shard closed")
	}

	return nil
}
