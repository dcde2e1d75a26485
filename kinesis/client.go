package kinesis

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"

	"github.com/queueglue/plugins/logging"
)

// Client writes records to and reads records from a single Kinesis data
// stream.
//
// Create a Client with [New], then call [Client.Init] once before any other
// method.
type Client struct {
	client      API
	stream      string
	awsCfg      *aws.Config
	opts        *Options
	logger      logging.Logger
	initialized bool
}

// New creates a Client for the named stream. It does not connect to AWS.
func New(awsCfg *aws.Config, stream string, logger logging.Logger, opts ...Option) *Client {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Client{
		awsCfg: awsCfg,
		stream: stream,
		opts:   options,
		logger: logger.
			WithField("plugin", "kinesis").
			WithField("stream", stream),
	}
}

// Init validates options, creates the Kinesis client and checks that the
// stream exists. With [WithCreateStreamIfMissing] a missing stream is
// created and Init blocks until it is active.
//
// Init is idempotent. It is not thread-safe and must be called once during
// application startup before any concurrent access.
func (c *Client) Init(ctx context.Context) (*Client, error) {
	if c.initialized {
		return c, nil
	}

	if c.stream == "" {
		return nil, errors.New("Kinesis stream name cannot be empty")
	}

	if err := c.opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid Kinesis options: %w", err)
	}

	if c.opts.api != nil {
		c.client = c.opts.api
	} else {
		c.client = kinesis.NewFromConfig(*c.awsCfg)
	}

	if err := c.ensureStream(ctx); err != nil {
		return nil, err
	}

	c.initialized = true

	return c, nil
}

func (c *Client) ensureStream(ctx context.Context) error {
	_, err := c.describe(ctx)
	if err == nil {
		return nil
	}

	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to describe Kinesis stream %s: %w", c.stream, err)
	}

	if !c.opts.createStreamIfMissing {
		return fmt.Errorf("%w: %s", ErrStreamNotFound, c.stream)
	}

	_, err = c.client.CreateStream(ctx, &kinesis.CreateStreamInput{
		StreamName: aws.String(c.stream),
		ShardCount: aws.Int32(c.opts.shardCount),
	})
	if err != nil {
		return fmt.Errorf("failed to create Kinesis stream %s: %w", c.stream, err)
	}

	waiter := kinesis.NewStreamExistsWaiter(c.client, func(o *kinesis.StreamExistsWaiterOptions) {
		o.MinDelay = c.opts.pollInterval
		o.MaxDelay = max(o.MaxDelay, o.MinDelay)
	})

	input := &kinesis.DescribeStreamInput{StreamName: aws.String(c.stream)}
	if err := waiter.Wait(ctx, input, c.opts.waitTimeout); err != nil {
		return fmt.Errorf("Kinesis stream %s did not become active: %w", c.stream, err)
	}

	c.logger.WithField("shards", c.opts.shardCount).Info("Kinesis stream created")

	return nil
}

func (c *Client) describe(ctx context.Context) (*types.StreamDescription, error) {
	output, err := c.client.DescribeStream(ctx, &kinesis.DescribeStreamInput{StreamName: aws.String(c.stream)})
	if err != nil {
		return nil, err
	}

	if output.StreamDescription == nil {
		return nil, fmt.Errorf("empty description for Kinesis stream %s", c.stream)
	}

	return output.StreamDescription, nil
}

// Name returns the stream name supplied to [New].
func (c *Client) Name() string {
	return c.stream
}

// Status returns the current status of the stream, such as ACTIVE or
// CREATING.
func (c *Client) Status(ctx context.Context) (types.StreamStatus, error) {
	if !c.initialized {
		return "", ErrNotInitialized
	}

	desc, err := c.describe(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to describe Kinesis stream %s: %w", c.stream, err)
	}

	return desc.StreamStatus, nil
}
