package sqs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"

	"github.com/queueglue/plugins/logging"
)

// Message is a message delivered by [Client.Receive].
//
// Body holds the original payload; offloaded payloads have already been
// fetched from the payload store. Exactly one of Ack or Nack should be
// called once processing ends.
type Message struct {
	MessageID        string
	Body             string
	Attributes       map[string]string
	ReceiveTimestamp time.Time
	Ack              func()
	Nack             func()
}

// Client sends to and receives from a single SQS queue.
//
// Create a Client with [New], then call [Client.Init] once before any other
// method. Init is not thread-safe; all other methods are safe for concurrent
// use after Init returns.
type Client struct {
	client      sqsClient
	queueName   string
	queueURL    string
	fifo        bool
	awsCfg      *aws.Config
	opts        *Options
	partitioner *Partitioner
	extender    *visibilityExtender
	extenderCh  chan *inFlightMessage
	logger      logging.Logger
	initialized bool
}

// New creates a Client for the named queue. Names ending with ".fifo" are
// treated as FIFO queues and require [WithMessageGroupID].
//
// New does not connect to AWS. Call [Client.Init] to resolve the queue URL
// and start the background visibility-extension goroutine.
func New(awsCfg *aws.Config, queueName string, logger logging.Logger, opts ...Option) *Client {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	logger = logger.
		WithField("plugin", "sqs").
		WithField("queue_name", queueName)

	return &Client{
		awsCfg:     awsCfg,
		queueName:  queueName,
		fifo:       strings.HasSuffix(queueName, ".fifo"),
		opts:       options,
		extenderCh: make(chan *inFlightMessage, 1000),
		logger:     logger,
	}
}

// Init validates options, resolves the queue URL (creating the queue first
// when [WithCreateQueueIfMissing] is set) and starts the background
// visibility-extension goroutine, which runs until ctx is cancelled.
//
//	client, err := sqs.New(&awsCfg, "orders", logger).Init(ctx)
//
// Init is idempotent. It is not thread-safe and must be called once during
// application startup before any concurrent access.
func (c *Client) Init(ctx context.Context) (*Client, error) {
	if c.initialized {
		return c, nil
	}

	if c.queueName == "" {
		return nil, errors.New("SQS queue name cannot be empty")
	}

	if c.fifo && c.opts.messageGroupID == "" {
		return nil, errors.New("a message group ID is required for FIFO queues")
	}

	if err := c.opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid SQS options: %w", err)
	}

	// Use injected client if provided (for testing), otherwise create real client
	if c.opts.sqsClient != nil {
		c.client = c.opts.sqsClient
	} else {
		c.client = sqs.NewFromConfig(*c.awsCfg, func(o *sqs.Options) {
			o.Retryer = retry.AddWithMaxBackoffDelay(o.Retryer, c.opts.sqsAPIMaxRetryBackoffDelay)
			o.Retryer = retry.AddWithMaxAttempts(o.Retryer, c.opts.sqsAPIMaxRetryAttempts)
		})
	}

	queueURL, err := c.resolveQueueURL(ctx)
	if err != nil {
		return nil, err
	}

	c.queueURL = queueURL
	c.partitioner = NewPartitioner(c.opts.maxBatchBytes, c.opts.maxBatchCount, c.opts.idGenerator)
	c.extender = newVisibilityExtender(c.opts, c.logger)

	go c.extender.run(ctx, c.extenderCh)

	c.initialized = true

	return c, nil
}

func (c *Client) resolveQueueURL(ctx context.Context) (string, error) {
	resp, err := c.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(c.queueName)})
	if err == nil {
		return aws.ToString(resp.QueueUrl), nil
	}

	if !isQueueNotFound(err) {
		return "", fmt.Errorf("failed to get SQS queue URL for %s: %w", c.queueName, err)
	}

	if !c.opts.createQueueIfMissing {
		return "", fmt.Errorf("%w: %s", ErrQueueNotFound, c.queueName)
	}

	input := &sqs.CreateQueueInput{QueueName: aws.String(c.queueName)}

	if c.fifo {
		input.Attributes = map[string]string{
			string(sqstypes.QueueAttributeNameFifoQueue): "true",
		}
	}

	created, err := c.client.CreateQueue(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to create SQS queue %s: %w", c.queueName, err)
	}

	c.logger.Info("SQS queue created")

	return aws.ToString(created.QueueUrl), nil
}

func isQueueNotFound(err error) bool {
	var notFound *sqstypes.QueueDoesNotExist
	if errors.As(err, &notFound) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AWS.SimpleQueueService.NonExistentQueue", "QueueDoesNotExist":
			return true
		}
	}

	return false
}

// Name returns the queue name supplied to [New].
func (c *Client) Name() string {
	return c.queueName
}

// URL returns the queue URL resolved by [Client.Init].
func (c *Client) URL() string {
	return c.queueURL
}

// Send publishes a single message. Bodies above the payload size threshold
// are offloaded when a payload store is configured.
func (c *Client) Send(ctx context.Context, body string) error {
	if !c.initialized {
		return ErrNotInitialized
	}

	if body == "" {
		return errors.New("body cannot be empty")
	}

	sendBody, attrs, err := c.offload(ctx, body)
	if err != nil {
		return err
	}

	input := &sqs.SendMessageInput{
		QueueUrl:          &c.queueURL,
		MessageBody:       &sendBody,
		MessageAttributes: attrs,
	}

	if c.fifo {
		input.MessageGroupId = aws.String(c.opts.messageGroupID)
		input.MessageDeduplicationId = aws.String(deduplicationID(c.opts.messageGroupID, body, 0))
	}

	if _, err := c.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("failed to send SQS message: %w", err)
	}

	return nil
}

// Purge deletes every message in the queue.
func (c *Client) Purge(ctx context.Context) error {
	if !c.initialized {
		return ErrNotInitialized
	}

	if _, err := c.client.PurgeQueue(ctx, &sqs.PurgeQueueInput{QueueUrl: &c.queueURL}); err != nil {
		return fmt.Errorf("failed to purge SQS queue %s: %w", c.queueName, err)
	}

	c.logger.Info("SQS queue purged")

	return nil
}

// ReadMessages performs a single short-poll receive of up to maxMessages
// messages (1 to 10) and returns their bodies, with offloaded payloads
// resolved. Messages are not deleted and become visible again once their
// visibility timeout expires.
func (c *Client) ReadMessages(ctx context.Context, maxMessages int32) ([]string, error) {
	if !c.initialized {
		return nil, ErrNotInitialized
	}

	if maxMessages < 1 || maxMessages > 10 {
		return nil, errors.New("max messages must be between 1 and 10")
	}

	output, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              &c.queueURL,
		MaxNumberOfMessages:   maxMessages,
		MessageAttributeNames: []string{extendedPayloadSizeAttr},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive SQS messages: %w", err)
	}

	bodies := make([]string, 0, len(output.Messages))

	for _, m := range output.Messages {
		body, _, err := c.resolve(ctx, m)
		if err != nil {
			return nil, err
		}

		bodies = append(bodies, body)
	}

	return bodies, nil
}

// Receive reads messages from the queue in a loop and sends each one to
// sinkCh. It closes sinkCh before returning.
//
// Ack deletes the message (and its offloaded payload, if any). Nack leaves
// the message for redelivery after the visibility timeout expires. While a
// message is neither acked nor nacked its visibility timeout is extended in
// the background, up to [WithMaxMessageExtension].
//
// Reading pauses while the in-flight limits set by
// [WithMaxOutstandingMessages] and [WithMaxOutstandingBytes] are reached.
// Transient receive errors are logged and retried after 5 seconds.
//
// Receive blocks until ctx is cancelled and then returns ctx.Err().
func (c *Client) Receive(ctx context.Context, sinkCh chan<- *Message) error {
	defer close(sinkCh)

	if !c.initialized {
		return ErrNotInitialized
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			c.logger.WithField("wait_time", c.opts.sqsReceiveWaitTimeSeconds).Debug("Reading SQS queue")

			err := c.read(ctx, sinkCh)
			if err == nil {
				continue
			}

			if ctx.Err() != nil {
				return ctx.Err()
			}

			c.logger.Errorf("Error reading SQS queue %s: %v", c.queueName, err)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
		}
	}
}

func (c *Client) read(ctx context.Context, sinkCh chan<- *Message) error {
	for !c.extender.HasCapacity() {
		c.logger.Debug("SQS in-flight limit reached, waiting before reading more messages")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}

	input := &sqs.ReceiveMessageInput{
		QueueUrl:              &c.queueURL,
		MaxNumberOfMessages:   c.opts.sqsReceiveMaxNumberOfMessages,
		VisibilityTimeout:     c.opts.sqsVisibilityTimeoutSeconds,
		WaitTimeSeconds:       c.opts.sqsReceiveWaitTimeSeconds,
		MessageAttributeNames: []string{extendedPayloadSizeAttr},
		MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{
			sqstypes.MessageSystemAttributeNameMessageGroupId,
		},
	}

	output, err := c.client.ReceiveMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to receive SQS messages: %w", err)
	}

	now := time.Now()

	for _, m := range output.Messages {
		msgID := aws.ToString(m.MessageId)
		receiptHandle := aws.ToString(m.ReceiptHandle)
		logger := c.logger.WithField("message_id", msgID)

		body, pointer, err := c.resolve(ctx, m)
		if err != nil {
			// Left in the queue; it is redelivered after the visibility timeout.
			logger.Errorf("Skipping SQS message with unresolvable payload: %v", err)
			continue
		}

		ack := func() { //nolint:contextcheck // ack must complete regardless of caller's context state
			c.deleteMessage(msgID, receiptHandle, pointer)
		}

		extend := func(ctx context.Context) error {
			return c.changeMessageVisibility(ctx, msgID, receiptHandle)
		}

		inFlight := newInFlightMessage(msgID, c.opts.sqsVisibilityTimeoutSeconds, len(body))
		inFlight.SetAckFunc(ack)
		inFlight.SetExtendFunc(extend)

		if err := trySend(ctx, inFlight, c.extenderCh); err != nil {
			return err
		}

		msg := &Message{
			MessageID:        msgID,
			Body:             body,
			Attributes:       m.Attributes,
			ReceiveTimestamp: now,
			Ack:              inFlight.Ack,
			Nack:             inFlight.Nack,
		}

		if err := trySend(ctx, msg, sinkCh); err != nil {
			return err
		}

		logger.Debug("SQS message received")
	}

	return nil
}

// deleteMessage deletes the message and its offloaded payload, if any.
// It uses context.Background() with a short timeout because it must
// complete regardless of the caller's context state.
func (c *Client) deleteMessage(messageID, receiptHandle, pointer string) {
	logger := c.logger.WithField("message_id", messageID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	input := &sqs.DeleteMessageInput{
		QueueUrl:      &c.queueURL,
		ReceiptHandle: &receiptHandle,
	}

	if _, err := c.client.DeleteMessage(ctx, input); err != nil {
		logger.Errorf("Failed to delete SQS message: %v", err)
		return
	}

	logger.Debug("SQS message deleted")

	if pointer == "" {
		return
	}

	if err := c.opts.payloadStore.DeletePayload(ctx, pointer); err != nil {
		logger.Errorf("Failed to delete offloaded payload: %v", err)
	}
}

func (c *Client) changeMessageVisibility(ctx context.Context, messageID, receiptHandle string) error {
	input := &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          &c.queueURL,
		ReceiptHandle:     &receiptHandle,
		VisibilityTimeout: c.opts.sqsVisibilityTimeoutSeconds,
	}

	if _, err := c.client.ChangeMessageVisibility(ctx, input); err != nil {
		return fmt.Errorf("failed to extend SQS message visibility: %w", err)
	}

	c.logger.WithField("message_id", messageID).Debug("SQS message visibility extended")

	return nil
}

func trySend[T any](ctx context.Context, msg T, sinkCh chan<- T) error {
	select {
	case sinkCh <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
