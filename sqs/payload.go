package sqs

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// extendedPayloadSizeAttr marks a message whose body is a payload pointer.
// Its value is the size in bytes of the original body.
const extendedPayloadSizeAttr = "ExtendedPayloadSize"

// StorePayload writes body to the configured payload store and returns the
// pointer that replaces it on the queue.
func (c *Client) StorePayload(ctx context.Context, body string) (string, error) {
	if c.opts.payloadStore == nil {
		return "", ErrPayloadStoreNotConfigured
	}

	pointer, err := c.opts.payloadStore.StorePayload(ctx, body)
	if err != nil {
		return "", fmt.Errorf("failed to store payload: %w", err)
	}

	return pointer, nil
}

// ResolvePayload fetches the original body referenced by pointer.
func (c *Client) ResolvePayload(ctx context.Context, pointer string) (string, error) {
	if c.opts.payloadStore == nil {
		return "", ErrPayloadStoreNotConfigured
	}

	body, err := c.opts.payloadStore.GetPayload(ctx, pointer)
	if err != nil {
		return "", fmt.Errorf("failed to resolve payload: %w", err)
	}

	return body, nil
}

// DeletePayload removes the payload referenced by pointer from the store.
func (c *Client) DeletePayload(ctx context.Context, pointer string) error {
	if c.opts.payloadStore == nil {
		return ErrPayloadStoreNotConfigured
	}

	if err := c.opts.payloadStore.DeletePayload(ctx, pointer); err != nil {
		return fmt.Errorf("failed to delete payload: %w", err)
	}

	return nil
}

// offload returns the body to put on the queue and the message attributes
// to send with it. Bodies at or below the threshold, or any body when no
// store is configured, are returned unchanged.
func (c *Client) offload(ctx context.Context, body string) (string, map[string]sqstypes.MessageAttributeValue, error) {
	if c.opts.payloadStore == nil || len(body) <= c.opts.payloadSizeThreshold {
		return body, nil, nil
	}

	pointer, err := c.StorePayload(ctx, body)
	if err != nil {
		return "", nil, err
	}

	attrs := map[string]sqstypes.MessageAttributeValue{
		extendedPayloadSizeAttr: {
			DataType:    aws.String("Number"),
			StringValue: aws.String(strconv.Itoa(len(body))),
		},
	}

	c.logger.WithField("size", len(body)).Debug("Message body offloaded to payload store")

	return pointer, attrs, nil
}

// resolve returns the original body of m and, when the body was offloaded,
// the pointer it was stored under.
func (c *Client) resolve(ctx context.Context, m sqstypes.Message) (string, string, error) {
	body := aws.ToString(m.Body)

	if _, ok := m.MessageAttributes[extendedPayloadSizeAttr]; !ok {
		return body, "", nil
	}

	resolved, err := c.ResolvePayload(ctx, body)
	if err != nil {
		return "", "", err
	}

	return resolved, body, nil
}
