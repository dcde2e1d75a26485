package sqs

import "errors"

var (
	// ErrNotInitialized is returned by Client methods called before a
	// successful [Client.Init].
	ErrNotInitialized = errors.New("SQS client not initialized")

	// ErrPayloadStoreNotConfigured is returned by payload operations on a
	// Client created without [WithPayloadStore].
	ErrPayloadStoreNotConfigured = errors.New("SQS payload store not configured")

	// ErrQueueNotFound is returned by [Client.Init] when the queue does not
	// exist and [WithCreateQueueIfMissing] is not set.
	ErrQueueNotFound = errors.New("SQS queue does not exist")
)
