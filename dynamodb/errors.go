package dynamodb

import "errors"

var (
	// ErrInvalidPointer is returned when a payload pointer cannot be decoded.
	ErrInvalidPointer = errors.New("invalid DynamoDB payload pointer")

	// ErrPayloadNotFound is returned by [Client.GetPayload] when the
	// referenced record does not exist or has expired.
	ErrPayloadNotFound = errors.New("DynamoDB payload not found")
)
