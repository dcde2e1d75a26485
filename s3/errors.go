package s3

import "errors"

var (
	// ErrNotInitialized is returned by Client methods called before a
	// successful [Client.Init].
	ErrNotInitialized = errors.New("S3 client not initialized")

	// ErrBucketNotFound is returned by [Client.Init] when the bucket does not
	// exist and [WithCreateBucketIfMissing] is not set.
	ErrBucketNotFound = errors.New("S3 bucket does not exist")

	// ErrInvalidPointer is returned when a payload pointer cannot be decoded.
	ErrInvalidPointer = errors.New("invalid S3 payload pointer")

	// ErrPayloadNotFound is returned when the referenced object does not exist.
	ErrPayloadNotFound = errors.New("S3 payload not found")
)
