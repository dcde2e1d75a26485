package kinesis

import "errors"

var (
	// ErrNotInitialized is returned by Client methods called before a
	// successful [Client.Init].
	ErrNotInitialized = errors.New("Kinesis client not initialized")

	// ErrStreamNotFound is returned by [Client.Init] when the stream does not
	// exist and [WithCreateStreamIfMissing] is not set.
	ErrStreamNotFound = errors.New("Kinesis stream does not exist")
)
