package cloudwatch

import "errors"

// ErrNotInitialized is returned by Client methods called before a successful
// [Client.Init].
var ErrNotInitialized = errors.New("CloudWatch client not initialized")
