package ssm

import "errors"

var (
	// ErrNotInitialized is returned by Client methods called before a
	// successful [Client.Init].
	ErrNotInitialized = errors.New("SSM client not initialized")

	// ErrParameterNotFound is returned by [Client.ReadParameter] when the
	// parameter does not exist.
	ErrParameterNotFound = errors.New("SSM parameter not found")

	// ErrParameterExists is returned by [Client.WriteParameter] when the
	// parameter already exists and [WithOverwrite] is not set.
	ErrParameterExists = errors.New("SSM parameter already exists")
)
