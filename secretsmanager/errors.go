package secretsmanager

import "errors"

var (
	// ErrNotInitialized is returned by Client methods called before a
	// successful [Client.Init].
	ErrNotInitialized = errors.New("Secrets Manager client not initialized")

	// ErrSecretNotFound is returned when the secret does not exist.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrSecretExists is returned by [Client.CreateSecret] when a secret with
	// the same name already exists.
	ErrSecretExists = errors.New("secret already exists")

	// ErrBinarySecret is returned by [Client.ReadSecret] when the secret
	// holds a binary value instead of a string.
	ErrBinarySecret = errors.New("secret has no string value")
)
