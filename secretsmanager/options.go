package secretsmanager

// Option is a functional option for configuring a [Client].
type Option func(*Options)

// Options holds the resolved configuration for a [Client].
type Options struct {
	kmsKeyID string
	api      API
}

func newOptions() *Options {
	return &Options{}
}

// WithKMSKeyID sets the KMS key used to encrypt secrets created by
// [Client.CreateSecret]. Default: the account's AWS managed key.
func WithKMSKeyID(keyID string) Option {
	return func(o *Options) {
		o.kmsKeyID = keyID
	}
}

// WithAPI sets a custom [API] implementation. This option is intended for
// testing with mock or stub clients.
func WithAPI(api API) Option {
	return func(o *Options) {
		o.api = api
	}
}
