package ssm

import (
	"fmt"
	"slices"

	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// Option is a functional option for configuring a [Client].
type Option func(*Options)

// Options holds the resolved configuration for a [Client].
type Options struct {
	overwrite     bool
	parameterType ssmtypes.ParameterType
	kmsKeyID      string
	api           API
}

func newOptions() *Options {
	return &Options{
		parameterType: ssmtypes.ParameterTypeString,
	}
}

func (o *Options) validate() error {
	if !slices.Contains(ssmtypes.ParameterTypeString.Values(), o.parameterType) {
		return fmt.Errorf("unsupported parameter type %q", o.parameterType)
	}

	if o.kmsKeyID != "" && o.parameterType != ssmtypes.ParameterTypeSecureString {
		return fmt.Errorf("KMS key ID requires parameter type %q", ssmtypes.ParameterTypeSecureString)
	}

	return nil
}

// WithOverwrite lets [Client.WriteParameter] replace an existing value.
// Default: false.
func WithOverwrite(overwrite bool) Option {
	return func(o *Options) {
		o.overwrite = overwrite
	}
}

// WithParameterType sets the type of parameters written by
// [Client.WriteParameter]. Default: String.
func WithParameterType(t ssmtypes.ParameterType) Option {
	return func(o *Options) {
		o.parameterType = t
	}
}

// WithKMSKeyID sets the KMS key used to encrypt SecureString parameters.
// Default: the account's AWS managed key.
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
