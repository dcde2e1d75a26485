package dynamodb

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Option is a functional option for configuring a [Client].
type Option func(*Options)

// Options holds the configuration for a [Client]. Use [Option] functions
// (such as [WithTimeToLive]) to customise the defaults.
type Options struct {
	timeToLive  time.Duration
	dynamoDBAPI API
	clock       func() time.Time
	newKey      func() string
}

func newOptions() *Options {
	return &Options{
		timeToLive: 14 * 24 * time.Hour,
		clock:      time.Now,
		newKey:     uuid.NewString,
	}
}

func (o *Options) validate() error {
	if o.timeToLive <= 0 {
		return errors.New("payload time to live must be greater than zero")
	}

	if o.clock == nil {
		return errors.New("clock cannot be nil")
	}

	if o.newKey == nil {
		return errors.New("key generator cannot be nil")
	}

	return nil
}

// WithTimeToLive sets the TTL applied to payload records. The default is 14
// days, the maximum SQS message retention period. The duration must be
// greater than zero.
func WithTimeToLive(d time.Duration) Option {
	return func(o *Options) {
		o.timeToLive = d
	}
}

// WithAPI sets a custom [API] implementation. This is useful when a custom
// DynamoDB configuration is required, or for injecting mocks in tests.
func WithAPI(api API) Option {
	return func(o *Options) {
		o.dynamoDBAPI = api
	}
}

// WithClock sets a custom clock function used when computing TTL values.
// Defaults to [time.Now]. This is useful for controlling time in tests.
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		o.clock = clock
	}
}

// WithKeyGenerator replaces the random UUID used as the payload key suffix.
func WithKeyGenerator(newKey func() string) Option {
	return func(o *Options) {
		o.newKey = newKey
	}
}
