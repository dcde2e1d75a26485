package cloudwatch

import (
	"errors"
	"time"
)

const (
	// DefaultBatchSize is the number of metrics sent per PutMetricData
	// request by default.
	DefaultBatchSize = 25

	// maxBatchSize is the CloudWatch limit on metrics per request.
	maxBatchSize = 1000
)

// Option is a functional option for configuring a [Client].
type Option func(*Options)

// Options holds the resolved configuration for a [Client].
type Options struct {
	batchSize int
	clock     func() time.Time
	api       API
}

func newOptions() *Options {
	return &Options{
		batchSize: DefaultBatchSize,
		clock:     time.Now,
	}
}

func (o *Options) validate() error {
	if o.batchSize < 1 || o.batchSize > maxBatchSize {
		return errors.New("metric batch size must be between 1 and 1000")
	}

	if o.clock == nil {
		return errors.New("clock cannot be nil")
	}

	return nil
}

// WithBatchSize sets how many metrics [Client.LogMetrics] sends per
// PutMetricData request. Must be between 1 and 1000. Default: 25.
func WithBatchSize(n int) Option {
	return func(o *Options) {
		o.batchSize = n
	}
}

// WithClock replaces time.Now as the reference time of
// [Client.AverageForDays].
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		o.clock = clock
	}
}

// WithAPI sets a custom [API] implementation. This option is intended for
// testing with mock or stub clients.
func WithAPI(api API) Option {
	return func(o *Options) {
		o.api = api
	}
}
