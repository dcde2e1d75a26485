package kinesis

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	// maxRecordsPerRequest is the PutRecords limit on records per call.
	maxRecordsPerRequest = 500

	// maxRequestBytes is the PutRecords limit on data plus partition keys
	// per call.
	maxRequestBytes = 5 * 1024 * 1024

	// maxRecordBytes is the limit on data plus partition key of one record.
	maxRecordBytes = 1024 * 1024
)

// Option is a functional option for configuring a [Client].
type Option func(*Options)

// Options holds the resolved configuration for a [Client].
type Options struct {
	partitionKey          func() string
	shardCount            int32
	createStreamIfMissing bool
	readLimit             int32
	pollInterval          time.Duration
	waitTimeout           time.Duration
	api                   API
}

func newOptions() *Options {
	return &Options{
		partitionKey: uuid.NewString,
		shardCount:   1,
		readLimit:    25,
		pollInterval: time.Second,
		waitTimeout:  2 * time.Minute,
	}
}

func (o *Options) validate() error {
	if o.partitionKey == nil {
		return errors.New("partition key function cannot be nil")
	}

	if o.shardCount < 1 {
		return errors.New("shard count must be at least 1")
	}

	if o.readLimit < 1 || o.readLimit > 10000 {
		return errors.New("read limit must be between 1 and 10000")
	}

	if o.pollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}

	if o.waitTimeout <= 0 {
		return errors.New("wait timeout must be positive")
	}

	return nil
}

// WithPartitionKey makes every record written by [Client.PutRecords] use
// key, which sends all records to one shard. Default: a random UUID per
// record.
func WithPartitionKey(key string) Option {
	return func(o *Options) {
		o.partitionKey = func() string { return key }
	}
}

// WithShardCount sets the number of shards of a stream created by
// [Client.Init]. Default: 1.
func WithShardCount(n int32) Option {
	return func(o *Options) {
		o.shardCount = n
	}
}

// WithCreateStreamIfMissing makes [Client.Init] create the stream and wait
// for it to become active when it does not exist. Default: false.
func WithCreateStreamIfMissing(create bool) Option {
	return func(o *Options) {
		o.createStreamIfMissing = create
	}
}

// WithReadLimit sets the maximum number of records per GetRecords call made
// by [Client.Listen]. Default: 25.
func WithReadLimit(n int32) Option {
	return func(o *Options) {
		o.readLimit = n
	}
}

// WithPollInterval sets how long [Client.Listen] waits between reads of the
// stream. It is also the minimum delay between stream status checks while
// [Client.Init] waits for a new stream. Default: 1s.
func WithPollInterval(d time.Duration) Option {
	return func(o *Options) {
		o.pollInterval = d
	}
}

// WithWaitTimeout bounds how long [Client.Init] waits for a new stream to
// become active. Default: 2m.
func WithWaitTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.waitTimeout = d
	}
}

// WithAPI sets a custom [API] implementation. This option is intended for
// testing with mock or stub clients.
func WithAPI(api API) Option {
	return func(o *Options) {
		o.api = api
	}
}
