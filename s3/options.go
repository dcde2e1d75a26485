package s3

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Option is a functional option for configuring a [Client].
// Options are passed to [New] and applied before [Client.Init] is called.
type Option func(*Options)

// Options holds the resolved configuration for a [Client].
type Options struct {
	keyPrefix             string
	usePathStyle          bool
	createBucketIfMissing bool
	newKey                func() string
	api                   API
}

func newOptions() *Options {
	return &Options{
		newKey: uuid.NewString,
	}
}

func (o *Options) validate() error {
	if strings.HasPrefix(o.keyPrefix, "/") {
		return errors.New("S3 key prefix cannot start with '/'")
	}

	if o.newKey == nil {
		return errors.New("key generator cannot be nil")
	}

	return nil
}

// WithKeyPrefix sets a prefix, such as "payloads/", prepended to every
// object key written by [Client.StorePayload]. Default: none.
func WithKeyPrefix(prefix string) Option {
	return func(o *Options) {
		o.keyPrefix = prefix
	}
}

// WithUsePathStyle forces path-style addressing (http://host/bucket/key),
// which local S3 emulators usually require. Default: false.
func WithUsePathStyle(usePathStyle bool) Option {
	return func(o *Options) {
		o.usePathStyle = usePathStyle
	}
}

// WithCreateBucketIfMissing makes [Client.Init] create the bucket when it
// does not exist yet. Default: false.
func WithCreateBucketIfMissing(create bool) Option {
	return func(o *Options) {
		o.createBucketIfMissing = create
	}
}

// WithKeyGenerator replaces the random UUID used as the object key suffix.
func WithKeyGenerator(newKey func() string) Option {
	return func(o *Options) {
		o.newKey = newKey
	}
}

// WithAPI sets a custom [API] implementation. This option is intended for
// testing with mock or stub clients.
func WithAPI(api API) Option {
	return func(o *Options) {
		o.api = api
	}
}
