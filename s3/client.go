package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/queueglue/plugins/logging"
)

// Pointer references a payload stored in S3. Its JSON encoding is the
// message body sent to SQS in place of the payload.
type Pointer struct {
	BucketName string `json:"s3BucketName"`
	Key        string `json:"s3Key"`
}

// ParsePointer decodes a pointer produced by [Client.StorePayload].
func ParsePointer(s string) (Pointer, error) {
	var p Pointer

	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return Pointer{}, fmt.Errorf("%w: %w", ErrInvalidPointer, err)
	}

	if p.BucketName == "" || p.Key == "" {
		return Pointer{}, fmt.Errorf("%w: missing bucket name or key", ErrInvalidPointer)
	}

	return p, nil
}

// String returns the JSON encoding of p.
func (p Pointer) String() string {
	// Marshalling two string fields cannot fail.
	bs, _ := json.Marshal(p)
	return string(bs)
}

// Client reads and writes objects in a single S3 bucket and stores SQS
// message payloads there. It implements the payload store interface of the
// sqs package.
//
// Create a Client with [New], then call [Client.Init] once before any other
// method. All methods are safe for concurrent use after Init returns.
type Client struct {
	client      API
	bucket      string
	awsCfg      *aws.Config
	opts        *Options
	logger      logging.Logger
	initialized bool
}

// New creates a Client for the named bucket. It does not connect to AWS.
func New(awsCfg *aws.Config, bucket string, logger logging.Logger, opts ...Option) *Client {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	logger = logger.
		WithField("plugin", "s3").
		WithField("bucket", bucket)

	return &Client{
		awsCfg: awsCfg,
		bucket: bucket,
		opts:   options,
		logger: logger,
	}
}

// Init validates options, creates the S3 client and checks that the bucket
// exists, creating it first when [WithCreateBucketIfMissing] is set.
//
// Init is idempotent. It is not thread-safe and must be called once during
// application startup before any concurrent access.
func (c *Client) Init(ctx context.Context) (*Client, error) {
	if c.initialized {
		return c, nil
	}

	if c.bucket == "" {
		return nil, errors.New("S3 bucket name cannot be empty")
	}

	if err := c.opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid S3 options: %w", err)
	}

	if c.opts.api != nil {
		c.client = c.opts.api
	} else {
		c.client = s3.NewFromConfig(*c.awsCfg, func(o *s3.Options) {
			o.UsePathStyle = c.opts.usePathStyle
		})
	}

	if err := c.ensureBucket(ctx); err != nil {
		return nil, err
	}

	c.initialized = true

	return c, nil
}

func (c *Client) ensureBucket(ctx context.Context) error {
	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &c.bucket})
	if err == nil {
		return nil
	}

	if !isNotFound(err) {
		return fmt.Errorf("failed to check S3 bucket %s: %w", c.bucket, err)
	}

	if !c.opts.createBucketIfMissing {
		return fmt.Errorf("%w: %s", ErrBucketNotFound, c.bucket)
	}

	input := &s3.CreateBucketInput{Bucket: &c.bucket}

	// us-east-1 rejects an explicit location constraint.
	if region := c.awsCfg.Region; region != "" && region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(region),
		}
	}

	if _, err := c.client.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("failed to create S3 bucket %s: %w", c.bucket, err)
	}

	c.logger.Info("S3 bucket created")

	return nil
}

// Bucket returns the bucket name supplied to [New].
func (c *Client) Bucket() string {
	return c.bucket
}

// PutObject writes body under key in the client's bucket.
func (c *Client) PutObject(ctx context.Context, key string, body []byte) error {
	if !c.initialized {
		return ErrNotInitialized
	}

	return c.put(ctx, c.bucket, key, body)
}

// GetObject reads the object stored under key in the client's bucket.
func (c *Client) GetObject(ctx context.Context, key string) ([]byte, error) {
	if !c.initialized {
		return nil, ErrNotInitialized
	}

	return c.get(ctx, c.bucket, key)
}

// ObjectExists reports whether an object is stored under key.
func (c *Client) ObjectExists(ctx context.Context, key string) (bool, error) {
	if !c.initialized {
		return false, ErrNotInitialized
	}

	_, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &c.bucket, Key: &key})
	if err == nil {
		return true, nil
	}

	if isNotFound(err) {
		return false, nil
	}

	return false, fmt.Errorf("failed to check S3 object %s: %w", key, err)
}

// StorePayload writes body under a new random key and returns the JSON
// pointer that references it.
func (c *Client) StorePayload(ctx context.Context, body string) (string, error) {
	if !c.initialized {
		return "", ErrNotInitialized
	}

	key := c.opts.keyPrefix + c.opts.newKey()

	if err := c.put(ctx, c.bucket, key, []byte(body)); err != nil {
		return "", err
	}

	c.logger.WithField("key", key).WithField("size", len(body)).Debug("Payload stored in S3")

	return Pointer{BucketName: c.bucket, Key: key}.String(), nil
}

// GetPayload returns the payload referenced by pointer. The pointer names its
// own bucket, which need not be the bucket this Client writes to.
func (c *Client) GetPayload(ctx context.Context, pointer string) (string, error) {
	if !c.initialized {
		return "", ErrNotInitialized
	}

	p, err := ParsePointer(pointer)
	if err != nil {
		return "", err
	}

	body, err := c.get(ctx, p.BucketName, p.Key)
	if err != nil {
		return "", err
	}

	return string(body), nil
}

// DeletePayload removes the object referenced by pointer. S3 does not report
// an error for keys that do not exist.
func (c *Client) DeletePayload(ctx context.Context, pointer string) error {
	if !c.initialized {
		return ErrNotInitialized
	}

	p, err := ParsePointer(pointer)
	if err != nil {
		return err
	}

	input := &s3.DeleteObjectInput{
		Bucket: aws.String(p.BucketName),
		Key:    aws.String(p.Key),
	}

	if _, err := c.client.DeleteObject(ctx, input); err != nil {
		return fmt.Errorf("failed to delete S3 object %s/%s: %w", p.BucketName, p.Key, err)
	}

	c.logger.WithField("key", p.Key).Debug("Payload deleted from S3")

	return nil
}

func (c *Client) put(ctx context.Context, bucket, key string, body []byte) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	}

	if _, err := c.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to write S3 object %s/%s: %w", bucket, key, err)
	}

	return nil
}

func (c *Client) get(ctx context.Context, bucket, key string) ([]byte, error) {
	output, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrPayloadNotFound, bucket, key)
		}
		return nil, fmt.Errorf("failed to read S3 object %s/%s: %w", bucket, key, err)
	}

	defer output.Body.Close()

	body, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read S3 object body %s/%s: %w", bucket, key, err)
	}

	return body, nil
}

func isNotFound(err error) bool {
	var (
		notFound     *s3types.NotFound
		noSuchKey    *s3types.NoSuchKey
		noSuchBucket *s3types.NoSuchBucket
	)

	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) || errors.As(err, &noSuchBucket) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return true
		}
	}

	return false
}
