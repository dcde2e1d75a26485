package ssm

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/queueglue/plugins/logging"
)

// Client reads and writes Parameter Store values.
//
// Create a Client with [New], then call [Client.Init] once before any other
// method.
type Client struct {
	client      API
	awsCfg      *aws.Config
	opts        *Options
	logger      logging.Logger
	initialized bool
}

// New creates a Client. It does not connect to AWS.
func New(awsCfg *aws.Config, logger logging.Logger, opts ...Option) *Client {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Client{
		awsCfg: awsCfg,
		opts:   options,
		logger: logger.WithField("plugin", "ssm"),
	}
}

// Init validates options and creates the SSM client. Init is idempotent and
// must be called before concurrent use.
func (c *Client) Init(_ context.Context) (*Client, error) {
	if c.initialized {
		return c, nil
	}

	if err := c.opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid SSM options: %w", err)
	}

	if c.opts.api != nil {
		c.client = c.opts.api
	} else {
		c.client = ssm.NewFromConfig(*c.awsCfg)
	}

	c.initialized = true

	return c, nil
}

// WriteParameter stores value under name and returns the new parameter
// version.
func (c *Client) WriteParameter(ctx context.Context, name, value, description string) (int64, error) {
	if !c.initialized {
		return 0, ErrNotInitialized
	}

	if name == "" {
		return 0, errors.New("parameter name cannot be empty")
	}

	input := &ssm.PutParameterInput{
		Name:      aws.String(name),
		Value:     aws.String(value),
		Type:      c.opts.parameterType,
		Overwrite: aws.Bool(c.opts.overwrite),
	}

	if description != "" {
		input.Description = aws.String(description)
	}

	if c.opts.kmsKeyID != "" {
		input.KeyId = aws.String(c.opts.kmsKeyID)
	}

	output, err := c.client.PutParameter(ctx, input)
	if err != nil {
		var exists *ssmtypes.ParameterAlreadyExists
		if errors.As(err, &exists) {
			return 0, fmt.Errorf("%w: %s", ErrParameterExists, name)
		}

		return 0, fmt.Errorf("failed to put SSM parameter %s: %w", name, err)
	}

	c.logger.WithField("parameter", name).WithField("version", output.Version).Debug("SSM parameter written")

	return output.Version, nil
}

// ReadParameter returns the current value of name. SecureString values are
// decrypted.
func (c *Client) ReadParameter(ctx context.Context, name string) (string, error) {
	if !c.initialized {
		return "", ErrNotInitialized
	}

	output, err := c.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *ssmtypes.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("%w: %s", ErrParameterNotFound, name)
		}

		return "", fmt.Errorf("failed to get SSM parameter %s: %w", name, err)
	}

	if output.Parameter == nil {
		return "", fmt.Errorf("%w: %s", ErrParameterNotFound, name)
	}

	return aws.ToString(output.Parameter.Value), nil
}
