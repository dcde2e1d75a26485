package secretsmanager

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/queueglue/plugins/logging"
)

// Client creates, updates and reads string secrets.
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
		logger: logger.WithField("plugin", "secretsmanager"),
	}
}

// Init creates the Secrets Manager client. Init is idempotent and must be
// called before concurrent use.
func (c *Client) Init(_ context.Context) (*Client, error) {
	if c.initialized {
		return c, nil
	}

	if c.opts.api != nil {
		c.client = c.opts.api
	} else {
		c.client = secretsmanager.NewFromConfig(*c.awsCfg)
	}

	c.initialized = true

	return c, nil
}

// CreateSecret creates a secret named name holding value and returns its ARN.
func (c *Client) CreateSecret(ctx context.Context, name, value string) (string, error) {
	if !c.initialized {
		return "", ErrNotInitialized
	}

	if name == "" {
		return "", errors.New("secret name cannot be empty")
	}

	input := &secretsmanager.CreateSecretInput{
		Name:         aws.String(name),
		SecretString: aws.String(value),
	}

	if c.opts.kmsKeyID != "" {
		input.KmsKeyId = aws.String(c.opts.kmsKeyID)
	}

	output, err := c.client.CreateSecret(ctx, input)
	if err != nil {
		var exists *smtypes.ResourceExistsException
		if errors.As(err, &exists) {
			return "", fmt.Errorf("%w: %s", ErrSecretExists, name)
		}

		return "", fmt.Errorf("failed to create secret %s: %w", name, err)
	}

	c.logger.WithField("secret", name).Debug("Secret created")

	return aws.ToString(output.ARN), nil
}

// UpdateSecret stores value as the new current version of the secret
// identified by nameOrARN.
func (c *Client) UpdateSecret(ctx context.Context, nameOrARN, value string) error {
	if !c.initialized {
		return ErrNotInitialized
	}

	_, err := c.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(nameOrARN),
		SecretString: aws.String(value),
	})
	if err != nil {
		return mapNotFound(err, nameOrARN, "failed to update secret")
	}

	c.logger.WithField("secret", nameOrARN).Debug("Secret updated")

	return nil
}

// ReadSecret returns the current string value of the secret identified by
// nameOrARN.
func (c *Client) ReadSecret(ctx context.Context, nameOrARN string) (string, error) {
	if !c.initialized {
		return "", ErrNotInitialized
	}

	output, err := c.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(nameOrARN),
	})
	if err != nil {
		return "", mapNotFound(err, nameOrARN, "failed to read secret")
	}

	if output.SecretString == nil {
		return "", fmt.Errorf("%w: %s", ErrBinarySecret, nameOrARN)
	}

	return *output.SecretString, nil
}

func mapNotFound(err error, id, msg string) error {
	var notFound *smtypes.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %s", ErrSecretNotFound, id)
	}

	return fmt.Errorf("%s %s: %w", msg, id, err)
}
