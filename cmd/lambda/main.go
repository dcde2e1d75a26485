// Command lambda is the AWS Lambda entry point for the handlers in package
// lambda. The handler is selected with the HANDLER environment variable.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	awslambda "github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog"

	"github.com/queueglue/plugins/awsconfig"
	"github.com/queueglue/plugins/lambda"
	"github.com/queueglue/plugins/logging"
	"github.com/queueglue/plugins/s3"
	"github.com/queueglue/plugins/sqs"
)

const (
	envHandler     = "HANDLER"
	envForward     = "FORWARD_QUEUE"
	envBucket      = "EXTENDED_CLIENT_BUCKET"
	envLogLevel    = "LOG_LEVEL"
	envConcurrency = "LARGE_FORWARD_CONCURRENCY"

	defaultConcurrency = 4
)

func main() {
	logger, err := newLogger(os.Getenv(envLogLevel))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid %s: %v\n", envLogLevel, err)
		os.Exit(1)
	}

	handler, err := buildHandler(context.Background(), os.Getenv(envHandler), logger)
	if err != nil {
		logger.Errorf("Failed to start: %v", err)
		os.Exit(1)
	}

	awslambda.Start(handler)
}

func newLogger(level string) (logging.Logger, error) {
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	zl := zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()

	return logging.NewZerolog(zl), nil
}

func buildHandler(ctx context.Context, name string, logger logging.Logger) (any, error) {
	switch name {
	case "echo":
		return lambda.EchoHandler, nil
	case "stream":
		return lambda.StreamHandler, nil
	case "forward":
		queue, err := forwardQueue(ctx, logger, false)
		if err != nil {
			return nil, err
		}
		return lambda.NewForwardHandler(queue, logger).Handle, nil
	case "large-forward":
		queue, err := forwardQueue(ctx, logger, true)
		if err != nil {
			return nil, err
		}
		return lambda.NewLargeMessageHandler(queue, concurrency(), logger).Handle, nil
	case "":
		return nil, fmt.Errorf("%s is not set", envHandler)
	default:
		return nil, fmt.Errorf("unknown handler %q", name)
	}
}

func forwardQueue(ctx context.Context, logger logging.Logger, extended bool) (*sqs.Client, error) {
	queueName := os.Getenv(envForward)
	if queueName == "" {
		return nil, fmt.Errorf("%s is not set", envForward)
	}

	cfg := awsconfig.FromEnv()

	awsCfg, err := awsconfig.Load(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var opts []sqs.Option

	bucket := os.Getenv(envBucket)

	switch {
	case bucket != "":
		store, err := payloadStore(ctx, &awsCfg, bucket, cfg.EndpointOverride != "", logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sqs.WithPayloadStore(store))
	case extended:
		return nil, errors.New(envBucket + " is required by the large-forward handler")
	}

	return sqs.New(&awsCfg, queueName, logger, opts...).Init(ctx)
}

func payloadStore(ctx context.Context, awsCfg *aws.Config, bucket string, pathStyle bool, logger logging.Logger) (*s3.Client, error) {
	return s3.New(awsCfg, bucket, logger, s3.WithUsePathStyle(pathStyle)).Init(ctx)
}

func concurrency() int {
	n, err := strconv.Atoi(os.Getenv(envConcurrency))
	if err != nil || n < 1 {
		return defaultConcurrency
	}

	return n
}
