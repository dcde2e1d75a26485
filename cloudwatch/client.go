package cloudwatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/queueglue/plugins/logging"
)

// Client publishes and queries metrics in a single CloudWatch namespace.
//
// Create a Client with [New], then call [Client.Init] once before any other
// method.
type Client struct {
	client      API
	namespace   string
	awsCfg      *aws.Config
	opts        *Options
	logger      logging.Logger
	initialized bool
}

// New creates a Client for namespace. It does not connect to AWS.
func New(awsCfg *aws.Config, namespace string, logger logging.Logger, opts ...Option) *Client {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Client{
		awsCfg:    awsCfg,
		namespace: namespace,
		opts:      options,
		logger: logger.
			WithField("plugin", "cloudwatch").
			WithField("namespace", namespace),
	}
}

// Init validates options and creates the CloudWatch client. Init is
// idempotent and must be called before concurrent use.
func (c *Client) Init(_ context.Context) (*Client, error) {
	if c.initialized {
		return c, nil
	}

	if c.namespace == "" {
		return nil, errors.New("CloudWatch namespace cannot be empty")
	}

	if err := c.opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid CloudWatch options: %w", err)
	}

	if c.opts.api != nil {
		c.client = c.opts.api
	} else {
		c.client = cloudwatch.NewFromConfig(*c.awsCfg)
	}

	c.initialized = true

	return c, nil
}

// Namespace returns the namespace supplied to [New].
func (c *Client) Namespace() string {
	return c.namespace
}

// CountMetric builds a datum with unit Count and a single dimension.
func CountMetric(dimensionName, dimensionValue, metricName string, value int, timestamp time.Time) types.MetricDatum {
	return types.MetricDatum{
		MetricName: aws.String(metricName),
		Value:      aws.Float64(float64(value)),
		Unit:       types.StandardUnitCount,
		Timestamp:  aws.Time(timestamp),
		Dimensions: []types.Dimension{{
			Name:  aws.String(dimensionName),
			Value: aws.String(dimensionValue),
		}},
	}
}

// LogMetrics publishes metrics in input order, sending consecutive groups of
// at most [WithBatchSize] metrics per PutMetricData request. It returns the
// number of requests that succeeded. Sending stops at the first failed
// request. An empty input sends nothing.
func (c *Client) LogMetrics(ctx context.Context, metrics []types.MetricDatum) (int, error) {
	if !c.initialized {
		return 0, ErrNotInitialized
	}

	sent := 0

	for _, group := range partition(metrics, c.opts.batchSize) {
		_, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(c.namespace),
			MetricData: group,
		})
		if err != nil {
			return sent, fmt.Errorf("failed to put CloudWatch metric data (request %d): %w", sent+1, err)
		}

		sent++
	}

	c.logger.WithField("metrics", len(metrics)).WithField("requests", sent).Debug("CloudWatch metrics published")

	return sent, nil
}

// AverageForDays returns the average of metricName over the last days days,
// filtered to one dimension value. The whole range is a single period, so
// at most one datapoint comes back; 0 is returned when there is none.
func (c *Client) AverageForDays(ctx context.Context, days int, dimensionName, dimensionValue, metricName string) (float64, error) {
	if !c.initialized {
		return 0, ErrNotInitialized
	}

	if days < 1 {
		return 0, errors.New("days must be at least 1")
	}

	end := c.opts.clock().UTC()
	start := end.AddDate(0, 0, -days)
	period := int32(time.Duration(days) * 24 * time.Hour / time.Second)

	output, err := c.client.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(c.namespace),
		MetricName: aws.String(metricName),
		StartTime:  aws.Time(start),
		EndTime:    aws.Time(end),
		Period:     aws.Int32(period),
		Statistics: []types.Statistic{types.StatisticAverage},
		Dimensions: []types.Dimension{{
			Name:  aws.String(dimensionName),
			Value: aws.String(dimensionValue),
		}},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get CloudWatch metric statistics: %w", err)
	}

	if len(output.Datapoints) == 0 {
		return 0, nil
	}

	return aws.ToFloat64(output.Datapoints[0].Average), nil
}

// partition splits metrics into consecutive groups of at most size.
func partition(metrics []types.MetricDatum, size int) [][]types.MetricDatum {
	groups := make([][]types.MetricDatum, 0, (len(metrics)+size-1)/size)

	for start := 0; start < len(metrics); start += size {
		groups = append(groups, metrics[start:min(start+size, len(metrics))])
	}

	return groups
}
