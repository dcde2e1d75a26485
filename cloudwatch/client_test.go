package cloudwatch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queueglue/plugins/logging"
)

type mockAPI struct {
	putRequests []*cloudwatch.PutMetricDataInput
	statsInput  *cloudwatch.GetMetricStatisticsInput

	putMetricDataFunc       func(ctx context.Context, params *cloudwatch.PutMetricDataInput) (*cloudwatch.PutMetricDataOutput, error)
	getMetricStatisticsFunc func(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput) (*cloudwatch.GetMetricStatisticsOutput, error)
}

func (m *mockAPI) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.putRequests = append(m.putRequests, params)

	if m.putMetricDataFunc != nil {
		return m.putMetricDataFunc(ctx, params)
	}

	return &cloudwatch.PutMetricDataOutput{}, nil
}

func (m *mockAPI) GetMetricStatistics(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error) {
	m.statsInput = params

	if m.getMetricStatisticsFunc != nil {
		return m.getMetricStatisticsFunc(ctx, params)
	}

	return &cloudwatch.GetMetricStatisticsOutput{}, nil
}

var fixedTime = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, api *mockAPI, opts ...Option) *Client {
	t.Helper()

	opts = append(opts, WithAPI(api), WithClock(func() time.Time { return fixedTime }))

	client, err := New(&aws.Config{}, "QueueGlue", logging.Nop(), opts...).Init(t.Context())
	require.NoError(t, err)

	return client
}

func metrics(n int) []types.MetricDatum {
	out := make([]types.MetricDatum, n)
	for i := range out {
		out[i] = CountMetric("Queue", "orders", fmt.Sprintf("metric-%d", i), i, fixedTime)
	}

	return out
}

func TestInit_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(&aws.Config{}, "", logging.Nop(), WithAPI(&mockAPI{})).Init(t.Context())
	require.Error(t, err)

	_, err = New(&aws.Config{}, "ns", logging.Nop(), WithAPI(&mockAPI{}), WithBatchSize(0)).Init(t.Context())
	require.Error(t, err)

	_, err = New(&aws.Config{}, "ns", logging.Nop(), WithAPI(&mockAPI{}), WithBatchSize(1001)).Init(t.Context())
	require.Error(t, err)

	client, err := New(&aws.Config{}, "ns", logging.Nop(), WithAPI(&mockAPI{})).Init(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "ns", client.Namespace())
}

func TestCountMetric(t *testing.T) {
	t.Parallel()

	m := CountMetric("Queue", "orders", "Sent", 7, fixedTime)

	assert.Equal(t, "Sent", aws.ToString(m.MetricName))
	assert.InDelta(t, 7.0, aws.ToFloat64(m.Value), 0)
	assert.Equal(t, types.StandardUnitCount, m.Unit)
	assert.Equal(t, fixedTime, aws.ToTime(m.Timestamp))
	require.Len(t, m.Dimensions, 1)
	assert.Equal(t, "Queue", aws.ToString(m.Dimensions[0].Name))
	assert.Equal(t, "orders", aws.ToString(m.Dimensions[0].Value))
}

func TestLogMetrics_GroupsOf25(t *testing.T) {
	t.Parallel()

	api := &mockAPI{}
	client := newTestClient(t, api)

	input := metrics(60)

	sent, err := client.LogMetrics(t.Context(), input)
	require.NoError(t, err)
	assert.Equal(t, 3, sent)

	require.Len(t, api.putRequests, 3)

	next := 0

	for i, want := range []int{25, 25, 10} {
		req := api.putRequests[i]
		assert.Equal(t, "QueueGlue", aws.ToString(req.Namespace))
		require.Len(t, req.MetricData, want)

		for _, m := range req.MetricData {
			assert.Equal(t, fmt.Sprintf("metric-%d", next), aws.ToString(m.MetricName))
			next++
		}
	}
}

func TestLogMetrics_CustomBatchSize(t *testing.T) {
	t.Parallel()

	api := &mockAPI{}
	client := newTestClient(t, api, WithBatchSize(1000))

	sent, err := client.LogMetrics(t.Context(), metrics(1000))
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

func TestLogMetrics_Empty(t *testing.T) {
	t.Parallel()

	api := &mockAPI{}
	client := newTestClient(t, api)

	sent, err := client.LogMetrics(t.Context(), nil)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, api.putRequests)
}

func TestLogMetrics_StopsAtFirstError(t *testing.T) {
	t.Parallel()

	api := &mockAPI{
		putMetricDataFunc: func(_ context.Context, _ *cloudwatch.PutMetricDataInput) (*cloudwatch.PutMetricDataOutput, error) {
			return nil, errors.New("throttled")
		},
	}
	client := newTestClient(t, api)

	sent, err := client.LogMetrics(t.Context(), metrics(30))
	require.Error(t, err)
	assert.Zero(t, sent)
	assert.Len(t, api.putRequests, 1)
}

func TestAverageForDays(t *testing.T) {
	t.Parallel()

	api := &mockAPI{
		getMetricStatisticsFunc: func(_ context.Context, _ *cloudwatch.GetMetricStatisticsInput) (*cloudwatch.GetMetricStatisticsOutput, error) {
			return &cloudwatch.GetMetricStatisticsOutput{
				Datapoints: []types.Datapoint{{Average: aws.Float64(12.5)}},
			}, nil
		},
	}
	client := newTestClient(t, api)

	avg, err := client.AverageForDays(t.Context(), 7, "Queue", "orders", "Sent")
	require.NoError(t, err)
	assert.InDelta(t, 12.5, avg, 0)

	in := api.statsInput
	assert.Equal(t, fixedTime, aws.ToTime(in.EndTime))
	assert.Equal(t, fixedTime.AddDate(0, 0, -7), aws.ToTime(in.StartTime))
	assert.Equal(t, int32(7*24*3600), aws.ToInt32(in.Period))
	assert.Equal(t, []types.Statistic{types.StatisticAverage}, in.Statistics)
	assert.Equal(t, "Sent", aws.ToString(in.MetricName))
}

func TestAverageForDays_NoDatapoints(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, &mockAPI{})

	avg, err := client.AverageForDays(t.Context(), 1, "Queue", "orders", "Sent")
	require.NoError(t, err)
	assert.Zero(t, avg)

	_, err = client.AverageForDays(t.Context(), 0, "Queue", "orders", "Sent")
	require.Error(t, err)
}

func TestNotInitialized(t *testing.T) {
	t.Parallel()

	client := New(&aws.Config{}, "ns", logging.Nop())

	_, err := client.LogMetrics(t.Context(), metrics(1))
	require.ErrorIs(t, err, ErrNotInitialized)

	_, err = client.AverageForDays(t.Context(), 1, "a", "b", "c")
	require.ErrorIs(t, err, ErrNotInitialized)
}
