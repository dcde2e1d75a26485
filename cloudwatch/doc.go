// Package cloudwatch publishes count metrics to CloudWatch and reads back
// their averages.
//
//	metrics, err := cloudwatch.New(&awsCfg, "QueueGlue", logger).Init(ctx)
//	_, err = metrics.LogMetrics(ctx, []types.MetricDatum{
//	    cloudwatch.CountMetric("Queue", "orders", "MessagesSent", 42, time.Now()),
//	})
//
// [Client.LogMetrics] sends metrics in groups of 25 per PutMetricData
// request by default; see [WithBatchSize].
package cloudwatch
