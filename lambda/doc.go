// Package lambda contains AWS Lambda handlers built on the sqs package.
//
// [ForwardHandler] and [LargeMessageHandler] consume SQS event source
// batches and report per-record failures through
// events.SQSEventResponse, so only failed records are retried when the
// event source mapping has ReportBatchItemFailures enabled. [EchoHandler] and
// [StreamHandler] are minimal handlers for smoke-testing deployments.
//
// cmd/lambda wires these handlers to the Lambda runtime.
package lambda
