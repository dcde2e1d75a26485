// Package dynamodb stores SQS message payloads in a DynamoDB table, as an
// alternative to S3 for payloads of up to 400 KB.
//
// # Overview
//
// Each payload is a single item keyed by a random partition key ("pk") of
// the form PAYLOAD#<uuid>, with the payload in "body" and an expiry
// timestamp in "ttl". The message sent to SQS carries a JSON [Pointer]:
//
//	{"tableName":"payloads","key":"PAYLOAD#0d9f..."}
//
// # Getting Started
//
// Create a [Client] with [New], supplying an AWS config, the DynamoDB table
// name, and any [Option] values you need, then connect it and hand it to the
// SQS client as its payload store:
//
//	store := dynamodb.New(&awsCfg, tableName, dynamodb.WithTimeToLive(4*24*time.Hour))
//	if err := store.Connect(); err != nil { ... }
//	if err := store.Init(ctx, false); err != nil { ... }
//
//	client, err := sqs.New(&awsCfg, "orders", logger,
//	    sqs.WithPayloadStore(store),
//	    sqs.WithPayloadSizeThreshold(64*1024),
//	).Init(ctx)
//
// By default, [Client.Connect] creates an AWS SDK v2 DynamoDB client from the
// supplied [aws.Config]. Supply [WithAPI] to inject a custom or mock
// implementation.
//
// # TTL Behaviour
//
// Payload records expire after 14 days by default, matching the maximum SQS
// retention period. TTL values are stored as Unix timestamps and rely on
// DynamoDB's built-in TTL feature for automatic deletion.
//
// # Concurrency
//
// [Client] is safe for concurrent use by multiple goroutines.
package dynamodb
