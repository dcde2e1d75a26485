// Package s3 stores SQS message payloads in an S3 bucket.
//
// A [Client] writes each payload under a random key and hands back a JSON
// [Pointer] that the sqs package sends in place of the payload:
//
//	{"s3BucketName":"my-bucket","s3Key":"payloads/0d9f..."}
//
// Pointers name their own bucket, so a consumer can resolve payloads written
// to any bucket it has read access to.
//
//	store, err := s3.New(&awsCfg, "my-bucket", logger,
//	    s3.WithKeyPrefix("payloads/"),
//	).Init(ctx)
//
//	client, err := sqs.New(&awsCfg, "orders", logger,
//	    sqs.WithPayloadStore(store),
//	).Init(ctx)
//
// The Client also exposes plain object helpers ([Client.PutObject],
// [Client.GetObject], [Client.ObjectExists]) for the same bucket.
package s3
