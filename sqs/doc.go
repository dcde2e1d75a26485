// Package sqs sends to and receives from an AWS SQS queue.
//
// # Sending
//
// [Client.SendBatch] splits a list of message bodies into SendMessageBatch
// requests with a [Partitioner]. Each request holds at most 10 entries and
// stays under 256,000 estimated bytes, where an entry's size is the length
// of its JSON encoding as {"Id":...,"MessageBody":...}. Input order is
// preserved. A single body larger than the byte bound is sent alone rather
// than split.
//
//	client, err := sqs.New(&awsCfg, "orders", logger).Init(ctx)
//	result, err := client.SendBatch(ctx, bodies)
//	for _, f := range result.Failed {
//	    log.Printf("message %d rejected: %s", f.Index, f.Code)
//	}
//
// Queues whose name ends with ".fifo" require [WithMessageGroupID]. Each
// entry then carries a deduplication ID derived from its group, its body and
// its input position, so retried entries and repeated calls with the same
// input are not delivered twice within the SQS deduplication window.
//
// # Receiving
//
// [Client.Receive] long-polls the queue and delivers [Message] values to a
// caller-supplied channel. While a message is in flight a background
// goroutine extends its visibility timeout. Callers signal completion with
// Ack (delete) or Nack (redeliver later):
//
//	sinkCh := make(chan *sqs.Message)
//	go client.Receive(ctx, sinkCh)
//	for msg := range sinkCh {
//	    process(msg.Body)
//	    msg.Ack()
//	}
//
// [Client.ReadMessages] performs a single short poll and returns bodies
// without deleting them.
//
// # Large payloads
//
// With [WithPayloadStore], bodies larger than the payload size threshold are
// written to the store and the queue carries a small pointer instead,
// flagged by the ExtendedPayloadSize message attribute. Received pointers
// are resolved transparently, and Ack removes the stored payload. The s3 and
// dynamodb packages of this module provide stores.
//
// # Configuration
//
// [Client] accepts functional options passed to [New] that take effect when
// [Client.Init] is called. See the With* functions for available settings
// and their defaults.
package sqs
