// Package kinesis writes messages to a Kinesis data stream and listens to
// every shard of it.
//
//	stream, err := kinesis.New(&awsCfg, "events", logger,
//	    kinesis.WithCreateStreamIfMissing(true),
//	).Init(ctx)
//
//	result, err := stream.PutRecords(ctx, []string{"a", "b"})
//
//	records := make(chan *kinesis.Record)
//	go stream.Listen(ctx, records)
//	for r := range records {
//	    fmt.Println(r.ShardID, string(r.Data))
//	}
package kinesis
