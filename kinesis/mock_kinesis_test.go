package kinesis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"
)

// mockAPI is an in-memory Kinesis stream. Records are spread over shards
// round robin. Iterators have the form "<shard>/<position>".
type mockAPI struct {
	mu      sync.Mutex
	exists  bool
	shards  []string
	records map[string][]types.Record
	closed  map[string]bool
	next    int

	createInputs   []*kinesis.CreateStreamInput
	putInputs      []*kinesis.PutRecordsInput
	getRecordsSeen []*kinesis.GetRecordsInput

	putRecordsFunc func(ctx context.Context, params *kinesis.PutRecordsInput) (*kinesis.PutRecordsOutput, error)
	listShardsFunc func(ctx context.Context, params *kinesis.ListShardsInput) (*kinesis.ListShardsOutput, error)
}

func newMockAPI(shards int) *mockAPI {
	m := &mockAPI{
		exists:  shards > 0,
		records: map[string][]types.Record{},
		closed:  map[string]bool{},
	}
	m.addShards(shards)

	return m
}

func (m *mockAPI) addShards(n int) {
	for range n {
		m.shards = append(m.shards, fmt.Sprintf("shardId-%012d", len(m.shards)))
	}
}

func (m *mockAPI) CreateStream(_ context.Context, params *kinesis.CreateStreamInput, _ ...func(*kinesis.Options)) (*kinesis.CreateStreamOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.createInputs = append(m.createInputs, params)
	m.exists = true
	m.addShards(int(aws.ToInt32(params.ShardCount)))

	return &kinesis.CreateStreamOutput{}, nil
}

func (m *mockAPI) DescribeStream(_ context.Context, params *kinesis.DescribeStreamInput, _ ...func(*kinesis.Options)) (*kinesis.DescribeStreamOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.exists {
		return nil, &types.ResourceNotFoundException{Message: aws.String("stream not found")}
	}

	return &kinesis.DescribeStreamOutput{
		StreamDescription: &types.StreamDescription{
			StreamName:   params.StreamName,
			StreamStatus: types.StreamStatusActive,
		},
	}, nil
}

func (m *mockAPI) PutRecords(ctx context.Context, params *kinesis.PutRecordsInput, _ ...func(*kinesis.Options)) (*kinesis.PutRecordsOutput, error) {
	m.mu.Lock()
	m.putInputs = append(m.putInputs, params)
	m.mu.Unlock()

	if m.putRecordsFunc != nil {
		return m.putRecordsFunc(ctx, params)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	output := &kinesis.PutRecordsOutput{}

	for _, entry := range params.Records {
		shard := m.shards[m.next%len(m.shards)]
		m.next++

		seq := strconv.Itoa(len(m.records[shard]))
		m.records[shard] = append(m.records[shard], types.Record{
			Data:           entry.Data,
			PartitionKey:   entry.PartitionKey,
			SequenceNumber: aws.String(seq),
		})

		output.Records = append(output.Records, types.PutRecordsResultEntry{
			ShardId:        aws.String(shard),
			SequenceNumber: aws.String(seq),
		})
	}

	return output, nil
}

func (m *mockAPI) ListShards(ctx context.Context, params *kinesis.ListShardsInput, _ ...func(*kinesis.Options)) (*kinesis.ListShardsOutput, error) {
	if m.listShardsFunc != nil {
		return m.listShardsFunc(ctx, params)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	output := &kinesis.ListShardsOutput{}
	for _, id := range m.shards {
		output.Shards = append(output.Shards, types.Shard{ShardId: aws.String(id)})
	}

	return output, nil
}

func (m *mockAPI) GetShardIterator(_ context.Context, params *kinesis.GetShardIteratorInput, _ ...func(*kinesis.Options)) (*kinesis.GetShardIteratorOutput, error) {
	if params.ShardIteratorType != types.ShardIteratorTypeTrimHorizon {
		return nil, fmt.Errorf("unexpected iterator type %s", params.ShardIteratorType)
	}

	return &kinesis.GetShardIteratorOutput{ShardIterator: aws.String(aws.ToString(params.ShardId) + "/0")}, nil
}

func (m *mockAPI) GetRecords(_ context.Context, params *kinesis.GetRecordsInput, _ ...func(*kinesis.Options)) (*kinesis.GetRecordsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.getRecordsSeen = append(m.getRecordsSeen, params)

	shard, posText, _ := strings.Cut(aws.ToString(params.ShardIterator), "/")

	pos, err := strconv.Atoi(posText)
	if err != nil {
		return nil, err
	}

	all := m.records[shard]
	end := min(pos+int(aws.ToInt32(params.Limit)), len(all))

	output := &kinesis.GetRecordsOutput{Records: all[pos:end]}

	if !m.closed[shard] || end < len(all) {
		output.NextShardIterator = aws.String(fmt.Sprintf("%s/%d", shard, end))
	}

	return output, nil
}

func (m *mockAPI) shardList(i int) []types.Shard {
	m.mu.Lock()
	defer m.mu.Unlock()

	return []types.Shard{{ShardId: aws.String(m.shards[i])}}
}
