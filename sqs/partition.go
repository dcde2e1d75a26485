package sqs

import (
	"encoding/json"

	"github.com/google/uuid"
)

const (
	// DefaultMaxBatchBytes is the default upper bound on the summed size
	// estimate of the entries in one SendMessageBatch request. It leaves
	// headroom below the 262,144 byte request limit for protocol overhead.
	DefaultMaxBatchBytes = 256000

	// DefaultMaxBatchCount is the maximum number of entries SQS accepts in
	// one SendMessageBatch request.
	DefaultMaxBatchCount = 10

	// maxRequestBytes is the hard SQS limit on a single request payload.
	maxRequestBytes = 262144
)

// IDGenerator produces the per-entry correlation IDs used by
// SendMessageBatch. IDs must be unique within a batch.
type IDGenerator interface {
	NewID() string
}

// IDGeneratorFunc adapts a plain function to [IDGenerator].
type IDGeneratorFunc func() string

// NewID calls f.
func (f IDGeneratorFunc) NewID() string { return f() }

// UUIDGenerator generates random (version 4) UUIDs.
//
// A failure of the system random source is treated as unrecoverable and
// panics; an entry without an ID cannot be correlated with its send result.
type UUIDGenerator struct{}

// NewID returns a new random UUID string.
func (UUIDGenerator) NewID() string { return uuid.NewString() }

// BatchEntry is one message body paired with its correlation ID and the
// estimated number of bytes it contributes to a SendMessageBatch request.
type BatchEntry struct {
	ID   string
	Body string
	Size int
}

// Batch is an ordered group of entries sent in a single SendMessageBatch
// request.
type Batch []BatchEntry

// Bytes returns the summed size estimate of the entries in b.
func (b Batch) Bytes() int {
	n := 0
	for _, e := range b {
		n += e.Size
	}

	return n
}

// Bodies returns the message bodies of b in order.
func (b Batch) Bodies() []string {
	bodies := make([]string, len(b))
	for i, e := range b {
		bodies[i] = e.Body
	}

	return bodies
}

// Partitioner splits an ordered list of message bodies into batches that
// respect both a byte-size bound and an entry-count bound.
//
// A Partitioner holds no mutable state and is safe for concurrent use.
type Partitioner struct {
	maxBatchBytes int
	maxBatchCount int
	ids           IDGenerator
}

// NewPartitioner returns a Partitioner with the given bounds. Non-positive
// bounds fall back to [DefaultMaxBatchBytes] and [DefaultMaxBatchCount]; a
// nil ids falls back to [UUIDGenerator].
func NewPartitioner(maxBatchBytes, maxBatchCount int, ids IDGenerator) *Partitioner {
	if maxBatchBytes <= 0 {
		maxBatchBytes = DefaultMaxBatchBytes
	}

	if maxBatchCount <= 0 {
		maxBatchCount = DefaultMaxBatchCount
	}

	if ids == nil {
		ids = UUIDGenerator{}
	}

	return &Partitioner{
		maxBatchBytes: maxBatchBytes,
		maxBatchCount: maxBatchCount,
		ids:           ids,
	}
}

// Partition groups messages into batches in a single greedy pass.
//
// Input order is preserved within and across batches. The current batch is
// sealed before an entry is added when that entry would push the running
// size over the byte bound, or when the batch already holds the maximum
// number of entries. A message that alone exceeds the byte bound is never
// split: it is accepted into an empty batch and sealed by the next entry.
//
// The trailing batch is always emitted, so an empty input yields exactly
// one empty batch.
//
// Partition panics if the [IDGenerator] returns an empty ID.
func (p *Partitioner) Partition(messages []string) []Batch {
	return p.partition(messages, nil)
}

// partition is Partition with extra bytes added to the size of each entry,
// such as the message attributes sent with it. A nil extra adds nothing.
func (p *Partitioner) partition(messages []string, extra []int) []Batch {
	var batches []Batch

	current := Batch{}
	currentBytes := 0

	for i, m := range messages {
		id := p.ids.NewID()
		if id == "" {
			panic("sqs: IDGenerator returned an empty ID")
		}

		entry := newBatchEntry(id, m)
		if extra != nil {
			entry.Size += extra[i]
		}

		// An empty batch is never sealed, so an oversized first entry
		// still lands in a batch of its own.
		if len(current) > 0 && (currentBytes+entry.Size > p.maxBatchBytes || len(current) >= p.maxBatchCount) {
			batches = append(batches, current)
			current = Batch{}
			currentBytes = 0
		}

		current = append(current, entry)
		currentBytes += entry.Size
	}

	return append(batches, current)
}

// wireEntry mirrors the JSON shape of a SendMessageBatchRequestEntry
// without attributes.
type wireEntry struct {
	ID          string `json:"Id"`
	MessageBody string `json:"MessageBody"`
}

func newBatchEntry(id, body string) BatchEntry {
	return BatchEntry{
		ID:   id,
		Body: body,
		Size: entrySize(id, body),
	}
}

// entrySize estimates the bytes an entry occupies in a JSON protocol
// request. The estimate ignores request-level framing.
func entrySize(id, body string) int {
	b, err := json.Marshal(wireEntry{ID: id, MessageBody: body})
	if err != nil {
		// Strings always marshal; fall back to the raw lengths regardless.
		return len(id) + len(body)
	}

	return len(b)
}
