package dynamodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	// PartitionKey is the DynamoDB partition key attribute name. The table
	// must have a simple primary key on this attribute.
	PartitionKey = "pk"

	// BodyAttr is the attribute name used to store the payload.
	BodyAttr = "body"

	// TTLAttr is the attribute name used for DynamoDB TTL-based expiration. The
	// table must have TTL enabled on this attribute.
	TTLAttr = "ttl"

	// KeyPrefix prefixes every payload partition key.
	KeyPrefix = "PAYLOAD#"

	// MaxBodyBytes is the largest payload accepted by [Client.StorePayload].
	// It leaves room below the 400 KB DynamoDB item limit for the key and TTL
	// attributes.
	MaxBodyBytes = 400000

	// maxBackoff is the maximum backoff duration for retry loops.
	maxBackoff = 2 * time.Second
)

// Pointer references a payload stored in a DynamoDB table. Its JSON encoding
// is the message body sent to SQS in place of the payload.
type Pointer struct {
	TableName string `json:"tableName"`
	Key       string `json:"key"`
}

// ParsePointer decodes a pointer produced by [Client.StorePayload].
func ParsePointer(s string) (Pointer, error) {
	var p Pointer

	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return Pointer{}, fmt.Errorf("%w: %w", ErrInvalidPointer, err)
	}

	if p.TableName == "" || !strings.HasPrefix(p.Key, KeyPrefix) {
		return Pointer{}, fmt.Errorf("%w: missing table name or payload key", ErrInvalidPointer)
	}

	return p, nil
}

// String returns the JSON encoding of p.
func (p Pointer) String() string {
	// Marshalling two string fields cannot fail.
	bs, _ := json.Marshal(p)
	return string(bs)
}

// Client stores SQS message payloads in a DynamoDB table. It implements the
// payload store interface of the sqs package.
//
// Use [New] to create a Client, [Client.Connect] to initialize the underlying
// DynamoDB connection, and [Client.Init] to validate the table schema.
type Client struct {
	client    API
	tableName string
	awsCfg    *aws.Config
	opts      *Options
}

// New creates a new Client configured with the given AWS config, table name,
// and optional options. Call [Client.Connect] on the returned client before use.
func New(awsCfg *aws.Config, tableName string, opts ...Option) *Client {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Client{
		awsCfg:    awsCfg,
		tableName: tableName,
		opts:      options,
	}
}

// Connect initializes the DynamoDB client from the AWS config provided to [New].
// It must be called before any other Client methods, and must complete before
// the Client is used concurrently.
func (c *Client) Connect() error {
	if c.tableName == "" {
		return errors.New("DynamoDB table name cannot be empty")
	}

	if err := c.opts.validate(); err != nil {
		return fmt.Errorf("invalid DynamoDB options: %w", err)
	}

	// Use injected DynamoDB API if provided (useful for testing).
	if c.opts.dynamoDBAPI != nil {
		c.client = c.opts.dynamoDBAPI
	} else {
		c.client = dynamodb.NewFromConfig(*c.awsCfg)
	}

	return nil
}

// TableName returns the table payloads are written to.
func (c *Client) TableName() string {
	return c.tableName
}

// Init validates the DynamoDB table schema. It checks that the table exists,
// is active, has a simple primary key on pk and has TTL enabled on the ttl
// attribute.
//
// Pass skipSchemaValidation true to skip all checks and return immediately,
// which is useful when schema validation is managed separately.
func (c *Client) Init(ctx context.Context, skipSchemaValidation bool) error {
	if skipSchemaValidation {
		return nil
	}

	input := &dynamodb.DescribeTableInput{
		TableName: aws.String(c.tableName),
	}

	response, err := c.client.DescribeTable(ctx, input)
	if err != nil {
		var notFoundError *dynamodbtypes.ResourceNotFoundException
		if errors.As(err, &notFoundError) {
			return fmt.Errorf("table %s does not exist", c.tableName)
		}
		return fmt.Errorf("failed to describe table %s: %w", c.tableName, err)
	}

	if response.Table == nil || len(response.Table.KeySchema) < 1 {
		return fmt.Errorf("table %s has no key schema", c.tableName)
	}

	if aws.ToString(response.Table.KeySchema[0].AttributeName) != PartitionKey {
		return fmt.Errorf("table %s has partition key %s, expected %s", c.tableName, aws.ToString(response.Table.KeySchema[0].AttributeName), PartitionKey)
	}

	if len(response.Table.KeySchema) > 1 {
		return fmt.Errorf("table %s has a composite primary key, expected a simple primary key", c.tableName)
	}

	if response.Table.TableStatus != dynamodbtypes.TableStatusActive {
		return fmt.Errorf("table %s is not active (status: %s)", c.tableName, response.Table.TableStatus)
	}

	ttlInput := &dynamodb.DescribeTimeToLiveInput{
		TableName: aws.String(c.tableName),
	}

	ttlResponse, err := c.client.DescribeTimeToLive(ctx, ttlInput)
	if err != nil {
		return fmt.Errorf("failed to describe TTL of table %s: %w", c.tableName, err)
	}

	if ttlResponse.TimeToLiveDescription == nil {
		return fmt.Errorf("table %s has no TTL description", c.tableName)
	}

	if ttlResponse.TimeToLiveDescription.TimeToLiveStatus != dynamodbtypes.TimeToLiveStatusEnabled {
		return fmt.Errorf("table %s has TTL status %s (expected %s)", c.tableName, ttlResponse.TimeToLiveDescription.TimeToLiveStatus, dynamodbtypes.TimeToLiveStatusEnabled)
	}

	if aws.ToString(ttlResponse.TimeToLiveDescription.AttributeName) != TTLAttr {
		return fmt.Errorf("TTL attribute name for table %s is %s, expected %s", c.tableName, aws.ToString(ttlResponse.TimeToLiveDescription.AttributeName), TTLAttr)
	}

	return nil
}

// StorePayload writes body to the table under a new random key and returns
// the JSON pointer that references it. The record expires after the TTL
// configured via [WithTimeToLive] (default: 14 days).
func (c *Client) StorePayload(ctx context.Context, body string) (string, error) {
	if len(body) > MaxBodyBytes {
		return "", fmt.Errorf("payload of %d bytes exceeds the %d byte DynamoDB limit", len(body), MaxBodyBytes)
	}

	key := KeyPrefix + c.opts.newKey()
	ttl := strconv.FormatInt(c.opts.clock().Add(c.opts.timeToLive).Unix(), 10)

	input := &dynamodb.PutItemInput{
		TableName: &c.tableName,
		Item: map[string]dynamodbtypes.AttributeValue{
			PartitionKey: &dynamodbtypes.AttributeValueMemberS{Value: key},
			BodyAttr:     &dynamodbtypes.AttributeValueMemberS{Value: body},
			TTLAttr:      &dynamodbtypes.AttributeValueMemberN{Value: ttl},
		},
		ConditionExpression: aws.String("attribute_not_exists(" + PartitionKey + ")"),
	}

	if _, err := c.client.PutItem(ctx, input); err != nil {
		return "", fmt.Errorf("failed to write payload to DynamoDB table %s: %w", c.tableName, err)
	}

	return Pointer{TableName: c.tableName, Key: key}.String(), nil
}

// GetPayload returns the payload referenced by pointer. The pointer names its
// own table, which need not be the table this Client writes to. Records past
// their TTL are reported as [ErrPayloadNotFound] even if DynamoDB has not
// removed them yet.
func (c *Client) GetPayload(ctx context.Context, pointer string) (string, error) {
	p, err := ParsePointer(pointer)
	if err != nil {
		return "", err
	}

	input := &dynamodb.GetItemInput{
		TableName:      aws.String(p.TableName),
		Key:            keyOf(p.Key),
		ConsistentRead: aws.Bool(true),
	}

	output, err := c.client.GetItem(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to read payload from DynamoDB table %s: %w", p.TableName, err)
	}

	if output.Item == nil {
		return "", fmt.Errorf("%w: %s", ErrPayloadNotFound, p.Key)
	}

	if ttl, ok := output.Item[TTLAttr].(*dynamodbtypes.AttributeValueMemberN); ok {
		expires, err := strconv.ParseInt(ttl.Value, 10, 64)
		if err == nil && c.opts.clock().Unix() > expires {
			return "", fmt.Errorf("%w: %s expired", ErrPayloadNotFound, p.Key)
		}
	}

	body, ok := output.Item[BodyAttr].(*dynamodbtypes.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("payload %s has no string body", p.Key)
	}

	return body.Value, nil
}

// DeletePayload removes the payload referenced by pointer. Deleting a payload
// that does not exist is not an error.
func (c *Client) DeletePayload(ctx context.Context, pointer string) error {
	p, err := ParsePointer(pointer)
	if err != nil {
		return err
	}

	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(p.TableName),
		Key:       keyOf(p.Key),
	}

	if _, err := c.client.DeleteItem(ctx, input); err != nil {
		return fmt.Errorf("failed to delete payload from DynamoDB table %s: %w", p.TableName, err)
	}

	return nil
}

// DropAllData deletes every item from the DynamoDB table. It scans the table
// in pages and removes each page using BatchWriteItem with exponential backoff
// for unprocessed items.
//
// This method is intended for use in tests only. Do not call it in production.
func (c *Client) DropAllData(ctx context.Context) error {
	input := &dynamodb.ScanInput{
		TableName:            aws.String(c.tableName),
		ProjectionExpression: aws.String(PartitionKey),
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		output, err := c.client.Scan(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to scan DynamoDB table %s: %w", c.tableName, err)
		}

		// Process items in batches of 25 (DynamoDB BatchWriteItem limit).
		for i := 0; i < len(output.Items); i += 25 {
			end := min(i+25, len(output.Items))

			requestItems := make([]dynamodbtypes.WriteRequest, 0, end-i)

			for _, item := range output.Items[i:end] {
				requestItems = append(requestItems, dynamodbtypes.WriteRequest{
					DeleteRequest: &dynamodbtypes.DeleteRequest{
						Key: map[string]dynamodbtypes.AttributeValue{
							PartitionKey: item[PartitionKey],
						},
					},
				})
			}

			if err := c.batchWrite(ctx, requestItems); err != nil {
				return err
			}
		}

		if output.LastEvaluatedKey == nil {
			break
		}

		input.ExclusiveStartKey = output.LastEvaluatedKey
	}

	return nil
}

// batchWrite sends up to 25 write requests, retrying unprocessed items with
// exponential backoff.
func (c *Client) batchWrite(ctx context.Context, requestItems []dynamodbtypes.WriteRequest) error {
	input := &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]dynamodbtypes.WriteRequest{
			c.tableName: requestItems,
		},
	}

	const maxRetries = 5
	backoff := 50 * time.Millisecond

	for attempt := 0; attempt <= maxRetries; attempt++ {
		batchResult, err := c.client.BatchWriteItem(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to batch write to DynamoDB table %s: %w", c.tableName, err)
		}

		if len(batchResult.UnprocessedItems) == 0 {
			return nil
		}

		if attempt == maxRetries {
			return fmt.Errorf("%d unprocessed items after %d retries", len(batchResult.UnprocessedItems[c.tableName]), maxRetries)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, maxBackoff)
		input.RequestItems = batchResult.UnprocessedItems
	}

	return nil
}

func keyOf(key string) map[string]dynamodbtypes.AttributeValue {
	return map[string]dynamodbtypes.AttributeValue{
		PartitionKey: &dynamodbtypes.AttributeValueMemberS{Value: key},
	}
}
