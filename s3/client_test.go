package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queueglue/plugins/logging"
)

// mockAPI is an in-memory S3 implementation. Func fields override the
// default behaviour per method.
type mockAPI struct {
	mu      sync.Mutex
	objects map[string][]byte

	headBucketFunc   func(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	createBucketFunc func(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	putObjectFunc    func(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

func newMockAPI() *mockAPI {
	return &mockAPI{objects: map[string][]byte{}}
}

func objectKey(bucket, key *string) string {
	return aws.ToString(bucket) + "/" + aws.ToString(key)
}

func (m *mockAPI) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if m.headBucketFunc != nil {
		return m.headBucketFunc(ctx, params, optFns...)
	}
	return &s3.HeadBucketOutput{}, nil
}

func (m *mockAPI) CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	if m.createBucketFunc != nil {
		return m.createBucketFunc(ctx, params, optFns...)
	}
	return &s3.CreateBucketOutput{}, nil
}

func (m *mockAPI) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putObjectFunc != nil {
		return m.putObjectFunc(ctx, params, optFns...)
	}

	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[objectKey(params.Bucket, params.Key)] = body

	return &s3.PutObjectOutput{}, nil
}

func (m *mockAPI) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	body, ok := m.objects[objectKey(params.Bucket, params.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}

	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (m *mockAPI) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[objectKey(params.Bucket, params.Key)]; !ok {
		return nil, &s3types.NotFound{}
	}

	return &s3.HeadObjectOutput{}, nil
}

func (m *mockAPI) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, objectKey(params.Bucket, params.Key))

	return &s3.DeleteObjectOutput{}, nil
}

func newTestClient(t *testing.T, api *mockAPI, opts ...Option) *Client {
	t.Helper()

	opts = append(opts, WithAPI(api))

	client, err := New(&aws.Config{Region: "eu-west-1"}, "test-bucket", logging.Nop(), opts...).Init(t.Context())
	require.NoError(t, err)

	return client
}

func TestInit_Success(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, newMockAPI())

	assert.True(t, client.initialized)
	assert.Equal(t, "test-bucket", client.Bucket())

	again, err := client.Init(t.Context())
	require.NoError(t, err)
	assert.Same(t, client, again)
}

func TestInit_EmptyBucket(t *testing.T) {
	t.Parallel()

	_, err := New(&aws.Config{}, "", logging.Nop(), WithAPI(newMockAPI())).Init(t.Context())
	require.Error(t, err)
}

func TestInit_InvalidOptions(t *testing.T) {
	t.Parallel()

	_, err := New(&aws.Config{}, "b", logging.Nop(), WithAPI(newMockAPI()), WithKeyPrefix("/abs")).Init(t.Context())
	require.Error(t, err)

	_, err = New(&aws.Config{}, "b", logging.Nop(), WithAPI(newMockAPI()), WithKeyGenerator(nil)).Init(t.Context())
	require.Error(t, err)
}

func TestInit_BucketMissing(t *testing.T) {
	t.Parallel()

	api := newMockAPI()
	api.headBucketFunc = func(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
		return nil, &s3types.NotFound{}
	}

	client := New(&aws.Config{}, "test-bucket", logging.Nop(), WithAPI(api))

	_, err := client.Init(t.Context())
	require.ErrorIs(t, err, ErrBucketNotFound)
	assert.False(t, client.initialized)
}

func TestInit_CreatesMissingBucket(t *testing.T) {
	t.Parallel()

	var created *s3.CreateBucketInput

	api := newMockAPI()
	api.headBucketFunc = func(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
		return nil, &smithy.GenericAPIError{Code: "NotFound"}
	}
	api.createBucketFunc = func(_ context.Context, params *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
		created = params
		return &s3.CreateBucketOutput{}, nil
	}

	newTestClient(t, api, WithCreateBucketIfMissing(true))

	require.NotNil(t, created)
	assert.Equal(t, "test-bucket", aws.ToString(created.Bucket))
	require.NotNil(t, created.CreateBucketConfiguration)
	assert.Equal(t, s3types.BucketLocationConstraint("eu-west-1"), created.CreateBucketConfiguration.LocationConstraint)
}

func TestInit_CreateBucketInUsEast1(t *testing.T) {
	t.Parallel()

	var created *s3.CreateBucketInput

	api := newMockAPI()
	api.headBucketFunc = func(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
		return nil, &s3types.NotFound{}
	}
	api.createBucketFunc = func(_ context.Context, params *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
		created = params
		return &s3.CreateBucketOutput{}, nil
	}

	_, err := New(&aws.Config{Region: "us-east-1"}, "test-bucket", logging.Nop(),
		WithAPI(api),
		WithCreateBucketIfMissing(true),
	).Init(t.Context())
	require.NoError(t, err)

	require.NotNil(t, created)
	assert.Nil(t, created.CreateBucketConfiguration)
}

func TestInit_HeadBucketError(t *testing.T) {
	t.Parallel()

	api := newMockAPI()
	api.headBucketFunc = func(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
		return nil, &smithy.GenericAPIError{Code: "Forbidden"}
	}

	_, err := New(&aws.Config{}, "test-bucket", logging.Nop(), WithAPI(api)).Init(t.Context())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBucketNotFound)
}

func TestNotInitialized(t *testing.T) {
	t.Parallel()

	client := New(&aws.Config{}, "test-bucket", logging.Nop())
	ctx := t.Context()

	_, err := client.StorePayload(ctx, "x")
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = client.GetPayload(ctx, "x")
	assert.ErrorIs(t, err, ErrNotInitialized)

	assert.ErrorIs(t, client.DeletePayload(ctx, "x"), ErrNotInitialized)
	assert.ErrorIs(t, client.PutObject(ctx, "k", nil), ErrNotInitialized)

	_, err = client.GetObject(ctx, "k")
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = client.ObjectExists(ctx, "k")
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestPayloadLifecycle(t *testing.T) {
	t.Parallel()

	api := newMockAPI()
	client := newTestClient(t, api,
		WithKeyPrefix("payloads/"),
		WithKeyGenerator(func() string { return "k1" }),
	)
	ctx := t.Context()

	pointer, err := client.StorePayload(ctx, "big body")
	require.NoError(t, err)
	assert.JSONEq(t, `{"s3BucketName":"test-bucket","s3Key":"payloads/k1"}`, pointer)

	body, err := client.GetPayload(ctx, pointer)
	require.NoError(t, err)
	assert.Equal(t, "big body", body)

	require.NoError(t, client.DeletePayload(ctx, pointer))

	_, err = client.GetPayload(ctx, pointer)
	assert.ErrorIs(t, err, ErrPayloadNotFound)
}

func TestGetPayload_HonoursPointerBucket(t *testing.T) {
	t.Parallel()

	api := newMockAPI()
	api.objects["other-bucket/key"] = []byte("elsewhere")

	client := newTestClient(t, api)

	body, err := client.GetPayload(t.Context(), `{"s3BucketName":"other-bucket","s3Key":"key"}`)
	require.NoError(t, err)
	assert.Equal(t, "elsewhere", body)
}

func TestGetPayload_InvalidPointer(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, newMockAPI())

	for _, pointer := range []string{"", "plain text", `{"s3BucketName":"b"}`, `{"s3Key":"k"}`} {
		_, err := client.GetPayload(t.Context(), pointer)
		assert.ErrorIs(t, err, ErrInvalidPointer, "pointer %q", pointer)
	}

	assert.ErrorIs(t, client.DeletePayload(t.Context(), "plain text"), ErrInvalidPointer)
}

func TestStorePayload_PutError(t *testing.T) {
	t.Parallel()

	api := newMockAPI()
	api.putObjectFunc = func(_ context.Context, _ *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return nil, errors.New("slow down")
	}

	client := newTestClient(t, api)

	_, err := client.StorePayload(t.Context(), "body")
	require.Error(t, err)
}

func TestObjectHelpers(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, newMockAPI())
	ctx := t.Context()

	exists, err := client.ObjectExists(ctx, "file.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, client.PutObject(ctx, "file.txt", []byte("contents")))

	exists, err = client.ObjectExists(ctx, "file.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	body, err := client.GetObject(ctx, "file.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("contents"), body)

	_, err = client.GetObject(ctx, "missing.txt")
	assert.ErrorIs(t, err, ErrPayloadNotFound)
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	assert.True(t, isNotFound(&s3types.NotFound{}))
	assert.True(t, isNotFound(&s3types.NoSuchKey{}))
	assert.True(t, isNotFound(&s3types.NoSuchBucket{}))
	assert.True(t, isNotFound(&smithy.GenericAPIError{Code: "NoSuchKey"}))
	assert.False(t, isNotFound(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isNotFound(errors.New("boom")))
}

func TestPointer_RoundTrip(t *testing.T) {
	t.Parallel()

	p := Pointer{BucketName: "b", Key: "k/1"}

	parsed, err := ParsePointer(p.String())
	require.NoError(t, err)
	assert.Equal(t, p, parsed)
}
