package archive

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockS3 struct {
	mock.Mock
	body []byte
}

func (m *MockS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if params.Body != nil {
		m.body, _ = io.ReadAll(params.Body)
	}
	args := m.Called(aws.ToString(params.Bucket), aws.ToString(params.Key), aws.ToString(params.ContentType))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

type MockPresigner struct {
	mock.Mock
}

func (m *MockPresigner) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	args := m.Called(aws.ToString(params.Key), opts.Expires)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*v4.PresignedHTTPRequest), args.Error(1)
}

func TestS3Archive_Put(t *testing.T) {
	client := new(MockS3)
	presigner := new(MockPresigner)
	archive := NewS3Archive(client, presigner, "reports-bucket", "/valuations/", 15*time.Minute, zap.NewNop())
	fixed := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	archive.now = func() time.Time { return fixed }

	key := archive.Key("abc", "valuation_P-1_2024-06-30.pdf")
	assert.Equal(t, "valuations/abc/valuation_P-1_2024-06-30.pdf", key)

	client.On("PutObject", "reports-bucket", key, "application/pdf").
		Return(&s3.PutObjectOutput{ETag: aws.String(`"9b2cf535f27731c974343645a3985328"`)}, nil)
	presigner.On("PresignGetObject", key, 15*time.Minute).
		Return(&v4.PresignedHTTPRequest{URL: "https://reports-bucket.s3.amazonaws.com/" + key + "?X-Amz-Signature=x"}, nil)

	obj, err := archive.Put(context.Background(), key, "application/pdf", []byte("%PDF-1.3"))
	require.NoError(t, err)

	assert.Equal(t, []byte("%PDF-1.3"), client.body)
	assert.Equal(t, "reports-bucket", obj.Bucket)
	assert.Equal(t, 8, obj.Size)
	assert.Equal(t, "9b2cf535f27731c974343645a3985328", obj.ETag)
	assert.Contains(t, obj.URL, "X-Amz-Signature")
	require.NotNil(t, obj.URLExpiresAt)
	assert.Equal(t, fixed.Add(15*time.Minute), *obj.URLExpiresAt)
}

func TestS3Archive_PutUploadError(t *testing.T) {
	client := new(MockS3)
	presigner := new(MockPresigner)
	archive := NewS3Archive(client, presigner, "b", "", time.Minute, zap.NewNop())

	client.On("PutObject", "b", "k.csv", "text/csv").Return(nil, errors.New("access denied"))

	_, err := archive.Put(context.Background(), "k.csv", "text/csv", []byte("a,b"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
	presigner.AssertNotCalled(t, "PresignGetObject", mock.Anything, mock.Anything)
}

func TestS3Archive_PresignFailureKeepsObject(t *testing.T) {
	client := new(MockS3)
	presigner := new(MockPresigner)
	archive := NewS3Archive(client, presigner, "b", "", time.Minute, zap.NewNop())

	client.On("PutObject", "b", "k.csv", "text/csv").Return(&s3.PutObjectOutput{}, nil)
	presigner.On("PresignGetObject", "k.csv", time.Minute).Return(nil, errors.New("no credentials"))

	obj, err := archive.Put(context.Background(), "k.csv", "text/csv", []byte("a,b"))
	require.NoError(t, err)
	assert.Empty(t, obj.URL)
	assert.Nil(t, obj.URLExpiresAt)
}

func TestS3Archive_WithoutPresigner(t *testing.T) {
	client := new(MockS3)
	archive := NewS3Archive(client, nil, "b", "reports", time.Minute, zap.NewNop())
	client.On("PutObject", "b", "reports/x.xlsx", mock.Anything).Return(&s3.PutObjectOutput{}, nil)

	obj, err := archive.Put(context.Background(), archive.Key("x.xlsx"), "application/octet-stream", nil)
	require.NoError(t, err)
	assert.Equal(t, "reports/x.xlsx", obj.Key)
	assert.Empty(t, obj.URL)
}

func TestNewFromConfig_Disabled(t *testing.T) {
	_, err := NewFromConfig(context.Background(), DefaultConfig(), zap.NewNop())
	assert.ErrorIs(t, err, ErrDisabled)

	cfg := DefaultConfig()
	cfg.Enabled = true
	_, err = NewFromConfig(context.Background(), cfg, zap.NewNop())
	assert.ErrorIs(t, err, ErrDisabled)
}
