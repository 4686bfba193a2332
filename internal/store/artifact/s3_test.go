package artifact

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"voiceeval/internal/models"
	"voiceeval/internal/store"
)

type mockS3 struct {
	mock.Mock
}

func (m *mockS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func (m *mockS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

func (m *mockS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.HeadBucketOutput)
	return out, args.Error(1)
}

func (m *mockS3) GetBucketLocation(ctx context.Context, in *s3.GetBucketLocationInput, _ ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.GetBucketLocationOutput)
	return out, args.Error(1)
}

func TestPublicS3URL(t *testing.T) {
	key := "tts_naturalness/task 1/voice.wav"

	assert.Equal(t,
		"https://bucket.s3.amazonaws.com/tts_naturalness%2Ftask+1%2Fvoice.wav",
		PublicS3URL("bucket", "us-east-1", "us-east-1", key))
	assert.Equal(t,
		"https://bucket.s3.ap-northeast-2.amazonaws.com/tts_naturalness%2Ftask+1%2Fvoice.wav",
		PublicS3URL("bucket", "ap-northeast-2", "us-east-1", key))
}

func TestS3Store_Put(t *testing.T) {
	m := &mockS3{}
	s := newS3Store(m, S3Options{Bucket: "bucket", Region: "ap-northeast-2"})

	m.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.Bucket == "bucket" && *in.Key == "k.wav" && *in.ContentType == "audio/wav"
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	require.NoError(t, s.Put(context.Background(), "k.wav", []byte("RIFF"), "audio/wav"))
	m.AssertExpectations(t)
}

func TestS3Store_PutFailureIsUploadError(t *testing.T) {
	m := &mockS3{}
	s := newS3Store(m, S3Options{Bucket: "bucket"})
	m.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("access denied")).Once()

	err := s.Put(context.Background(), "k", nil, "text/plain")

	var uploadErr *models.UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Contains(t, err.Error(), "access denied")
}

func TestS3Store_Get(t *testing.T) {
	m := &mockS3{}
	s := newS3Store(m, S3Options{Bucket: "bucket"})
	m.On("GetObject", mock.Anything, mock.Anything).
		Return(&s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte("audio")))}, nil).Once()

	data, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("audio"), data)
}

func TestS3Store_GetMissingKey(t *testing.T) {
	m := &mockS3{}
	s := newS3Store(m, S3Options{Bucket: "bucket"})
	m.On("GetObject", mock.Anything, mock.Anything).Return(nil, &types.NoSuchKey{}).Once()

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestS3Store_BucketRegion(t *testing.T) {
	m := &mockS3{}
	s := newS3Store(m, S3Options{Bucket: "bucket"})
	m.On("GetBucketLocation", mock.Anything, mock.Anything).
		Return(&s3.GetBucketLocationOutput{}, nil).Once()
	m.On("GetBucketLocation", mock.Anything, mock.Anything).
		Return(&s3.GetBucketLocationOutput{LocationConstraint: types.BucketLocationConstraintApNortheast2}, nil).Once()

	region, err := s.BucketRegion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", region)

	region, err = s.BucketRegion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ap-northeast-2", region)
}
