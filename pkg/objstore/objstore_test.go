package objstore

import (
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockS3 struct {
	mock.Mock
}

func (m *mockS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*s3.PutObjectOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockS3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*s3.DeleteObjectOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestStore_Put(t *testing.T) {
	s3c := new(mockS3)
	s3c.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		if *in.Bucket != "media-bucket" || *in.Key != "agents/1/media/x.jpg" {
			return false
		}
		if *in.ContentType != "image/jpeg" {
			return false
		}
		body, _ := io.ReadAll(in.Body)
		return string(body) == "jpeg-bytes"
	})).Return(&s3.PutObjectOutput{}, nil)

	store, err := New(s3c, "media-bucket", "https://cdn.example.com")
	require.NoError(t, err)

	url, err := store.Put(context.Background(), "agents/1/media/x.jpg", []byte("jpeg-bytes"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/agents/1/media/x.jpg", url)
	s3c.AssertExpectations(t)
}

func TestStore_PublicURL_DefaultsToBucketHost(t *testing.T) {
	store, err := New(new(mockS3), "media-bucket", "")
	require.NoError(t, err)
	assert.Equal(t, "https://media-bucket.s3.amazonaws.com/a/b.png", store.PublicURL("a/b.png"))
}

func TestStore_Delete(t *testing.T) {
	s3c := new(mockS3)
	s3c.On("DeleteObject", mock.Anything, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
		return *in.Bucket == "media-bucket" && *in.Key == "agents/1/media/x.jpg"
	})).Return(&s3.DeleteObjectOutput{}, nil)

	store, err := New(s3c, "media-bucket", "")
	require.NoError(t, err)
	require.NoError(t, store.Delete(context.Background(), "agents/1/media/x.jpg"))
	s3c.AssertExpectations(t)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "bucket", "")
	assert.Error(t, err)

	_, err = New(new(mockS3), "", "")
	assert.Error(t, err)
}
