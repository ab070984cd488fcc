package storage

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMinioStoreValidates(t *testing.T) {
	_, err := NewMinioStore(MinioConfig{Endpoint: "localhost:9000"})
	assert.ErrorContains(t, err, "bucket is required")

	_, err = NewMinioStore(MinioConfig{Bucket: "icons"})
	assert.ErrorContains(t, err, "endpoint is required")

	s, err := NewMinioStore(MinioConfig{Endpoint: "localhost:9000", Bucket: " icons "})
	require.NoError(t, err)
	assert.Equal(t, "icons", s.bucket)
}

func TestMinioWrapMapsMissingObjects(t *testing.T) {
	s := &MinioStore{bucket: "icons"}

	for _, resp := range []minio.ErrorResponse{
		{Code: "NoSuchKey", StatusCode: http.StatusNotFound},
		{Code: "NoSuchObject"},
		{StatusCode: http.StatusNotFound},
	} {
		assert.ErrorIs(t, s.wrap("get", "output/t/a.png", resp), ErrNotFound)
	}

	err := s.wrap("put", "output/t/a.png", minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden})
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.ErrorContains(t, err, "put object icons/output/t/a.png")

	assert.False(t, errors.Is(s.wrap("read", "k", context.DeadlineExceeded), ErrNotFound))
}
