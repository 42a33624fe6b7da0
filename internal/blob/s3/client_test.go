package s3blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormaliseEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		useSSL   bool
		want     string
	}{
		{"scheme kept", "http://localhost:9000", true, "http://localhost:9000"},
		{"https added", "e2.idrive.com", true, "https://e2.idrive.com"},
		{"http added", "minio:9000", false, "http://minio:9000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normaliseEndpoint(tt.endpoint, tt.useSSL))
		})
	}
}

func TestObjectKeyPrefix(t *testing.T) {
	c := &Client{prefix: normalisePrefix("/exports/nft/")}
	assert.Equal(t, "exports/nft/sales.csv", c.objectKey("/sales.csv"))

	bare := &Client{prefix: normalisePrefix("")}
	assert.Equal(t, "sales.csv", bare.objectKey("sales.csv"))
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "text/plain", contentTypeFor("a.csv", "text/plain"))
	assert.Equal(t, "text/csv", contentTypeFor("a.csv", ""))
	assert.Equal(t, "application/json", contentTypeFor("a.json", ""))
	assert.Equal(t, "application/octet-stream", contentTypeFor("a", ""))
}

func TestNewRequiresBucketAndRegion(t *testing.T) {
	_, err := New(context.Background(), ClientConfig{Region: "us-east-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")

	_, err = New(context.Background(), ClientConfig{Bucket: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "region")
}
