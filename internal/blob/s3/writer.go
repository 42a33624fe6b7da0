package s3blob

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alanyoungcy/nftsales/internal/domain"
)

// minPartSize is the minimum allowed part size for S3 multipart uploads (5 MiB).
const minPartSize int64 = 5 * 1024 * 1024

// Writer implements domain.BlobWriter for the client's bucket and prefix.
type Writer struct {
	client *Client
}

// NewWriter creates a Writer for c.
func NewWriter(c *Client) *Writer {
	return &Writer{client: c}
}

// Put uploads data as a single PutObject request.
func (w *Writer) Put(ctx context.Context, key string, data io.Reader, contentType string) error {
	objKey := w.client.objectKey(key)
	_, err := w.client.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.client.bucket),
		Key:         aws.String(objKey),
		Body:        data,
		ContentType: aws.String(contentTypeFor(objKey, contentType)),
	})
	if err != nil {
		return fmt.Errorf("s3blob: put object %s: %w", objKey, err)
	}
	return nil
}

// PutMultipart uploads data through the multipart upload manager. partSize
// is clamped to the S3 minimum.
func (w *Writer) PutMultipart(ctx context.Context, key string, data io.Reader, partSize int64) error {
	if partSize < minPartSize {
		partSize = minPartSize
	}

	uploader := manager.NewUploader(w.client.s3, func(u *manager.Uploader) {
		u.PartSize = partSize
	})

	objKey := w.client.objectKey(key)
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.client.bucket),
		Key:         aws.String(objKey),
		Body:        data,
		ContentType: aws.String(contentTypeFor(objKey, "")),
	})
	if err != nil {
		return fmt.Errorf("s3blob: multipart upload %s: %w", objKey, err)
	}
	return nil
}

// contentTypeFor prefers an explicit type, then the key's extension, then a
// generic binary type.
func contentTypeFor(key, explicit string) string {
	if explicit != "" {
		return explicit
	}
	ext := path.Ext(key)
	if ext == ".csv" {
		return "text/csv"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// Compile-time interface check.
var _ domain.BlobWriter = (*Writer)(nil)
