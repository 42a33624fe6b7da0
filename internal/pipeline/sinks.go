package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alanyoungcy/nftsales/internal/domain"
)

// multipartThreshold is the CSV size above which BlobSink switches to a
// multipart upload.
const multipartThreshold = 5 * 1024 * 1024

// FileSink writes the CSV to a local path, replacing any existing file.
type FileSink struct {
	path string
}

// NewFileSink creates a FileSink writing to path.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Name returns the sink identifier.
func (s *FileSink) Name() string { return "file" }

// Write stores the CSV through a temporary file in the target directory and
// renames it into place, so readers never observe a partial file.
func (s *FileSink) Write(_ context.Context, exp Export) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(exp.CSV); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename to %s: %w", s.path, err)
	}
	return nil
}

// BlobSink uploads the CSV to object storage. The key template may contain
// {contract}, {from}, {to} and {run} placeholders.
type BlobSink struct {
	writer      domain.BlobWriter
	keyTemplate string
}

// NewBlobSink creates a BlobSink.
func NewBlobSink(writer domain.BlobWriter, keyTemplate string) *BlobSink {
	return &BlobSink{writer: writer, keyTemplate: keyTemplate}
}

// Name returns the sink identifier.
func (s *BlobSink) Name() string { return "s3" }

// Write uploads the CSV, using a multipart upload for large tables.
func (s *BlobSink) Write(ctx context.Context, exp Export) error {
	key := ExpandKey(s.keyTemplate, exp.Run)

	if len(exp.CSV) > multipartThreshold {
		if err := s.writer.PutMultipart(ctx, key, bytes.NewReader(exp.CSV), multipartThreshold); err != nil {
			return fmt.Errorf("uploading CSV to %s: %w", key, err)
		}
		return nil
	}

	if err := s.writer.Put(ctx, key, bytes.NewReader(exp.CSV), "text/csv"); err != nil {
		return fmt.Errorf("uploading CSV to %s: %w", key, err)
	}
	return nil
}

// ExpandKey substitutes run details into an object key template.
func ExpandKey(template string, run domain.SaleRun) string {
	r := strings.NewReplacer(
		"{contract}", strings.ToLower(run.ContractAddress),
		"{from}", strconv.FormatUint(run.FromBlock, 10),
		"{to}", strconv.FormatUint(run.ToBlock, 10),
		"{run}", run.ID,
	)
	return r.Replace(template)
}

// StoreSink inserts the records into a SaleStore tagged with the run ID.
type StoreSink struct {
	store domain.SaleStore
}

// NewStoreSink creates a StoreSink.
func NewStoreSink(store domain.SaleStore) *StoreSink {
	return &StoreSink{store: store}
}

// Name returns the sink identifier.
func (s *StoreSink) Name() string { return "postgres" }

// Write inserts every record.
func (s *StoreSink) Write(ctx context.Context, exp Export) error {
	if _, err := s.store.InsertBatch(ctx, exp.Run.ID, exp.Records); err != nil {
		return fmt.Errorf("inserting %d sales: %w", len(exp.Records), err)
	}
	return nil
}
