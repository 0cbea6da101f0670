// Package auditexport serializes a run's audit trail to
// newline-delimited JSON and ships it to object storage. Export is a
// read-only consumer of the audit log; it never mutates records.
package auditexport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/ventureos-labs/ventureos-go/internal/repo"
)

// exportListLimit bounds one export file. Runs produce at most a few
// hundred records; a cap this size means one object per export.
const exportListLimit = 10000

// ObjectPutter is the slice of the object-store client the exporter
// uses. *minio.Client satisfies it.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type Service struct {
	audit  repo.AuditRepository
	store  ObjectPutter
	bucket string
}

func NewService(audit repo.AuditRepository, store ObjectPutter, bucket string) *Service {
	if audit == nil || store == nil || strings.TrimSpace(bucket) == "" {
		return nil
	}
	return &Service{audit: audit, store: store, bucket: strings.TrimSpace(bucket)}
}

// ExportRun uploads the run's audit trail as one NDJSON object and
// returns the object key and record count.
func (s *Service) ExportRun(ctx context.Context, runID string) (string, int, error) {
	if s == nil || s.audit == nil {
		return "", 0, errors.New("audit export service not initialized")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return "", 0, errors.New("run id is required")
	}

	records, err := s.audit.ListByRun(ctx, runID, exportListLimit)
	if err != nil {
		return "", 0, fmt.Errorf("list audit records: %w", err)
	}

	var buf bytes.Buffer
	writer := NewNDJSONWriter(&buf)
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return "", 0, fmt.Errorf("encode audit record %d: %w", record.RecordID, err)
		}
	}

	key := fmt.Sprintf("runs/%s/audit-%s.ndjson", runID, time.Now().UTC().Format("20060102T150405Z"))
	_, err = s.store.PutObject(ctx, s.bucket, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), minio.PutObjectOptions{
		ContentType: "application/x-ndjson",
	})
	if err != nil {
		return "", 0, fmt.Errorf("upload audit export: %w", err)
	}
	return key, len(records), nil
}
