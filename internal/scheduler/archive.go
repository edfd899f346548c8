package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/klauspost/compress/zstd"

	"tenantkit/internal/types"
)

// S3Putter is the subset of *s3.Client S3Archiver uses.
type S3Putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes audit batches to a bucket in the Glacier Instant
// Retrieval storage class.
type S3Archiver struct {
	client S3Putter
	bucket string
}

func NewS3Archiver(client S3Putter, bucket string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket}
}

// UploadArchive puts data at key.
func (a *S3Archiver) UploadArchive(ctx context.Context, key string, data []byte) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(a.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(data),
		ContentType:     aws.String("application/x-ndjson"),
		ContentEncoding: aws.String("zstd"),
		StorageClass:    s3types.StorageClassGlacierIr,
	})
	if err != nil {
		return fmt.Errorf("s3 put %s/%s: %w", a.bucket, key, err)
	}
	return nil
}

// encodeAuditBatch writes one JSON object per line and zstd-compresses the
// result.
func encodeAuditBatch(entries []*types.AuditLogEntry) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(zw)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			_ = zw.Close()
			return nil, fmt.Errorf("marshaling audit log %s: %w", e.ID, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
