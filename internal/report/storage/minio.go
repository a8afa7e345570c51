// Package storage persists issued report artifacts in S3-compatible
// object storage.
package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"compliance_portal_backend/platform/config"
)

// MinIOStore uploads report PDFs. Keys are content addressed
// (laudos/<batch>/<hash>.pdf) so a re-upload of identical bytes lands on
// the same key and a tampered artifact never matches its recorded key.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

func NewMinIOStore(cfg config.MinIOConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &MinIOStore{client: client, bucket: cfg.GetMinioBucketReports()}, nil
}

// EnsureBucket creates the reports bucket if it does not exist.
func (s *MinIOStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// Upload stores one report PDF and returns its object key.
func (s *MinIOStore) Upload(ctx context.Context, batchID uuid.UUID, contentHash string, pdf []byte) (string, error) {
	key := ObjectKey(batchID, contentHash)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(pdf), int64(len(pdf)), minio.PutObjectOptions{
		ContentType: "application/pdf",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload report %s: %w", key, err)
	}
	return key, nil
}

// ObjectKey is the canonical storage key for a report artifact.
func ObjectKey(batchID uuid.UUID, contentHash string) string {
	return fmt.Sprintf("laudos/%s/%s.pdf", batchID, contentHash)
}
