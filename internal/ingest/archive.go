package ingest

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"selestial_backend/platform/config"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// PayloadArchive stores raw inbound payloads in object storage so dropped
// or mis-mapped webhooks can be replayed.
type PayloadArchive struct {
	client *minio.Client
	bucket string
}

// NewPayloadArchive creates the archive. Returns nil when object storage is
// not configured; ingestion treats a nil archive as disabled.
func NewPayloadArchive(ctx context.Context, cfg config.ArchiveConfig) (*PayloadArchive, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, nil
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	archive := &PayloadArchive{client: client, bucket: cfg.GetMinioBucketPayloadArchive()}
	if err := archive.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return archive, nil
}

func (a *PayloadArchive) ensureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", a.bucket, err)
		}
	}
	return nil
}

// Store writes one raw payload under provider/date/uuid.json.
func (a *PayloadArchive) Store(ctx context.Context, provider string, raw []byte) error {
	key := fmt.Sprintf("%s/%s/%s.json", provider, time.Now().UTC().Format("2006/01/02"), uuid.New())
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(raw), int64(len(raw)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("archive payload %s: %w", key, err)
	}
	return nil
}
