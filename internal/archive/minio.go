package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config locates the object store and bucket webhook payloads go to
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinIOArchiver stores raw webhook payloads in an S3 compatible bucket
type MinIOArchiver struct {
	client *minio.Client
	bucket string
}

func NewMinIOArchiver(cfg Config) (*MinIOArchiver, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinIOArchiver{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet
func (m *MinIOArchiver) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", m.bucket, err)
	}
	return nil
}

// Archive uploads the payload unchanged under ObjectPath(id, receivedAt).
func (m *MinIOArchiver) Archive(ctx context.Context, id string, receivedAt time.Time, payload []byte) error {
	_, err := m.client.PutObject(ctx, m.bucket, ObjectPath(id, receivedAt), bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("upload to minio: %w", err)
	}
	return nil
}

// ObjectPath partitions objects by UTC day: year/month/day/id.json
func ObjectPath(id string, receivedAt time.Time) string {
	t := receivedAt.UTC()
	return fmt.Sprintf("%d/%02d/%02d/%s.json", t.Year(), t.Month(), t.Day(), path.Base("/"+id))
}
