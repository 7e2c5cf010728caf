package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/CZERTAINLY/fossrun/internal/model"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultRegion = "us-east-1"

// ObjectStoreUploader puts every result into an S3 compatible bucket.
type ObjectStoreUploader struct {
	client *minio.Client
	bucket string
}

func NewObjectStoreUploader(cfg model.ObjectStore) (*ObjectStoreUploader, error) {
	if err := validateObjectStore(cfg); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: model.Get(cfg.UseSSL, false),
		Region: model.Get(cfg.Region, defaultRegion),
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}
	return &ObjectStoreUploader{client: client, bucket: cfg.Bucket}, nil
}

func validateObjectStore(cfg model.ObjectStore) error {
	switch {
	case strings.TrimSpace(cfg.Endpoint) == "":
		return errors.New("endpoint is required")
	case strings.Contains(cfg.Endpoint, "://"):
		return fmt.Errorf("endpoint must not include scheme: %q", cfg.Endpoint)
	case strings.TrimSpace(cfg.AccessKey) == "":
		return errors.New("access key is required")
	case strings.TrimSpace(cfg.SecretKey) == "":
		return errors.New("secret key is required")
	case strings.TrimSpace(cfg.Bucket) == "":
		return errors.New("bucket is required")
	}
	return nil
}

func (u *ObjectStoreUploader) Upload(ctx context.Context, raw []byte) error {
	key := "fossrun/" + time.Now().UTC().Format("2006/01/02/150405") + "-" + uuid.NewString() + ".json"
	info, err := u.client.PutObject(ctx, u.bucket, key, bytes.NewReader(raw), int64(len(raw)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("putting object %s/%s: %w", u.bucket, key, err)
	}
	slog.InfoContext(ctx, "result stored", "bucket", u.bucket, "key", key, "etag", info.ETag)
	return nil
}
