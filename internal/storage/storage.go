package storage

import (
	"context"
	"io"
	"time"
)

// Service stores and serves post assets in remote object storage.
type Service interface {
	UploadObject(ctx context.Context, bucket, key, contentType string, body io.Reader) error
	// DeleteObject removes one object; DeletePrefix removes everything
	// under a key namespace.
	DeleteObject(ctx context.Context, bucket, key string) error
	DeletePrefix(ctx context.Context, bucket, prefix string) error
	GetObjectURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
}
