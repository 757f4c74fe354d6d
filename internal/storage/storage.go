package storage

import (
	"context"
	"io"
	"time"
)

type ObjectInfo struct {
	Key  string
	Size int64
	ETag string
}

type PutOptions struct {
	ContentType string
}

type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	// PresignGet returns a time-limited URL for reading key without credentials.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	Bucket() string
}
