// Package offload moves oversized result payloads out of the function
// response and into object storage, returning a presigned pointer instead.
package offload

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/duckmesh/tablequery/internal/storage"
)

type Location struct {
	Bucket    string    `json:"bucket"`
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Offloader struct {
	store          storage.ObjectStore
	thresholdBytes int
	urlExpiry      time.Duration
	now            func() time.Time
}

func New(store storage.ObjectStore, thresholdBytes int, urlExpiry time.Duration) (*Offloader, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if thresholdBytes <= 0 {
		return nil, fmt.Errorf("threshold must be positive")
	}
	if urlExpiry <= 0 {
		return nil, fmt.Errorf("url expiry must be positive")
	}
	return &Offloader{store: store, thresholdBytes: thresholdBytes, urlExpiry: urlExpiry, now: time.Now}, nil
}

// ShouldOffload reports whether a payload of size bytes exceeds the inline
// limit. A nil Offloader never offloads.
func (o *Offloader) ShouldOffload(size int) bool {
	return o != nil && size > o.thresholdBytes
}

func (o *Offloader) Offload(ctx context.Context, requestID string, payload []byte) (Location, error) {
	now := o.now()
	key, err := storage.BuildResultPath(requestID, now)
	if err != nil {
		return Location{}, err
	}
	info, err := o.store.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)), storage.PutOptions{ContentType: "application/json"})
	if err != nil {
		return Location{}, fmt.Errorf("upload result: %w", err)
	}
	url, err := o.store.PresignGet(ctx, key, o.urlExpiry)
	if err != nil {
		return Location{}, fmt.Errorf("presign result: %w", err)
	}
	storedKey := info.Key
	if storedKey == "" {
		storedKey = key
	}
	return Location{
		Bucket:    o.store.Bucket(),
		Key:       storedKey,
		URL:       url,
		ExpiresAt: now.Add(o.urlExpiry).UTC(),
	}, nil
}
