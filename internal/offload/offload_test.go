package offload

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/duckmesh/tablequery/internal/storage"
)

func TestShouldOffload(t *testing.T) {
	var disabled *Offloader
	if disabled.ShouldOffload(1 << 30) {
		t.Fatal("nil offloader must never offload")
	}
	o, err := New(&memoryStore{}, 10, time.Minute)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if o.ShouldOffload(10) {
		t.Fatal("payload at threshold must stay inline")
	}
	if !o.ShouldOffload(11) {
		t.Fatal("payload above threshold must be offloaded")
	}
}

func TestOffloadUploadsAndPresigns(t *testing.T) {
	store := &memoryStore{}
	o, err := New(store, 1, 5*time.Minute)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	fixed := time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return fixed }

	location, err := o.Offload(context.Background(), "req-1", []byte(`{"data":[]}`))
	if err != nil {
		t.Fatalf("Offload() error = %v", err)
	}
	if store.putKey != "results/date=2026-03-03/req-1.json" {
		t.Fatalf("put key = %q", store.putKey)
	}
	if string(store.putBody) != `{"data":[]}` {
		t.Fatalf("put body = %q", store.putBody)
	}
	if store.presignKey != store.putKey || store.presignExpiry != 5*time.Minute {
		t.Fatalf("presign = %q/%s", store.presignKey, store.presignExpiry)
	}
	if location.Bucket != "results-bucket" || location.URL != "https://signed/"+store.putKey {
		t.Fatalf("location = %#v", location)
	}
	if !location.ExpiresAt.Equal(fixed.Add(5 * time.Minute)) {
		t.Fatalf("ExpiresAt = %v", location.ExpiresAt)
	}
}

func TestOffloadPropagatesUploadErrors(t *testing.T) {
	o, err := New(&memoryStore{putErr: errors.New("denied")}, 1, time.Minute)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := o.Offload(context.Background(), "req-1", []byte("x")); err == nil {
		t.Fatal("expected upload error")
	}
}

func TestNewValidatesArguments(t *testing.T) {
	if _, err := New(nil, 1, time.Minute); err == nil {
		t.Fatal("expected store error")
	}
	if _, err := New(&memoryStore{}, 0, time.Minute); err == nil {
		t.Fatal("expected threshold error")
	}
	if _, err := New(&memoryStore{}, 1, 0); err == nil {
		t.Fatal("expected expiry error")
	}
}

type memoryStore struct {
	putKey        string
	putBody       []byte
	putErr        error
	presignKey    string
	presignExpiry time.Duration
}

func (m *memoryStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ storage.PutOptions) (storage.ObjectInfo, error) {
	if m.putErr != nil {
		return storage.ObjectInfo{}, m.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	m.putKey = key
	m.putBody = data
	return storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memoryStore) PresignGet(_ context.Context, key string, expiry time.Duration) (string, error) {
	m.presignKey = key
	m.presignExpiry = expiry
	return "https://signed/" + key, nil
}

func (m *memoryStore) Bucket() string {
	return "results-bucket"
}
