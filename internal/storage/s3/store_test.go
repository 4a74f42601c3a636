package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopqa/shopqa/internal/config"
	"github.com/shopqa/shopqa/internal/storage"
)

func TestPutJoinsPrefixAndKey(t *testing.T) {
	fake := &fakeBucket{}
	store := newWithAPI("shopqa", "/team-a/prod/", fake)

	_, err := store.Put(context.Background(), "/snapshots/latest/orders.parquet", bytes.NewBufferString("abc"), 3, storage.PutOptions{ContentType: "application/vnd.apache.parquet"})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if fake.lastKey != "team-a/prod/snapshots/latest/orders.parquet" {
		t.Fatalf("key = %q", fake.lastKey)
	}
	if fake.lastContentType != "application/vnd.apache.parquet" {
		t.Fatalf("content type = %q", fake.lastContentType)
	}
}

func TestObjectKeyValidation(t *testing.T) {
	store := newWithAPI("shopqa", "", &fakeBucket{})
	for _, key := range []string{"", "  ", "../secrets.txt", "a/../../b"} {
		if _, err := store.objectKey(key); err == nil {
			t.Fatalf("objectKey(%q) expected error", key)
		}
	}
	got, err := store.objectKey("a/./b.json")
	if err != nil || got != "a/b.json" {
		t.Fatalf("objectKey() = %q, %v", got, err)
	}
}

func TestGetMapsNotFound(t *testing.T) {
	store := newWithAPI("shopqa", "", &fakeBucket{getErr: storage.ErrObjectNotFound})
	if _, err := store.Get(context.Background(), "missing.json"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Get() error = %v, want ErrObjectNotFound", err)
	}
}

func TestEnsureBucketCreatesWhenMissing(t *testing.T) {
	fake := &fakeBucket{exists: false}
	store := newWithAPI("shopqa", "", fake)

	if err := store.ensureBucket(context.Background(), "us-east-1"); err != nil {
		t.Fatalf("ensureBucket() error = %v", err)
	}
	if fake.createdRegion != "us-east-1" {
		t.Fatalf("created region = %q", fake.createdRegion)
	}
}

func TestPingRequiresBucket(t *testing.T) {
	if err := newWithAPI("shopqa", "", &fakeBucket{exists: false}).Ping(context.Background()); err == nil {
		t.Fatal("expected missing bucket error")
	}
	if err := newWithAPI("shopqa", "", &fakeBucket{exists: true}).Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestDeleteIgnoresMissingObject(t *testing.T) {
	store := newWithAPI("shopqa", "", &fakeBucket{removeErr: storage.ErrObjectNotFound})
	if err := store.Delete(context.Background(), "outcomes/x.json"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
}

func TestOpenValidatesConfig(t *testing.T) {
	if _, err := Open(context.Background(), config.ObjectStoreConfig{Bucket: "shopqa"}); err == nil {
		t.Fatal("expected endpoint error")
	}
	if _, err := Open(context.Background(), config.ObjectStoreConfig{Endpoint: "localhost:9000"}); err == nil {
		t.Fatal("expected bucket error")
	}
}

func TestSplitEndpoint(t *testing.T) {
	tests := []struct {
		raw      string
		useSSL   bool
		host     string
		secure   bool
		hasError bool
	}{
		{raw: "https://minio.example.com", host: "minio.example.com", secure: true},
		{raw: "http://localhost:9000", host: "localhost:9000"},
		{raw: "http://localhost:9000", useSSL: true, host: "localhost:9000", secure: true},
		{raw: "localhost:9000", host: "localhost:9000"},
		{raw: "https://", hasError: true},
		{raw: "", hasError: true},
	}
	for _, tc := range tests {
		host, secure, err := splitEndpoint(tc.raw, tc.useSSL)
		if tc.hasError {
			if err == nil {
				t.Fatalf("splitEndpoint(%q) expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("splitEndpoint(%q) error = %v", tc.raw, err)
		}
		if host != tc.host || secure != tc.secure {
			t.Fatalf("splitEndpoint(%q) = %q/%v, want %q/%v", tc.raw, host, secure, tc.host, tc.secure)
		}
	}
}

type fakeBucket struct {
	lastKey         string
	lastContentType string
	exists          bool
	createdRegion   string
	getErr          error
	removeErr       error
}

func (f *fakeBucket) PutObject(_ context.Context, key string, reader io.Reader, size int64, contentType string) (storage.ObjectInfo, error) {
	f.lastKey = key
	f.lastContentType = contentType
	_, _ = io.Copy(io.Discard, reader)
	return storage.ObjectInfo{Key: key, Size: size, ETag: "etag-1"}, nil
}

func (f *fakeBucket) GetObject(_ context.Context, key string) (io.ReadCloser, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return io.NopCloser(strings.NewReader(key)), nil
}

func (f *fakeBucket) StatObject(_ context.Context, key string) (storage.ObjectInfo, error) {
	return storage.ObjectInfo{Key: key, Size: 10, LastModified: time.Now().UTC()}, nil
}

func (f *fakeBucket) RemoveObject(_ context.Context, _ string) error {
	return f.removeErr
}

func (f *fakeBucket) Exists(_ context.Context) (bool, error) {
	return f.exists, nil
}

func (f *fakeBucket) Create(_ context.Context, region string) error {
	f.createdRegion = region
	return nil
}
