package gcs

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/stratalabs/strata-backend/internal/platform/logger"
)

// ObjectStore is the blob backend for file bytes. Keys are derived from
// dataset/file IDs; callers never supply raw object names.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, r io.Reader) (*UploadResult, error)
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Attrs(ctx context.Context, key string) (*ObjectAttrs, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}

// UploadResult reports the written object. Generation is the store's version
// token for the object and doubles as the file version id.
type UploadResult struct {
	Generation string
	Size       int64
}

type ObjectAttrs struct {
	Size        int64
	ContentType string
	Generation  string
	Updated     time.Time
	ETag        string
}

type StorageMode string

const (
	StorageModeGCS      StorageMode = "gcs"
	StorageModeEmulator StorageMode = "gcs-emulator"
)

type objectStore struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
	mode   StorageMode
}

func NewObjectStore(log *logger.Logger) (ObjectStore, error) {
	serviceLog := log.With("service", "ObjectStore")

	bucket := strings.TrimSpace(os.Getenv("DATA_GCS_BUCKET_NAME"))
	if bucket == "" {
		return nil, fmt.Errorf("missing env var DATA_GCS_BUCKET_NAME")
	}

	mode := StorageMode(strings.TrimSpace(strings.ToLower(os.Getenv("OBJECT_STORAGE_MODE"))))
	if mode == "" {
		if strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")) != "" {
			mode = StorageModeEmulator
		} else {
			mode = StorageModeGCS
		}
	}

	ctx := context.Background()
	client, err := newStorageClientForMode(ctx, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	serviceLog.Info("Object storage initialized",
		"mode", string(mode),
		"bucket", bucket,
		"emulator_host", os.Getenv("STORAGE_EMULATOR_HOST"),
	)

	return &objectStore{
		log:    serviceLog,
		client: client,
		bucket: bucket,
		mode:   mode,
	}, nil
}

func newStorageClientForMode(ctx context.Context, mode StorageMode) (*storage.Client, error) {
	switch mode {
	case StorageModeGCS:
		return storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
	case StorageModeEmulator:
		host := strings.TrimRight(strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")), "/")
		if host == "" {
			return nil, fmt.Errorf("OBJECT_STORAGE_MODE=%s requires STORAGE_EMULATOR_HOST", mode)
		}
		_ = os.Setenv("STORAGE_EMULATOR_HOST", host)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	default:
		return nil, fmt.Errorf("unknown OBJECT_STORAGE_MODE %q", mode)
	}
}

func (s *objectStore) Upload(ctx context.Context, key, contentType string, r io.Reader) (*UploadResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if ct := strings.TrimSpace(contentType); ct != "" {
		w.ContentType = ct
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to write object %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer for %q: %w", key, err)
	}

	attrs := w.Attrs()
	if attrs == nil {
		return nil, fmt.Errorf("no attrs returned for %q after upload", key)
	}
	return &UploadResult{
		Generation: strconv.FormatInt(attrs.Generation, 10),
		Size:       attrs.Size,
	}, nil
}

// Do NOT cancel the read context before returning the reader; callers would
// read 0 bytes. The cancel is attached to the reader's Close() instead.
type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	if r.cancel != nil {
		r.cancel()
	}
	return err
}

func (s *objectStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	ctx2, cancel := context.WithTimeout(ctx, 2*time.Minute)
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx2)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open reader for %q: %w", key, err)
	}
	return &readCloserWithCancel{ReadCloser: r, cancel: cancel}, nil
}

func (s *objectStore) Attrs(ctx context.Context, key string) (*ObjectAttrs, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	attrs, err := s.client.Bucket(s.bucket).Object(key).Attrs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attrs for %q: %w", key, err)
	}
	return &ObjectAttrs{
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		Generation:  strconv.FormatInt(attrs.Generation, 10),
		Updated:     attrs.Updated,
		ETag:        attrs.Etag,
	}, nil
}

func (s *objectStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.client.Bucket(s.bucket).Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete object %q in bucket %q: %w", key, s.bucket, err)
	}
	return nil
}

func (s *objectStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	out := []string{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, attrs.Name)
	}
	return out, nil
}

func (s *objectStore) DeletePrefix(ctx context.Context, prefix string) error {
	keys, err := s.ListKeys(ctx, prefix)
	if err != nil {
		return err
	}
	var firstErr error
	for _, k := range keys {
		if err := s.Delete(ctx, k); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
