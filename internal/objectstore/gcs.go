package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCSConfig configures the Google Cloud Storage backend.
type GCSConfig struct {
	Bucket          string
	CredentialsFile string // optional; ADC when empty
	EmulatorHost    string // optional; e.g. "http://localhost:4443"
	Timeout         time.Duration
}

// GCS is a Store backed by a single Cloud Storage bucket.
type GCS struct {
	client  *storage.Client
	bucket  string
	timeout time.Duration
}

// NewGCS creates the storage client. The emulator mode skips authentication.
func NewGCS(ctx context.Context, cfg GCSConfig) (*GCS, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("objectstore: gcs bucket must not be empty")
	}
	var opts []option.ClientOption
	if host := strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/"); host != "" {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", host)
		opts = append(opts, option.WithoutAuthentication())
	} else {
		if cfg.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		}
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("objectstore: create gcs client: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &GCS{client: client, bucket: cfg.Bucket, timeout: timeout}, nil
}

// Close releases the underlying client.
func (g *GCS) Close() error { return g.client.Close() }

// Put writes data. Without Overwrite the write carries a DoesNotExist
// precondition, so the create-only check happens inside the store.
func (g *GCS) Put(ctx context.Context, path string, data []byte, opts PutOptions) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	obj := g.client.Bucket(g.bucket).Object(path)
	if !opts.Overwrite {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}
	w := obj.NewWriter(ctx)
	w.ContentType = opts.ContentType
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return mapGCSError("put", path, err)
	}
	if err := w.Close(); err != nil {
		return mapGCSError("put", path, err)
	}
	return nil
}

// Get downloads the object at path.
func (g *GCS) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	r, err := g.client.Bucket(g.bucket).Object(path).NewReader(ctx)
	if err != nil {
		return nil, mapGCSError("get", path, err)
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, mapGCSError("get", path, err)
	}
	return b, nil
}

// Delete removes every path; objects that do not exist are skipped. The
// first transport error is returned after all paths were attempted.
func (g *GCS) Delete(ctx context.Context, paths []string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var first error
	for _, p := range paths {
		if err := ValidatePath(p); err != nil {
			if first == nil {
				first = err
			}
			continue
		}
		err := g.client.Bucket(g.bucket).Object(p).Delete(ctx)
		if err == nil || errors.Is(err, storage.ErrObjectNotExist) {
			continue
		}
		if first == nil {
			first = mapGCSError("delete", p, err)
		}
	}
	return first
}

func mapGCSError(op, path string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusPreconditionFailed:
			return fmt.Errorf("%w: %s", ErrAlreadyExists, path)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
	}
	return &StoreError{Op: op, Path: path, Err: err}
}
