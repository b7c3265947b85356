// Package objectstore stores document payloads as path-addressed objects.
// Paths are scoped per user: "{userID}/{docID}.pdf".
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by Get when no object exists at the path.
	ErrNotFound = errors.New("object not found")
	// ErrAlreadyExists is returned by Put when Overwrite is false and an
	// object already exists at the path.
	ErrAlreadyExists = errors.New("object already exists")
	// ErrInvalidPath rejects empty paths or paths escaping their namespace.
	ErrInvalidPath = errors.New("invalid object path")
)

// StoreError wraps a transport or permission failure of the backend.
type StoreError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("objectstore %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// PutOptions controls a Put call.
type PutOptions struct {
	// Overwrite replaces an existing object. When false the write is a
	// create-only operation and fails with ErrAlreadyExists.
	Overwrite   bool
	ContentType string
}

// Store is the object store contract shared by all backends.
type Store interface {
	Put(ctx context.Context, path string, data []byte, opts PutOptions) error
	Get(ctx context.Context, path string) ([]byte, error)
	// Delete removes every path it can. Missing paths are not errors.
	Delete(ctx context.Context, paths []string) error
}

// ObjectPath returns the deterministic path of a document payload.
func ObjectPath(userID, docID string) string {
	return userID + "/" + docID + ".pdf"
}

// ValidatePath rejects paths a backend must never touch.
func ValidatePath(p string) error {
	if strings.TrimSpace(p) == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return ErrInvalidPath
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return ErrInvalidPath
		}
	}
	return nil
}
