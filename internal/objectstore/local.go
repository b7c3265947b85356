package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Local is a Store on the local filesystem rooted at a directory. It is
// meant for single-node deployments and development.
type Local struct {
	root string
}

// NewLocal creates the root directory if needed.
func NewLocal(root string) (*Local, error) {
	if root == "" {
		return nil, errors.New("objectstore: local root must not be empty")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("objectstore: create root: %w", err)
	}
	return &Local{root: root}, nil
}

func (l *Local) file(p string) string {
	return filepath.Join(l.root, filepath.FromSlash(p))
}

// Put writes through a temp file. Create-only writes link the temp file
// into place, which fails atomically when the target exists.
func (l *Local) Put(ctx context.Context, path string, data []byte, opts PutOptions) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return &StoreError{Op: "put", Path: path, Err: err}
	}
	dst := l.file(path)
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return &StoreError{Op: "put", Path: path, Err: err}
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return &StoreError{Op: "put", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return &StoreError{Op: "put", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &StoreError{Op: "put", Path: path, Err: err}
	}

	if opts.Overwrite {
		if err := os.Rename(tmpName, dst); err != nil {
			return &StoreError{Op: "put", Path: path, Err: err}
		}
		return nil
	}
	if err := os.Link(tmpName, dst); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, path)
		}
		return &StoreError{Op: "put", Path: path, Err: err}
	}
	return nil
}

// Get reads the object at path.
func (l *Local) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &StoreError{Op: "get", Path: path, Err: err}
	}
	b, err := os.ReadFile(l.file(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, &StoreError{Op: "get", Path: path, Err: err}
	}
	return b, nil
}

// Delete removes each path, ignoring missing files.
func (l *Local) Delete(ctx context.Context, paths []string) error {
	var first error
	for _, p := range paths {
		if err := ValidatePath(p); err != nil {
			if first == nil {
				first = err
			}
			continue
		}
		if err := os.Remove(l.file(p)); err != nil && !errors.Is(err, fs.ErrNotExist) && first == nil {
			first = &StoreError{Op: "delete", Path: p, Err: err}
		}
	}
	return first
}
