package objectstore

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

func TestObjectPath(t *testing.T) {
	if got := ObjectPath("u1", "d1"); got != "u1/d1.pdf" {
		t.Fatalf("ObjectPath = %q", got)
	}
}

func TestValidatePath(t *testing.T) {
	for _, ok := range []string{"u1/d1.pdf", "a/b/c"} {
		if err := ValidatePath(ok); err != nil {
			t.Fatalf("ValidatePath(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", " ", "/abs", "u1/../x", "u1//x", `u1\x`, "./x"} {
		if err := ValidatePath(bad); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("ValidatePath(%q) = %v; want ErrInvalidPath", bad, err)
		}
	}
}

// exerciseStore runs the shared contract against any backend.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	data := []byte{0x25, 0x50, 0x44, 0x46, 0x00, 0xff}

	if _, err := s.Get(ctx, "u1/missing.pdf"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing = %v; want ErrNotFound", err)
	}

	if err := s.Put(ctx, "u1/d1.pdf", data, PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, "u1/d1.pdf")
	if err != nil || !bytes.Equal(got, data) {
		t.Fatalf("Get = %v, %v", got, err)
	}

	if err := s.Put(ctx, "u1/d1.pdf", []byte("other"), PutOptions{}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("create-only Put on existing = %v; want ErrAlreadyExists", err)
	}
	got, _ = s.Get(ctx, "u1/d1.pdf")
	if !bytes.Equal(got, data) {
		t.Fatalf("refused Put must not modify object")
	}

	if err := s.Put(ctx, "u1/d1.pdf", []byte("other"), PutOptions{Overwrite: true}); err != nil {
		t.Fatalf("overwrite Put: %v", err)
	}
	got, _ = s.Get(ctx, "u1/d1.pdf")
	if string(got) != "other" {
		t.Fatalf("overwrite did not replace object: %q", got)
	}

	if err := s.Delete(ctx, []string{"u1/d1.pdf", "u1/never-existed.pdf"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "u1/d1.pdf"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete = %v; want ErrNotFound", err)
	}

	if err := s.Put(ctx, "../escape", data, PutOptions{}); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("Put escape = %v; want ErrInvalidPath", err)
	}
}

func TestMemory_Contract(t *testing.T) {
	m := NewMemory()
	exerciseStore(t, m)
	if m.Puts() != 2 {
		t.Fatalf("Puts = %d; want 2", m.Puts())
	}
	if m.Len() != 0 {
		t.Fatalf("Len = %d; want 0", m.Len())
	}
}

func TestLocal_Contract(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	exerciseStore(t, l)
}

func TestLocal_EmptyRoot(t *testing.T) {
	if _, err := NewLocal(""); err == nil {
		t.Fatalf("expected error for empty root")
	}
}

func TestMapGCSError(t *testing.T) {
	if err := mapGCSError("get", "p", storage.ErrObjectNotExist); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ErrObjectNotExist -> %v", err)
	}
	if err := mapGCSError("put", "p", &googleapi.Error{Code: http.StatusPreconditionFailed}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("412 -> %v", err)
	}
	err := mapGCSError("put", "p", &googleapi.Error{Code: http.StatusForbidden})
	var se *StoreError
	if !errors.As(err, &se) || se.Op != "put" || se.Path != "p" {
		t.Fatalf("403 -> %v", err)
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("403 must not map to a domain error")
	}
}

func TestNewGCS_RequiresBucket(t *testing.T) {
	if _, err := NewGCS(context.Background(), GCSConfig{}); err == nil {
		t.Fatalf("expected error for empty bucket")
	}
}
