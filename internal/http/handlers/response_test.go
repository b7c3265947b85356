package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/frandy73/Lumina/internal/http/middleware"
)

func Test_fail_ServerErrorIsLoggedWithUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-500")
		c.Set("logger", &logger)
		c.Next()
	})
	r.Use(middleware.TrustUserHeader())
	r.GET("/boom", func(c *gin.Context) {
		fail(c, http.StatusBadGateway, ErrCodeStorageFailed, "storage unavailable, try again")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set("X-User-ID", "alice")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status=%d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.RequestID != "rid-500" || resp.Code != ErrCodeStorageFailed {
		t.Fatalf("unexpected body: %+v", resp)
	}
	out := buf.String()
	if !strings.Contains(out, `"level":"error"`) || !strings.Contains(out, `"user_id":"alice"`) {
		t.Fatalf("expected error log with user, got: %s", out)
	}
}

func Test_fail_ClientErrorNotLogged(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	r.Use(func(c *gin.Context) {
		c.Set("logger", &logger)
		c.Next()
	})
	r.GET("/missing", func(c *gin.Context) {
		Fail(c, http.StatusNotFound, ErrCodeNotFound, "document not found")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
	if buf.Len() != 0 {
		t.Fatalf("4xx should not log, got: %s", buf.String())
	}
}

func Test_fail_PrefersContextRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID())
	r.GET("/x", func(c *gin.Context) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "bad")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "client-rid")
	r.ServeHTTP(w, req)

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.RequestID != "client-rid" {
		t.Fatalf("request_id=%q", resp.RequestID)
	}
}

func Test_created_SetsLocation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/v1/documents", func(c *gin.Context) {
		created(c, "doc-1", gin.H{"id": "doc-1"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/documents", nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d", w.Code)
	}
	if got := w.Header().Get("Location"); got != "/api/v1/documents/doc-1" {
		t.Fatalf("Location=%q", got)
	}
}

func Test_replayed_MarksResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/documents", func(c *gin.Context) { replayed(c, gin.H{"id": "doc-1"}) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/documents", nil))
	if w.Code != http.StatusOK || w.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("status=%d headers=%v", w.Code, w.Header())
	}
}

func Test_libraryETag(t *testing.T) {
	if got := libraryETag(0, nil); got != `W/"docs:0:0"` {
		t.Fatalf("empty library etag=%q", got)
	}
	ts := time.Unix(0, 42)
	if got := libraryETag(3, &ts); got != `W/"docs:3:42"` {
		t.Fatalf("etag=%q", got)
	}
}

func Test_notModified(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/documents", func(c *gin.Context) {
		if notModified(c, `W/"docs:1:5"`) {
			return
		}
		ok(c, http.StatusOK, gin.H{"total": 1})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents", nil))
	if w.Code != http.StatusOK || w.Header().Get("ETag") != `W/"docs:1:5"` {
		t.Fatalf("first: status=%d etag=%q", w.Code, w.Header().Get("ETag"))
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/documents", nil)
	req.Header.Set("If-None-Match", `W/"docs:1:5"`)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotModified || w.Body.Len() != 0 {
		t.Fatalf("second: status=%d body=%q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.DELETE("/gone", func(c *gin.Context) { noContent(c) })
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/gone", nil))
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Fatalf("noContent: status=%d", w.Code)
	}
}
