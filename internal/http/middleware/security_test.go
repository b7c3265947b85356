package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func serveSecurity(t *testing.T, opt SecurityOptions, pre gin.HandlerFunc, req *http.Request) http.Header {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if pre != nil {
		r.Use(pre)
	}
	r.Use(SecurityHeaders(opt))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	if req == nil {
		req = httptest.NewRequest(http.MethodGet, "/ok", nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header()
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	h := serveSecurity(t, SecurityOptions{}, nil, nil)

	if h.Get("X-Content-Type-Options") != "nosniff" ||
		h.Get("X-Frame-Options") != "DENY" ||
		h.Get("Referrer-Policy") != "no-referrer" ||
		h.Get("Cross-Origin-Resource-Policy") != "same-site" {
		t.Fatalf("baseline headers missing: %#v", h)
	}
	if h.Get("Permissions-Policy") != "" || h.Get("Cache-Control") != "" || h.Get("Strict-Transport-Security") != "" {
		t.Fatalf("unexpected optional headers: %#v", h)
	}
	if got := h.Get("Access-Control-Expose-Headers"); got != "X-Request-ID" {
		t.Fatalf("expose header = %q", got)
	}
}

func TestSecurityHeaders_ExposeHeaders(t *testing.T) {
	t.Run("appends to existing and adds extras", func(t *testing.T) {
		pre := func(c *gin.Context) {
			c.Header("Access-Control-Expose-Headers", "Foo")
			c.Next()
		}
		h := serveSecurity(t, SecurityOptions{ExposeHeaders: []string{"ETag"}}, pre, nil)
		if got := h.Get("Access-Control-Expose-Headers"); got != "Foo, X-Request-ID, ETag" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("does not duplicate", func(t *testing.T) {
		pre := func(c *gin.Context) {
			c.Header("Access-Control-Expose-Headers", "X-Request-ID, ETag")
			c.Next()
		}
		h := serveSecurity(t, SecurityOptions{ExposeHeaders: []string{"ETag"}}, pre, nil)
		if got := h.Get("Access-Control-Expose-Headers"); got != "X-Request-ID, ETag" {
			t.Fatalf("got %q", got)
		}
	})
}

func TestSecurityHeaders_CacheControl(t *testing.T) {
	h := serveSecurity(t, SecurityOptions{CacheControl: "private, no-cache"}, nil, nil)
	if h.Get("Cache-Control") != "private, no-cache" || h.Get("Pragma") != "" {
		t.Fatalf("unexpected cache headers: %#v", h)
	}

	// NoStore wins over CacheControl
	h = serveSecurity(t, SecurityOptions{NoStore: true, CacheControl: "private"}, nil, nil)
	if h.Get("Cache-Control") != "no-store" || h.Get("Pragma") != "no-cache" || h.Get("Expires") != "0" {
		t.Fatalf("unexpected no-store headers: %#v", h)
	}
}

func TestSecurityHeaders_PolicyAndHSTS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.TLS = &tls.ConnectionState{}
	h := serveSecurity(t, SecurityOptions{
		EnableHSTS:   true,
		HSTSMaxAge:   24 * time.Hour,
		EnablePolicy: true,
	}, nil, req)

	if h.Get("Permissions-Policy") == "" || h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("missing policy headers: %#v", h)
	}
	if want := "max-age=86400; includeSubDomains; preload"; h.Get("Strict-Transport-Security") != want {
		t.Fatalf("HSTS = %q; want %q", h.Get("Strict-Transport-Security"), want)
	}

	// default max age via proxy header
	req2 := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req2.Header.Set("X-Forwarded-Proto", "https")
	h = serveSecurity(t, SecurityOptions{EnableHSTS: true}, nil, req2)
	if got := h.Get("Strict-Transport-Security"); !strings.HasPrefix(got, "max-age=15552000") {
		t.Fatalf("expected default HSTS max-age, got %q", got)
	}

	// never over plain HTTP
	h = serveSecurity(t, SecurityOptions{EnableHSTS: true}, nil, nil)
	if h.Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS must not be sent over HTTP")
	}
}

func Test_isHTTPS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if isHTTPS(req) {
		t.Fatalf("plain HTTP should not be https")
	}
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.TLS = &tls.ConnectionState{}
	if !isHTTPS(req2) {
		t.Fatalf("TLS request should be https")
	}
	req3 := httptest.NewRequest(http.MethodGet, "/", nil)
	req3.Header.Set("X-Forwarded-Proto", "HTTPS")
	if !isHTTPS(req3) {
		t.Fatalf("X-Forwarded-Proto=https should be https")
	}
}
