package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RouteLabelsAndRejections(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/documents/:id", func(c *gin.Context) { c.String(http.StatusOK, "doc") })
	r.POST("/documents", func(c *gin.Context) {
		c.AbortWithStatus(http.StatusRequestEntityTooLarge)
	})
	r.GET("/stats", func(c *gin.Context) { c.AbortWithStatus(http.StatusUnauthorized) })

	baseDoc := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/documents/:id", "200"))
	base404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedRoute, "404"))
	baseLarge := testutil.ToFloat64(httpRejected.WithLabelValues("too_large"))
	baseAuth := testutil.ToFloat64(httpRejected.WithLabelValues("unauthenticated"))

	serve := func(req *http.Request) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if code := serve(httptest.NewRequest(http.MethodGet, "/documents/abc", nil)); code != http.StatusOK {
		t.Fatalf("GET doc -> %d", code)
	}
	if code := serve(httptest.NewRequest(http.MethodGet, "/documents/abc/nope", nil)); code != http.StatusNotFound {
		t.Fatalf("GET unmatched -> %d", code)
	}
	if code := serve(httptest.NewRequest(http.MethodPost, "/documents", strings.NewReader("%PDF-1.4"))); code != http.StatusRequestEntityTooLarge {
		t.Fatalf("POST -> %d", code)
	}
	if code := serve(httptest.NewRequest(http.MethodGet, "/stats", nil)); code != http.StatusUnauthorized {
		t.Fatalf("GET stats -> %d", code)
	}

	// document ids never become label values
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/documents/:id", "200")); got != baseDoc+1 {
		t.Fatalf("route counter = %v; want %v", got, baseDoc+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedRoute, "404")); got != base404+1 {
		t.Fatalf("unmatched counter = %v; want %v", got, base404+1)
	}
	if got := testutil.ToFloat64(httpRejected.WithLabelValues("too_large")); got != baseLarge+1 {
		t.Fatalf("too_large = %v; want %v", got, baseLarge+1)
	}
	if got := testutil.ToFloat64(httpRejected.WithLabelValues("unauthenticated")); got != baseAuth+1 {
		t.Fatalf("unauthenticated = %v; want %v", got, baseAuth+1)
	}
	if got := testutil.ToFloat64(httpInflight); got != 0 {
		t.Fatalf("inflight = %v; want 0", got)
	}
	if n := testutil.CollectAndCount(httpReqSize, "lumina_http_request_size_bytes"); n == 0 {
		t.Fatalf("expected request size series for the upload")
	}
}

func TestRejectReason(t *testing.T) {
	cases := map[int]string{
		http.StatusUnauthorized:          "unauthenticated",
		http.StatusRequestEntityTooLarge: "too_large",
		http.StatusTooManyRequests:       "rate_limited",
		http.StatusForbidden:             "",
		http.StatusOK:                    "",
	}
	for status, want := range cases {
		if got := rejectReason(status); got != want {
			t.Fatalf("rejectReason(%d)=%q, want %q", status, got, want)
		}
	}
}
