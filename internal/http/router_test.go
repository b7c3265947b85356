package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/frandy73/Lumina/internal/auth"
	"github.com/frandy73/Lumina/internal/blob"
	"github.com/frandy73/Lumina/internal/config"
	"github.com/frandy73/Lumina/internal/domain"
	"github.com/frandy73/Lumina/internal/http/middleware"
	"github.com/frandy73/Lumina/internal/objectstore"
	"github.com/frandy73/Lumina/internal/repo"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:routerdb_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath:    "/api/v1",
		RateRPS:        100,
		RateBurst:      100,
		GenRPS:         100,
		GenBurst:       100,
		MaxUploadBytes: 1 << 20,
		IdempotencyTTL: time.Hour,
		CORS:           config.CORSConfig{AllowedOrigins: nil}, // triggers AllowAllOrigins branch
		Security:       config.SecurityConfig{EnableHSTS: false, HSTSMaxAge: 0},
		OTEL:           config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newTestRouter(t *testing.T, cfg config.Config, deps Deps) (*gin.Engine, Deps) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if deps.DB == nil {
		deps.DB = newTestDB(t)
	}
	if deps.Store == nil {
		deps.Store = objectstore.NewMemory()
	}
	r := gin.New()
	RegisterRoutes(r, deps, cfg)
	return r, deps
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func jsonReq(method, path, user string, body any) *http.Request {
	var rdr io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(middleware.HeaderUserID, user)
	}
	return req
}

func uploadBody(id string) domain.Document {
	data := []byte("%PDF-1.4\n%%EOF\n")
	return domain.Document{
		ID:         id,
		Name:       id + ".pdf",
		Size:       int64(len(data)),
		Type:       "application/pdf",
		UploadDate: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		Base64Data: blob.Encode(data, "application/pdf"),
	}
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(), Deps{})

	// /health works
	w := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || len(w.Body.Bytes()) == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/nope", nil)); w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	if w := serve(r, httptest.NewRequest(http.MethodPost, "/health", nil)); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}

	// Swagger disabled by default
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)); w.Code != http.StatusNotFound {
		t.Fatalf("swagger should be off, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := testConfig()
	cfg.CORS.AllowedOrigins = []string{"http://example.com"}
	r, _ := newTestRouter(t, cfg, Deps{})

	// Any request runs through CORS middleware; header should reflect origin.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	w := serve(r, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func TestRegisterRoutes_Swagger(t *testing.T) {
	cfg := testConfig()
	cfg.SwaggerEnabled = true
	r, _ := newTestRouter(t, cfg, Deps{})

	if w := serve(r, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil)); w.Code != http.StatusOK {
		t.Fatalf("GET /swagger/doc.json = %d", w.Code)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := serve(r, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB"))) // 12 bytes
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	root1 := groupWithPrefix(r, "/")
	root1.GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	root2 := groupWithPrefix(r, "")
	root2.GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })

	// non-root prefix
	api := groupWithPrefix(r, "/api")
	api.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := serve(r, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}

// Smoke test that a request traverses the otel + request id + security headers pipeline.
func TestPipeline_Smoke(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{EnableHSTS: true, HSTSMaxAge: time.Hour}
	r, _ := newTestRouter(t, cfg, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.URL.Scheme = "https"
	w := serve(r, req)

	if w.Code != http.StatusOK {
		t.Fatalf("pipeline GET /health = %d", w.Code)
	}
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	if cc := w.Header().Get("Cache-Control"); cc != "private, no-cache" {
		t.Fatalf("Cache-Control=%q", cc)
	}
}

func TestAPI_RequiresIdentity(t *testing.T) {
	r, _ := newTestRouter(t, testConfig(), Deps{})

	w := serve(r, jsonReq(http.MethodGet, "/api/v1/documents", "", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAPI_BearerAuth(t *testing.T) {
	secret := []byte("router-test-secret")
	v, err := auth.NewSecretVerifier(secret, "")
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	r, _ := newTestRouter(t, testConfig(), Deps{Verifier: v})

	// X-User-ID alone is ignored when a verifier is configured.
	if w := serve(r, jsonReq(http.MethodGet, "/api/v1/documents", "alice", nil)); w.Code != http.StatusUnauthorized {
		t.Fatalf("header identity accepted: %d", w.Code)
	}

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: auth.RoleAuthenticated,
	}).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req := jsonReq(http.MethodGet, "/api/v1/documents", "", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	if w := serve(r, req); w.Code != http.StatusOK {
		t.Fatalf("valid token: %d %s", w.Code, w.Body.String())
	}
}

func TestAPI_DocumentRoundTrip(t *testing.T) {
	r, deps := newTestRouter(t, testConfig(), Deps{})
	store := deps.Store.(*objectstore.Memory)

	w := serve(r, jsonReq(http.MethodPost, "/api/v1/documents", "alice", uploadBody("d1")))
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}

	w = serve(r, jsonReq(http.MethodGet, "/api/v1/documents", "alice", nil))
	if w.Code != http.StatusOK || w.Header().Get("ETag") == "" {
		t.Fatalf("list: %d etag=%q", w.Code, w.Header().Get("ETag"))
	}

	w = serve(r, jsonReq(http.MethodGet, "/api/v1/documents/d1/content", "alice", nil))
	if w.Code != http.StatusOK || !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("content: %d", w.Code)
	}

	w = serve(r, jsonReq(http.MethodDelete, "/api/v1/documents/d1", "alice", nil))
	if w.Code != http.StatusNoContent || store.Len() != 0 {
		t.Fatalf("delete: %d objects=%d", w.Code, store.Len())
	}
}

func TestAPI_IdempotentCreate_UsesRepo(t *testing.T) {
	r, deps := newTestRouter(t, testConfig(), Deps{})
	store := deps.Store.(*objectstore.Memory)

	body := uploadBody("")
	body.Name = "paper.pdf"
	send := func() *httptest.ResponseRecorder {
		req := jsonReq(http.MethodPost, "/api/v1/documents", "alice", body)
		req.Header.Set(middleware.HeaderIdempotencyKey, "create-1")
		return serve(r, req)
	}

	first := send()
	if first.Code != http.StatusCreated {
		t.Fatalf("first: %d %s", first.Code, first.Body.String())
	}
	second := send()
	if second.Code != http.StatusOK || second.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("replay: %d", second.Code)
	}

	var a, b domain.Document
	_ = json.Unmarshal(first.Body.Bytes(), &a)
	_ = json.Unmarshal(second.Body.Bytes(), &b)
	if a.ID == "" || a.ID != b.ID {
		t.Fatalf("ids differ: %q vs %q", a.ID, b.ID)
	}
	if store.Puts() != 1 {
		t.Fatalf("puts=%d", store.Puts())
	}

	var n int64
	deps.DB.Model(&domain.Idempotency{}).Count(&n)
	if n != 1 {
		t.Fatalf("idempotency rows=%d", n)
	}
}

func TestAPI_IdempotencyLookupError_DoesNotBlock(t *testing.T) {
	cfg := testConfig()
	db := newTestDB(t)
	r, _ := newTestRouter(t, cfg, Deps{DB: db})

	// Force queries to fail by closing the underlying connection.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	_ = sqlDB.Close()

	req := jsonReq(http.MethodGet, "/api/v1/stats", "alice", nil)
	req.Header.Set(middleware.HeaderIdempotencyKey, "force-error")
	w := serve(r, req)

	// The lookup failure is logged; the request proceeds and fails on its own.
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 from the stats query, got %d", w.Code)
	}
}

func TestAPI_StudyWithoutAI_And_GenerationLimit(t *testing.T) {
	cfg := testConfig()
	cfg.GenRPS = 0
	cfg.GenBurst = 1
	r, _ := newTestRouter(t, cfg, Deps{})

	if w := serve(r, jsonReq(http.MethodPost, "/api/v1/documents", "alice", uploadBody("d1"))); w.Code != http.StatusCreated {
		t.Fatalf("create: %d", w.Code)
	}

	w := serve(r, jsonReq(http.MethodPost, "/api/v1/documents/d1/study-guide", "alice", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("no AI: %d %s", w.Code, w.Body.String())
	}

	w = serve(r, jsonReq(http.MethodPost, "/api/v1/documents/d1/study-guide", "alice", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("generation limit: %d", w.Code)
	}

	// Bookkeeping routes are not generation-limited.
	if w := serve(r, jsonReq(http.MethodPut, "/api/v1/documents/d1/notes", "alice", map[string]string{"notes": "n"})); w.Code != http.StatusOK {
		t.Fatalf("notes: %d %s", w.Code, w.Body.String())
	}
}

func TestAPI_UploadTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUploadBytes = 64
	r, _ := newTestRouter(t, cfg, Deps{})

	big := uploadBody("big")
	big.Base64Data = blob.Encode(bytes.Repeat([]byte("x"), 1024), "application/pdf")
	w := serve(r, jsonReq(http.MethodPost, "/api/v1/documents", "alice", big))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d %s", w.Code, w.Body.String())
	}
}

func Test_repoShim_Proxies(t *testing.T) {
	db := newTestDB(t)
	shim := repoShim{}
	ctx := context.Background()

	path := "users/u1/pdfs/d1.pdf"
	rec := domain.DocumentRecord{ID: "d1", OwnerID: "u1", Name: "d1.pdf", Type: "application/pdf", FilePath: &path}
	if err := shim.UpsertDocument(ctx, db, &rec); err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}

	all, err := shim.ListDocuments(ctx, db, "u1")
	if err != nil || len(all) != 1 {
		t.Fatalf("ListDocuments: %v len=%d", err, len(all))
	}
	got, err := shim.GetDocument(ctx, db, "d1", "u1")
	if err != nil || got.Name != "d1.pdf" {
		t.Fatalf("GetDocument: %v %+v", err, got)
	}
	p, err := shim.GetObjectPath(ctx, db, "d1", "u1")
	if err != nil || p == nil || *p != path {
		t.Fatalf("GetObjectPath: %v %v", err, p)
	}
	n, ts, err := shim.DocumentsStats(ctx, db, "u1")
	if err != nil || n != 1 || ts == nil {
		t.Fatalf("DocumentsStats: %v n=%d ts=%v", err, n, ts)
	}
	if err := shim.DeleteDocument(ctx, db, "d1", "u1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if n, err := shim.DeleteAllForOwner(ctx, db, "u1"); err != nil || n != 0 {
		t.Fatalf("DeleteAllForOwner: %v n=%d", err, n)
	}

	if err := shim.IncrementStudyStats(ctx, db, "u1", repo.StudyDelta{FlashcardsGenerated: 3}); err != nil {
		t.Fatalf("IncrementStudyStats: %v", err)
	}
	st, err := shim.GetStudyStats(ctx, db, "u1")
	if err != nil || st.FlashcardsGenerated != 3 {
		t.Fatalf("GetStudyStats: %v %+v", err, st)
	}
}
