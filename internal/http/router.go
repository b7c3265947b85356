// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, authentication, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/frandy73/Lumina/internal/ai"
	"github.com/frandy73/Lumina/internal/auth"
	"github.com/frandy73/Lumina/internal/cache"
	"github.com/frandy73/Lumina/internal/config"
	_ "github.com/frandy73/Lumina/internal/docs" // swagger spec
	"github.com/frandy73/Lumina/internal/domain"
	"github.com/frandy73/Lumina/internal/http/handlers"
	"github.com/frandy73/Lumina/internal/http/middleware"
	"github.com/frandy73/Lumina/internal/objectstore"
	"github.com/frandy73/Lumina/internal/repo"
	"github.com/frandy73/Lumina/internal/services"
)

// studyBodyLimit caps JSON bodies of the study endpoints.
const studyBodyLimit = 1 << 20

// Deps are the backends the API runs on.
type Deps struct {
	DB    *gorm.DB
	Store objectstore.Store
	// Cache may be nil (no list caching).
	Cache cache.DocumentCache
	// AI may be nil; study endpoints then answer 503.
	AI ai.Generator
	// Verifier checks bearer tokens. When nil, X-User-ID is trusted
	// (development only).
	Verifier auth.Verifier
}

// repoShim adapts the repository free functions to the services.DocumentRepo
// and services.StatsRepo interfaces. This keeps services decoupled from the
// concrete repo package while reusing existing functions.
type repoShim struct{}

// UpsertDocument proxies repo.UpsertDocument.
func (repoShim) UpsertDocument(ctx context.Context, db *gorm.DB, rec *domain.DocumentRecord) error {
	return repo.UpsertDocument(ctx, db, rec)
}

// ListDocuments proxies repo.ListDocuments.
func (repoShim) ListDocuments(ctx context.Context, db *gorm.DB, ownerID string) ([]domain.DocumentRecord, error) {
	return repo.ListDocuments(ctx, db, ownerID)
}

// GetDocument proxies repo.GetDocument.
func (repoShim) GetDocument(ctx context.Context, db *gorm.DB, id, ownerID string) (*domain.DocumentRecord, error) {
	return repo.GetDocument(ctx, db, id, ownerID)
}

// GetObjectPath proxies repo.GetObjectPath.
func (repoShim) GetObjectPath(ctx context.Context, db *gorm.DB, id, ownerID string) (*string, error) {
	return repo.GetObjectPath(ctx, db, id, ownerID)
}

// DeleteDocument proxies repo.DeleteDocument.
func (repoShim) DeleteDocument(ctx context.Context, db *gorm.DB, id, ownerID string) error {
	return repo.DeleteDocument(ctx, db, id, ownerID)
}

// DeleteAllForOwner proxies repo.DeleteAllForOwner.
func (repoShim) DeleteAllForOwner(ctx context.Context, db *gorm.DB, ownerID string) (int64, error) {
	return repo.DeleteAllForOwner(ctx, db, ownerID)
}

// DocumentsStats proxies repo.DocumentsStats (ETag support).
func (repoShim) DocumentsStats(ctx context.Context, db *gorm.DB, ownerID string) (int64, *time.Time, error) {
	return repo.DocumentsStats(ctx, db, ownerID)
}

// IncrementStudyStats proxies repo.IncrementStudyStats.
func (repoShim) IncrementStudyStats(ctx context.Context, db *gorm.DB, userID string, d repo.StudyDelta) error {
	return repo.IncrementStudyStats(ctx, db, userID, d)
}

// GetStudyStats proxies repo.GetStudyStats.
func (repoShim) GetStudyStats(ctx context.Context, db *gorm.DB, userID string) (*domain.StudyStats, error) {
	return repo.GetStudyStats(ctx, db, userID)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), CORS and security
// headers, health, metrics and docs endpoints, and then mounts the
// authenticated API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Metrics
//  6. CORS, security headers, gzip
//
// and on the API group:
//  7. Authentication (user id for everything below)
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per user/IP, bypass on replay)
//  10. Body size limit per route group
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.Logger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 6) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderUserID, middleware.HeaderIdempotencyKey}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", "Location", "Retry-After", "Idempotency-Replayed"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS).
	// Library data is per user: caches must revalidate.
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:    cfg.Security.EnableHSTS,
		HSTSMaxAge:    cfg.Security.HSTSMaxAge,
		CacheControl:  "private, no-cache",
		EnablePolicy:  true,
		ExposeHeaders: []string{"ETag"},
	}))

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/store/cache/ai
	library := services.NewDocumentSync(services.Session{}, deps.DB, repoShim{}, deps.Store, deps.Cache)
	study := services.NewStudyService(deps.DB, repoShim{}, deps.AI)
	if cfg.MaxPromptRunes > 0 {
		study.MaxPromptRunes = cfg.MaxPromptRunes
	}
	h := handlers.New(library, study, func(ctx context.Context, userID, scope, key, resourceID string, status int) error {
		_, err := repo.CreateIdempotency(ctx, deps.DB, userID, scope, key, resourceID, status, cfg.IdempotencyTTL)
		return err
	})

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath) // e.g. "/api/v1"

	// 7) Authentication
	if deps.Verifier != nil {
		api.Use(middleware.Authenticate(deps.Verifier))
	} else {
		api.Use(middleware.TrustUserHeader())
	}

	// 8) Idempotency validation (before rate limiting)
	api.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, userID, scope, key string, now time.Time) (string, bool, error) {
			rec, err := repo.GetIdempotency(ctx, deps.DB, userID, scope, key, now)
			if err != nil || rec == nil {
				return "", false, err
			}
			return rec.ResourceID, true, nil
		},
	))

	// 9) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter("api", cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	api.Use(rl.Handler())
	gen := middleware.NewRateLimiter("generation", cfg.GenRPS, cfg.GenBurst, middleware.KeyByUserOrIP()).Handler()

	// 10) Body limits: uploads and saves carry whole files, study calls do not.
	docs := api.Group("/documents", limitBody(cfg.MaxUploadBytes))
	{
		docs.GET("", h.ListDocuments)
		docs.POST("", h.CreateDocument)
		docs.DELETE("", h.ClearLibrary)
		docs.GET("/:id", h.GetDocument)
		docs.GET("/:id/content", h.GetDocumentContent)
		docs.PUT("/:id", h.SaveDocument)
		docs.DELETE("/:id", h.DeleteDocument)
	}

	doc := api.Group("/documents/:id", limitBody(studyBodyLimit))
	{
		// Generation
		doc.POST("/summary", gen, h.Summarize)
		doc.POST("/chat", gen, h.Chat)
		doc.POST("/insights", gen, h.Insights)
		doc.POST("/study-guide", gen, h.StudyGuide)
		doc.POST("/faq", gen, h.FAQ)
		doc.POST("/flashcards", gen, h.Flashcards)
		doc.POST("/quiz", gen, h.Quiz)

		// Bookkeeping
		doc.POST("/chat/:messageId/feedback", h.RateMessage)
		doc.PUT("/notes", h.UpdateNotes)
		doc.POST("/quiz/results", h.RecordQuizResult)
	}

	api.GET("/stats", h.Stats)
}

// limitBody returns a Gin middleware that caps the request body size to
// maxBytes using http.MaxBytesReader. Requests exceeding the cap will cause
// downstream body reads to error. maxBytes <= 0 disables the cap.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
