// Command server runs the Lumina API.
//
// @title                      Lumina API
// @version                    1.0
// @description                Document library and study tools for PDFs: upload, sync, summaries, chat, insights, flashcards and quizzes.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
// @description                Supabase access token: "Bearer <jwt>"
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/frandy73/Lumina/internal/ai"
	"github.com/frandy73/Lumina/internal/auth"
	"github.com/frandy73/Lumina/internal/cache"
	"github.com/frandy73/Lumina/internal/config"
	"github.com/frandy73/Lumina/internal/docs"
	httpapi "github.com/frandy73/Lumina/internal/http"
	"github.com/frandy73/Lumina/internal/objectstore"
	"github.com/frandy73/Lumina/internal/observability"
	"github.com/frandy73/Lumina/internal/repo"
	"github.com/frandy73/Lumina/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	// A missing .env is fine; real deployments use the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log.Logger = sysutil.NewLogger(os.Stdout, cfg.LogPretty, cfg.OTEL.ServiceName)
	level := sysutil.SetLogLevel(cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	// Row store
	dsn := cfg.DB.Path
	if cfg.DB.Driver == repo.DriverPostgres {
		dsn = cfg.DB.URL
	}
	db, err := repo.Open(cfg.DB.Driver, dsn, cfg.DB.Trace)
	if err != nil {
		return err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	// Object store
	store, closeStore, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStore()

	// List cache
	docCache, closeCache, err := openCache(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	defer closeCache()

	// Generative AI
	gen, err := ai.New(ai.Config{
		Provider:        cfg.AI.Provider,
		APIKey:          cfg.AI.APIKey,
		Model:           cfg.AI.Model,
		BaseURL:         cfg.AI.BaseURL,
		MaxOutputTokens: int64(cfg.AI.MaxOutputTokens),
		Timeout:         cfg.AI.Timeout,
	})
	if err != nil {
		return fmt.Errorf("ai: %w", err)
	}
	if _, off := gen.(ai.Disabled); off {
		log.Warn().Msg("AI provider not configured; study endpoints answer 503")
	}

	// Auth
	verifier, err := openVerifier(ctx, cfg.Auth)
	if err != nil {
		return err
	}

	docs.SwaggerInfo.BasePath = cfg.APIBasePath
	docs.SwaggerInfo.Version = version

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:       db,
		Store:    store,
		Cache:    docCache,
		AI:       gen,
		Verifier: verifier,
	}, cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
		BaseContext:       func(net.Listener) context.Context { return log.Logger.WithContext(context.Background()) },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("db", cfg.DB.Driver).
			Str("store", cfg.Storage.Backend).
			Str("cache", cfg.Cache.Backend).
			Str("auth", cfg.Auth.Mode).
			Str("ai", cfg.AI.Provider).
			Str("log_level", level.String()).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

func openStore(ctx context.Context, cfg config.StorageConfig) (objectstore.Store, func(), error) {
	switch cfg.Backend {
	case "gcs":
		g, err := objectstore.NewGCS(ctx, objectstore.GCSConfig{
			Bucket:          cfg.Bucket,
			CredentialsFile: cfg.CredentialsFile,
			EmulatorHost:    cfg.EmulatorHost,
			Timeout:         cfg.Timeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("object store: %w", err)
		}
		return g, func() { _ = g.Close() }, nil
	case "memory":
		log.Warn().Msg("in-memory object store: payloads are lost on restart")
		return objectstore.NewMemory(), func() {}, nil
	default:
		l, err := objectstore.NewLocal(cfg.LocalDir)
		if err != nil {
			return nil, nil, fmt.Errorf("object store: %w", err)
		}
		return l, func() {}, nil
	}
}

func openCache(ctx context.Context, cfg config.CacheConfig) (cache.DocumentCache, func(), error) {
	switch cfg.Backend {
	case "redis":
		rc, err := cache.NewRedis(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.TTL,
			Prefix:   "lumina",
		})
		if err != nil {
			return nil, nil, fmt.Errorf("cache: %w", err)
		}
		return rc, func() { _ = rc.Close() }, nil
	case "none":
		return cache.Noop{}, func() {}, nil
	default:
		return cache.NewMemory(cfg.TTL), func() {}, nil
	}
}

// openVerifier returns nil in header mode: the router then trusts X-User-ID.
func openVerifier(ctx context.Context, cfg config.AuthConfig) (auth.Verifier, error) {
	switch cfg.Mode {
	case "header":
		log.Warn().Msg("AUTH_MODE=header: X-User-ID is trusted without verification")
		return nil, nil
	case "secret":
		v, err := auth.NewSecretVerifier([]byte(cfg.JWTSecret), cfg.Audience)
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		v, err := auth.NewJWKSVerifier(ctx, cfg.JWKSURL, cfg.Audience)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}
