// Package config provides application configuration loaded from environment
// variables with defaults and validation. Settings are grouped by concern:
// server, logging, row store, object store, generative AI, auth, cache, web
// protection and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// DBConfig selects the metadata row store.
type DBConfig struct {
	Driver string // DB_DRIVER: sqlite|postgres
	Path   string // DB_PATH (sqlite)
	URL    string // DATABASE_URL (postgres)
	Trace  bool   // DB_TRACE: gorm OpenTelemetry plugin
}

// StorageConfig selects the payload object store.
type StorageConfig struct {
	Backend         string        // OBJECT_STORE: gcs|local|memory
	Bucket          string        // GCS_BUCKET
	CredentialsFile string        // GCS_CREDENTIALS_FILE (optional; ADC otherwise)
	EmulatorHost    string        // STORAGE_EMULATOR_HOST
	LocalDir        string        // LOCAL_STORE_DIR
	Timeout         time.Duration // OBJECT_STORE_TIMEOUT per call
}

// AIConfig selects the generative-AI provider.
type AIConfig struct {
	Provider        string        // AI_PROVIDER: openai|anthropic|none
	APIKey          string        // AI_API_KEY
	Model           string        // AI_MODEL
	BaseURL         string        // AI_BASE_URL (optional)
	MaxOutputTokens int           // AI_MAX_OUTPUT_TOKENS
	Timeout         time.Duration // AI_TIMEOUT
}

// AuthConfig defines how bearer tokens are verified.
type AuthConfig struct {
	Mode      string // AUTH_MODE: jwks|secret|header
	JWKSURL   string // SUPABASE_JWKS_URL
	JWTSecret string // JWT_SECRET
	Audience  string // JWT_AUDIENCE (optional)
}

// CacheConfig selects the document list cache.
type CacheConfig struct {
	Backend       string        // CACHE_BACKEND: redis|memory|none
	RedisAddr     string        // REDIS_ADDR
	RedisPassword string        // REDIS_PASSWORD
	RedisDB       int           // REDIS_DB
	TTL           time.Duration // CACHE_TTL
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "lumina")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 150s; covers AI generation
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DB             DBConfig
	Storage        StorageConfig
	AI             AIConfig
	Auth           AuthConfig
	Cache          CacheConfig
	MaxUploadBytes int64 // request body cap for uploads and saves
	MaxPromptRunes int   // chat question cap

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)
	GenRPS    float64 // AI generation routes, per user
	GenBurst  int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 150*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DB: DBConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:   getenv("DB_PATH", "lumina.db"),
			URL:    getenv("DATABASE_URL", ""),
			Trace:  getbool("DB_TRACE", true),
		},
		Storage: StorageConfig{
			Backend:         strings.ToLower(getenv("OBJECT_STORE", "local")),
			Bucket:          getenv("GCS_BUCKET", ""),
			CredentialsFile: getenv("GCS_CREDENTIALS_FILE", ""),
			EmulatorHost:    getenv("STORAGE_EMULATOR_HOST", ""),
			LocalDir:        getenv("LOCAL_STORE_DIR", "data/objects"),
			Timeout:         getdur("OBJECT_STORE_TIMEOUT", 30*time.Second),
		},
		AI: AIConfig{
			Provider:        strings.ToLower(getenv("AI_PROVIDER", "none")),
			APIKey:          getenv("AI_API_KEY", ""),
			Model:           getenv("AI_MODEL", ""),
			BaseURL:         getenv("AI_BASE_URL", ""),
			MaxOutputTokens: getint("AI_MAX_OUTPUT_TOKENS", 4096),
			Timeout:         getdur("AI_TIMEOUT", 120*time.Second),
		},
		Auth: AuthConfig{
			Mode:      strings.ToLower(getenv("AUTH_MODE", "jwks")),
			JWKSURL:   getenv("SUPABASE_JWKS_URL", ""),
			JWTSecret: getenv("JWT_SECRET", ""),
			Audience:  getenv("JWT_AUDIENCE", ""),
		},
		Cache: CacheConfig{
			Backend:       strings.ToLower(getenv("CACHE_BACKEND", "memory")),
			RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getenv("REDIS_PASSWORD", ""),
			RedisDB:       getint("REDIS_DB", 0),
			TTL:           getdur("CACHE_TTL", 5*time.Minute),
		},
		MaxUploadBytes: int64(getint("MAX_UPLOAD_BYTES", 25<<20)),
		MaxPromptRunes: getint("MAX_PROMPT_RUNES", 4000),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),
		GenRPS:    getfloat("GEN_RATE_RPS", 0.2),
		GenBurst:  getint("GEN_RATE_BURST", 3),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "lumina"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DB.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DB.URL) == "" {
			return cfg, errors.New("DATABASE_URL must be set when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	switch cfg.Storage.Backend {
	case "gcs":
		if strings.TrimSpace(cfg.Storage.Bucket) == "" {
			return cfg, errors.New("GCS_BUCKET must be set when OBJECT_STORE=gcs")
		}
	case "local":
		if strings.TrimSpace(cfg.Storage.LocalDir) == "" {
			return cfg, errors.New("LOCAL_STORE_DIR must not be empty")
		}
	case "memory":
	default:
		return cfg, errors.New("OBJECT_STORE must be one of: gcs, local, memory")
	}
	if cfg.Storage.Timeout <= 0 {
		return cfg, errors.New("OBJECT_STORE_TIMEOUT must be > 0")
	}
	switch cfg.AI.Provider {
	case "none":
	case "openai", "anthropic":
		if strings.TrimSpace(cfg.AI.Model) == "" {
			return cfg, errors.New("AI_MODEL must be set when AI_PROVIDER is enabled")
		}
	default:
		return cfg, errors.New("AI_PROVIDER must be one of: openai, anthropic, none")
	}
	if cfg.AI.MaxOutputTokens <= 0 || cfg.AI.Timeout <= 0 {
		return cfg, errors.New("AI_MAX_OUTPUT_TOKENS and AI_TIMEOUT must be > 0")
	}
	switch cfg.Auth.Mode {
	case "jwks":
		if strings.TrimSpace(cfg.Auth.JWKSURL) == "" {
			return cfg, errors.New("SUPABASE_JWKS_URL must be set when AUTH_MODE=jwks")
		}
	case "secret":
		if len(cfg.Auth.JWTSecret) < 32 {
			return cfg, errors.New("JWT_SECRET must be at least 32 bytes when AUTH_MODE=secret")
		}
	case "header":
	default:
		return cfg, errors.New("AUTH_MODE must be one of: jwks, secret, header")
	}
	switch cfg.Cache.Backend {
	case "redis":
		if strings.TrimSpace(cfg.Cache.RedisAddr) == "" {
			return cfg, errors.New("REDIS_ADDR must be set when CACHE_BACKEND=redis")
		}
	case "memory", "none":
	default:
		return cfg, errors.New("CACHE_BACKEND must be one of: redis, memory, none")
	}
	if cfg.Cache.TTL <= 0 {
		return cfg, errors.New("CACHE_TTL must be > 0")
	}
	if cfg.MaxUploadBytes <= 0 {
		return cfg, errors.New("MAX_UPLOAD_BYTES must be > 0")
	}
	if cfg.MaxPromptRunes <= 0 {
		return cfg, errors.New("MAX_PROMPT_RUNES must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.GenRPS < 0 || cfg.GenBurst < 1 {
		return cfg, errors.New("GEN_RATE_RPS must be >= 0 and GEN_RATE_BURST >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
