// Package ai wraps the generative-AI backends that produce every study
// artifact. Providers are opaque: a request carries the document, an
// instruction and optionally a JSON schema, and the reply is text or JSON.
// Nothing here retries.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Supported providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderNone      = "none"
)

var (
	// ErrGeneration wraps every provider failure.
	ErrGeneration = errors.New("generation failed")
	// ErrDisabled is returned when no provider is configured.
	ErrDisabled = errors.New("ai provider not configured")
	// ErrUnsupportedDocument is returned for payloads a provider cannot read.
	ErrUnsupportedDocument = errors.New("unsupported document type")
)

// Request is one generation call.
type Request struct {
	// DataURI is the document as a base64 data URI. Empty means text only.
	DataURI     string
	Filename    string
	System      string
	Instruction string
}

// Schema describes the JSON shape expected from GenerateJSON.
type Schema struct {
	Name       string
	Definition map[string]any
}

// Generator is implemented by each provider.
type Generator interface {
	GenerateText(ctx context.Context, req Request) (string, error)
	GenerateJSON(ctx context.Context, req Request, schema Schema, out any) error
}

// Config selects and configures a provider.
type Config struct {
	Provider        string
	APIKey          string
	Model           string
	BaseURL         string
	MaxOutputTokens int64
	Timeout         time.Duration
}

// New builds the configured provider. A missing API key yields Disabled so
// the document endpoints keep working without AI credentials.
func New(cfg Config) (Generator, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == ProviderNone || strings.TrimSpace(cfg.APIKey) == "" {
		return Disabled{}, nil
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 4096
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("ai: model must be set")
	}
	switch provider {
	case ProviderOpenAI, "":
		return NewOpenAI(cfg), nil
	case ProviderAnthropic:
		return NewAnthropic(cfg), nil
	default:
		return nil, fmt.Errorf("ai: unsupported provider %q", cfg.Provider)
	}
}

// Disabled rejects every call with ErrDisabled.
type Disabled struct{}

func (Disabled) GenerateText(context.Context, Request) (string, error) {
	return "", fmt.Errorf("%w: %w", ErrGeneration, ErrDisabled)
}

func (Disabled) GenerateJSON(context.Context, Request, Schema, any) error {
	return fmt.Errorf("%w: %w", ErrGeneration, ErrDisabled)
}

// DecodeJSON unmarshals a model reply into out. Markdown code fences and
// text around the outermost JSON value are tolerated.
func DecodeJSON(text string, out any) error {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return fmt.Errorf("%w: reply contains no json", ErrGeneration)
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return fmt.Errorf("%w: unterminated json reply", ErrGeneration)
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), out); err != nil {
		return fmt.Errorf("%w: decode reply: %w", ErrGeneration, err)
	}
	return nil
}

func schemaJSON(s Schema) string {
	b, err := json.Marshal(s.Definition)
	if err != nil {
		return "{}"
	}
	return string(b)
}
