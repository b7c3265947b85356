package ai

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	aoption "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/frandy73/Lumina/internal/blob"
)

// Anthropic calls the Messages API with the document as a base64 document
// block. There is no schema-constrained mode, so JSON replies are requested
// in the instruction and decoded with DecodeJSON.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic builds the provider. SDK retries are disabled.
func NewAnthropic(cfg Config) *Anthropic {
	opts := []aoption.RequestOption{
		aoption.WithAPIKey(cfg.APIKey),
		aoption.WithMaxRetries(0),
		aoption.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, aoption.WithBaseURL(cfg.BaseURL))
	}
	return &Anthropic{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxOutputTokens,
	}
}

func (p *Anthropic) params(req Request, instruction string) (anthropic.MessageNewParams, error) {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, 2)
	if req.DataURI != "" {
		mime, payload := blob.Split(req.DataURI)
		switch {
		case mime == "" || mime == "application/pdf":
			blocks = append(blocks, anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{Data: payload}))
		case strings.HasPrefix(mime, "text/"):
			raw, err := blob.Decode(payload)
			if err != nil {
				return anthropic.MessageNewParams{}, err
			}
			blocks = append(blocks, anthropic.NewDocumentBlock(anthropic.PlainTextSourceParam{Data: string(raw)}))
		default:
			return anthropic.MessageNewParams{}, fmt.Errorf("%w: %s", ErrUnsupportedDocument, mime)
		}
	}
	blocks = append(blocks, anthropic.NewTextBlock(instruction))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	}
	if s := strings.TrimSpace(req.System); s != "" {
		params.System = []anthropic.TextBlockParam{{Text: s}}
	}
	return params, nil
}

func (p *Anthropic) call(ctx context.Context, req Request, instruction string) (string, error) {
	params, err := p.params(req, instruction)
	if err != nil {
		return "", fmt.Errorf("%w: anthropic: %w", ErrGeneration, err)
	}
	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: anthropic: %w", ErrGeneration, err)
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(strings.TrimSpace(b.Text))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: anthropic: empty reply", ErrGeneration)
	}
	return sb.String(), nil
}

func (p *Anthropic) GenerateText(ctx context.Context, req Request) (string, error) {
	return p.call(ctx, req, req.Instruction)
}

func (p *Anthropic) GenerateJSON(ctx context.Context, req Request, schema Schema, out any) error {
	instruction := req.Instruction +
		"\n\nRespond with a single JSON value only, no prose and no code fences, matching this JSON Schema:\n" +
		schemaJSON(schema)
	text, err := p.call(ctx, req, instruction)
	if err != nil {
		return err
	}
	return DecodeJSON(text, out)
}
