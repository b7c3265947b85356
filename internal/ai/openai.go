package ai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	ooption "github.com/openai/openai-go/option"
	oresponses "github.com/openai/openai-go/responses"
	oshared "github.com/openai/openai-go/shared"
)

// OpenAI calls the Responses API. The document travels as an input_file
// part carrying the data URI; JSON replies use strict json_schema output.
type OpenAI struct {
	client    openai.Client
	model     string
	maxTokens int64
}

// NewOpenAI builds the provider. SDK retries are disabled.
func NewOpenAI(cfg Config) *OpenAI {
	opts := []ooption.RequestOption{
		ooption.WithAPIKey(cfg.APIKey),
		ooption.WithMaxRetries(0),
		ooption.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, ooption.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxOutputTokens,
	}
}

func (p *OpenAI) params(req Request) oresponses.ResponseNewParams {
	content := make(oresponses.ResponseInputMessageContentListParam, 0, 2)
	if req.DataURI != "" {
		var fp oresponses.ResponseInputFileParam
		fp.FileData = openai.String(req.DataURI)
		name := req.Filename
		if name == "" {
			name = "document.pdf"
		}
		fp.Filename = openai.String(name)
		content = append(content, oresponses.ResponseInputContentUnionParam{OfInputFile: &fp})
	}
	content = append(content, oresponses.ResponseInputContentUnionParam{
		OfInputText: &oresponses.ResponseInputTextParam{Text: req.Instruction},
	})

	params := oresponses.ResponseNewParams{
		Model:           oshared.ResponsesModel(p.model),
		MaxOutputTokens: openai.Int(p.maxTokens),
		Input: oresponses.ResponseNewParamsInputUnion{
			OfInputItemList: oresponses.ResponseInputParam{
				oresponses.ResponseInputItemParamOfMessage(content, oresponses.EasyInputMessageRoleUser),
			},
		},
	}
	if s := strings.TrimSpace(req.System); s != "" {
		params.Instructions = openai.String(s)
	}
	return params
}

func (p *OpenAI) GenerateText(ctx context.Context, req Request) (string, error) {
	resp, err := p.client.Responses.New(ctx, p.params(req))
	if err != nil {
		return "", fmt.Errorf("%w: openai: %w", ErrGeneration, err)
	}
	text := extractOpenAIText(*resp)
	if text == "" {
		return "", fmt.Errorf("%w: openai: empty reply", ErrGeneration)
	}
	return text, nil
}

func (p *OpenAI) GenerateJSON(ctx context.Context, req Request, schema Schema, out any) error {
	params := p.params(req)
	params.Text = oresponses.ResponseTextConfigParam{
		Format: oresponses.ResponseFormatTextConfigUnionParam{
			OfJSONSchema: &oresponses.ResponseFormatTextJSONSchemaConfigParam{
				Name:   schema.Name,
				Schema: schema.Definition,
				Strict: openai.Bool(true),
			},
		},
	}
	resp, err := p.client.Responses.New(ctx, params)
	if err != nil {
		return fmt.Errorf("%w: openai: %w", ErrGeneration, err)
	}
	return DecodeJSON(extractOpenAIText(*resp), out)
}

func extractOpenAIText(resp oresponses.Response) string {
	var sb strings.Builder
	for _, item := range resp.Output {
		if strings.TrimSpace(item.Type) != "message" {
			continue
		}
		msg := item.AsMessage()
		for _, part := range msg.Content {
			if strings.TrimSpace(part.Type) != "output_text" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(strings.TrimSpace(part.Text))
		}
	}
	return sb.String()
}
