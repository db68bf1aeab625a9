// Package openaichat provides a TextGenerator backed by the OpenAI chat
// completions API with JSON-schema structured output.
package openaichat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"promoreel/internal/domain"
	"promoreel/internal/generation"
	"promoreel/internal/infra"
)

const (
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 60 * time.Second
	schemaName     = "promoreel_response"
)

var openAIModelAliases = map[string]string{
	"gpt4o-mini":             "gpt-4o-mini",
	"gpt4omini":              "gpt-4o-mini",
	"gpt-4o-mini-2024-07-18": "gpt-4o-mini",
	"gpt4o":                  "gpt-4o",
	"gpt-4.1":                "gpt-4.1",
	"gpt4.1":                 "gpt-4.1",
	"gpt-4.1-mini":           "gpt-4.1-mini",
	"gpt4.1-mini":            "gpt-4.1-mini",
}

type Options struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
	OnWarning  func(reason, detail string)
}

type Client struct {
	client openai.Client
	model  string
	logger *infra.Logger
}

var _ generation.TextGenerator = (*Client)(nil)

func NewClient(opts Options) (*Client, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, fmt.Errorf("%w: openai api key", domain.ErrConfigurationMissing)
	}
	model, reason := normalizeModel(opts.Model)
	if reason != "" && opts.OnWarning != nil {
		opts.OnWarning("model_"+reason, fmt.Sprintf("requested=%s resolved=%s", opts.Model, model))
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(base+"/"))
	}
	return &Client{
		client: openai.NewClient(reqOpts...),
		model:  model,
		logger: infra.LoggerOrDiscard(opts.Logger),
	}, nil
}

// Model returns the resolved model identifier.
func (c *Client) Model() string { return c.model }

func (c *Client) GenerateText(ctx context.Context, req generation.TextRequest) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	}
	if req.Schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   schemaName,
					Schema: req.Schema.JSONSchema(true),
					Strict: openai.Bool(true),
				},
			},
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices returned")
	}
	choice := resp.Choices[0]
	if refusal := strings.TrimSpace(choice.Message.Refusal); refusal != "" {
		return "", fmt.Errorf("%w: %s", domain.ErrContentFiltered, refusal)
	}
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return "", errors.New("openai: empty response")
	}
	c.logger.Debug().Str("model", c.model).Int("chars", len(text)).Msg("openai: text generated")
	return text, nil
}

func classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return fmt.Errorf("openai: %w: %v", domain.ErrRateLimited, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("openai: %w: %v", domain.ErrConfigurationMissing, err)
		}
	}
	return fmt.Errorf("openai: %w", err)
}

func normalizeModel(name string) (string, string) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return defaultModel, ""
	}
	normalized := strings.ToLower(trimmed)
	normalized = strings.ReplaceAll(normalized, "_", "-")
	normalized = strings.ReplaceAll(normalized, " ", "-")
	if alias, ok := openAIModelAliases[normalized]; ok {
		if alias == normalized {
			return alias, ""
		}
		return alias, "alias"
	}
	return normalized, ""
}
