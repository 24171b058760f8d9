package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// SecondaryConfig configures the OpenAI-compatible chat completion provider.
type SecondaryConfig struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// SecondaryProvider calls an OpenAI-compatible chat completion endpoint with a
// bearer credential supplied by the user for the session.
type SecondaryProvider struct {
	baseURL string
	model   string
	timeout time.Duration
	http    *http.Client
}

// NewSecondaryProvider creates the secondary provider.
func NewSecondaryProvider(cfg SecondaryConfig) *SecondaryProvider {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &SecondaryProvider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		http:    client,
	}
}

func (p *SecondaryProvider) Name() string          { return "openai-compatible" }
func (p *SecondaryProvider) NeedsCredential() bool { return true }

// Complete sends {model, messages} with the session secret as bearer token.
func (p *SecondaryProvider) Complete(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Secret) == "" {
		return "", &ProviderError{Provider: p.Name(), Message: "no API key for this session", Err: ErrCredentialMissing}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(req.Secret),
		option.WithHTTPClient(p.http),
		option.WithMaxRetries(0),
	}
	if p.baseURL != "" {
		opts = append(opts, option.WithBaseURL(p.baseURL+"/"))
	}
	if p.timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(p.timeout))
	}
	client := openai.NewClient(opts...)

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(p.model),
		Messages:    messages,
		Temperature: openai.Float(0.4),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", classifyHTTPError(p.Name(), apiErr.StatusCode, apiErr.RawJSON())
		}
		return "", &ProviderError{Provider: p.Name(), Message: "request failed", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: p.Name(), Message: "no choices", Err: ErrEmptyResponse}
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", &ProviderError{Provider: p.Name(), Message: "empty content", Err: ErrEmptyResponse}
	}
	return text, nil
}
