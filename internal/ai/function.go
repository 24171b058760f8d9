package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// FunctionConfig configures the managed backend function provider.
type FunctionConfig struct {
	URL        string
	ServiceKey string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// FunctionProvider calls a backend function that holds the model credential
// itself. The request body is {"prompt", "systemPrompt"}.
type FunctionProvider struct {
	url        string
	serviceKey string
	http       *http.Client
}

// NewFunctionProvider creates the primary provider backed by a managed function.
func NewFunctionProvider(cfg FunctionConfig) *FunctionProvider {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &FunctionProvider{
		url:        strings.TrimRight(cfg.URL, "/"),
		serviceKey: cfg.ServiceKey,
		http:       client,
	}
}

func (p *FunctionProvider) Name() string          { return "function" }
func (p *FunctionProvider) NeedsCredential() bool { return false }

type functionRequest struct {
	Prompt       string `json:"prompt"`
	SystemPrompt string `json:"systemPrompt,omitempty"`
}

// functionResponse accepts the reply under any of the field names the
// function has used.
type functionResponse struct {
	Text  string
	Error string
}

func (r *functionResponse) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Text = readString(raw, "text", "response", "reply", "content", "message", "generatedText")
	r.Error = readString(raw, "error", "errorMessage")
	return nil
}

// Complete sends the prompt to the function.
func (p *FunctionProvider) Complete(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(functionRequest{Prompt: req.Prompt, SystemPrompt: req.SystemPrompt})
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "bot-crm/function-client")
	if p.serviceKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.serviceKey)
		httpReq.Header.Set("apikey", p.serviceKey)
	}

	res, err := p.http.Do(httpReq)
	if err != nil {
		return "", &ProviderError{Provider: p.Name(), Message: "request failed", Err: err}
	}
	defer res.Body.Close()

	bodyBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return "", &ProviderError{Provider: p.Name(), StatusCode: res.StatusCode, Message: "read response", Err: err}
	}
	if res.StatusCode >= 400 {
		return "", classifyHTTPError(p.Name(), res.StatusCode, string(bodyBytes))
	}

	var out functionResponse
	if err := json.Unmarshal(bodyBytes, &out); err != nil {
		return "", &ProviderError{Provider: p.Name(), StatusCode: res.StatusCode, Message: "malformed response", Err: err}
	}
	if out.Error != "" {
		return "", &ProviderError{Provider: p.Name(), StatusCode: res.StatusCode, Message: out.Error}
	}
	text := strings.TrimSpace(out.Text)
	if text == "" {
		return "", &ProviderError{Provider: p.Name(), StatusCode: res.StatusCode, Message: "empty response", Err: ErrEmptyResponse}
	}
	return text, nil
}

func classifyHTTPError(provider string, status int, body string) error {
	snippet := strings.TrimSpace(body)
	if len(snippet) > 300 {
		snippet = snippet[:300]
	}
	lower := strings.ToLower(snippet)
	pe := &ProviderError{Provider: provider, StatusCode: status, Message: snippet}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden ||
		strings.Contains(lower, "invalid api key") ||
		strings.Contains(lower, "invalid credential") ||
		strings.Contains(lower, "incorrect api key"):
		pe.Err = ErrCredentialRejected
	case status == http.StatusTooManyRequests ||
		strings.Contains(lower, "quota") ||
		strings.Contains(lower, "rate limit"):
		pe.Err = ErrQuotaExceeded
	}
	if pe.Message == "" {
		pe.Message = http.StatusText(status)
	}
	return pe
}

func readString(raw map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || len(v) == 0 || string(v) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
			continue
		}
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(v, &nested); err == nil {
			if s := readString(nested, "message", "text", "content"); s != "" {
				return s
			}
		}
	}
	return ""
}
