package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const geminiAPIBase = "https://generativelanguage.googleapis.com/v1beta"

// GeminiConfig configures direct Gemini access with server-held keys.
type GeminiConfig struct {
	Keys       []string
	Model      string
	Timeout    time.Duration
	Cooldown   time.Duration
	BaseURL    string
	HTTPClient *http.Client
}

// GeminiProvider calls generateContent, rotating through its keys. A key that
// hits quota or is rejected sits out for the cooldown period.
type GeminiProvider struct {
	logger   *slog.Logger
	http     *http.Client
	baseURL  string
	model    string
	keys     []string
	cooldown time.Duration
	now      func() time.Time

	mu            sync.Mutex
	cooldownUntil map[int]time.Time
}

// NewGeminiProvider creates a Gemini provider.
func NewGeminiProvider(cfg GeminiConfig, logger *slog.Logger) *GeminiProvider {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = geminiAPIBase
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = time.Hour
	}
	return &GeminiProvider{
		logger:        logger.With("component", "gemini"),
		http:          client,
		baseURL:       base,
		model:         cfg.Model,
		keys:          cfg.Keys,
		cooldown:      cooldown,
		now:           time.Now,
		cooldownUntil: map[int]time.Time{},
	}
}

func (g *GeminiProvider) Name() string          { return "gemini" }
func (g *GeminiProvider) NeedsCredential() bool { return false }

// Complete tries each key not in cooldown until one answers.
func (g *GeminiProvider) Complete(ctx context.Context, req Request) (string, error) {
	payload := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     0.4,
			MaxOutputTokens: 1024,
		},
	}
	if req.SystemPrompt != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemPrompt}}}
	}

	var lastErr error
	for i, key := range g.keys {
		if g.coolingDown(i) {
			continue
		}
		text, err := g.invokeWithKey(ctx, key, payload)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if errors.Is(err, ErrQuotaExceeded) || errors.Is(err, ErrCredentialRejected) {
			g.startCooldown(i)
			g.logger.Warn("gemini key cooling down", "key_index", i, "error", err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = &ProviderError{Provider: g.Name(), Message: "no available gemini keys", Err: ErrCredentialMissing}
	}
	return "", lastErr
}

func (g *GeminiProvider) coolingDown(i int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	until, ok := g.cooldownUntil[i]
	return ok && g.now().Before(until)
}

func (g *GeminiProvider) startCooldown(i int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cooldownUntil[i] = g.now().Add(g.cooldown)
}

func (g *GeminiProvider) invokeWithKey(ctx context.Context, key string, payload geminiRequest) (string, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", key)

	resp, err := g.http.Do(req)
	if err != nil {
		return "", &ProviderError{Provider: g.Name(), Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ProviderError{Provider: g.Name(), StatusCode: resp.StatusCode, Message: "read response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", classifyHTTPError(g.Name(), resp.StatusCode, string(body))
	}
	text, err := extractCandidateText(body)
	if err != nil {
		return "", &ProviderError{Provider: g.Name(), StatusCode: resp.StatusCode, Message: err.Error(), Err: ErrEmptyResponse}
	}
	return strings.TrimSpace(text), nil
}

func extractCandidateText(body []byte) (string, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	for _, cand := range resp.Candidates {
		var sb strings.Builder
		for _, part := range cand.Content.Parts {
			sb.WriteString(part.Text)
		}
		if s := strings.TrimSpace(sb.String()); s != "" {
			return s, nil
		}
	}
	return "", fmt.Errorf("no candidate text found")
}

type geminiRequest struct {
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	Contents          []geminiContent  `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int32   `json:"maxOutputTokens,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Role  string       `json:"role"`
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}
