package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFunctionProviderSendsPromptAndReadsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer svc-key", r.Header.Get("Authorization"))
		var body functionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "what is AMC?", body.Prompt)
		assert.Equal(t, "be brief", body.SystemPrompt)
		_, _ = w.Write([]byte(`{"response":"Annual maintenance contract."}`))
	}))
	defer srv.Close()

	p := NewFunctionProvider(FunctionConfig{URL: srv.URL, ServiceKey: "svc-key", Timeout: time.Second})
	text, err := p.Complete(context.Background(), Request{Prompt: "what is AMC?", SystemPrompt: "be brief"})
	require.NoError(t, err)
	assert.Equal(t, "Annual maintenance contract.", text)
}

func TestFunctionProviderClassifiesErrors(t *testing.T) {
	status := http.StatusUnauthorized
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":"nope"}`))
	}))
	defer srv.Close()

	p := NewFunctionProvider(FunctionConfig{URL: srv.URL})
	_, err := p.Complete(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCredentialRejected)
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)

	status = http.StatusTooManyRequests
	_, err = p.Complete(context.Background(), Request{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestFunctionProviderRejectsEmptyAndMalformed(t *testing.T) {
	body := `{"text":"  "}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	p := NewFunctionProvider(FunctionConfig{URL: srv.URL})
	_, err := p.Complete(context.Background(), Request{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrEmptyResponse)

	body = `not json`
	_, err = p.Complete(context.Background(), Request{Prompt: "hi"})
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "malformed response", pe.Message)
}

func TestGeminiRotatesKeysAndCoolsDown(t *testing.T) {
	var (
		mu   sync.Mutex
		hits = map[string]int{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("x-goog-api-key")
		mu.Lock()
		hits[key]++
		mu.Unlock()
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/test-model:generateContent"))
		if key == "k1" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Hello "},{"text":"there"}]}}]}`))
	}))
	defer srv.Close()

	g := NewGeminiProvider(GeminiConfig{Keys: []string{"k1", "k2"}, Model: "test-model", BaseURL: srv.URL, Timeout: time.Second}, testLogger())
	for i := 0; i < 2; i++ {
		text, err := g.Complete(context.Background(), Request{Prompt: "hi", SystemPrompt: "sys"})
		require.NoError(t, err)
		assert.Equal(t, "Hello there", text)
	}
	assert.Equal(t, 1, hits["k1"])
	assert.Equal(t, 2, hits["k2"])
}

func TestGeminiAllKeysCoolingDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	g := NewGeminiProvider(GeminiConfig{Keys: []string{"k1"}, Model: "m", BaseURL: srv.URL}, testLogger())
	_, err := g.Complete(context.Background(), Request{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrCredentialRejected)

	_, err = g.Complete(context.Background(), Request{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrCredentialMissing)
}

func TestSecondaryProviderUsesSessionKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-session", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama-test", body["model"])
		msgs, _ := body["messages"].([]any)
		assert.Len(t, msgs, 2)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"llama-test",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Sure thing."}}]}`))
	}))
	defer srv.Close()

	p := NewSecondaryProvider(SecondaryConfig{BaseURL: srv.URL, Model: "llama-test", Timeout: 2 * time.Second})
	text, err := p.Complete(context.Background(), Request{Prompt: "hi", SystemPrompt: "sys", Secret: "sk-session"})
	require.NoError(t, err)
	assert.Equal(t, "Sure thing.", text)
}

func TestSecondaryProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid API Key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	p := NewSecondaryProvider(SecondaryConfig{BaseURL: srv.URL, Model: "m"})
	_, err := p.Complete(context.Background(), Request{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrCredentialMissing)

	_, err = p.Complete(context.Background(), Request{Prompt: "hi", Secret: "bad"})
	assert.ErrorIs(t, err, ErrCredentialRejected)
}

func TestCredentialNeverPrintsSecret(t *testing.T) {
	c := Credential{Provider: RoleSecondary, Secret: "sk-very-secret"}
	assert.NotContains(t, c.String(), "sk-very-secret")
	assert.NotContains(t, c.LogValue().String(), "sk-very-secret")
}
