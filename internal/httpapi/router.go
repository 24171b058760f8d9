// Package httpapi exposes the conversation engine over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"bot-crm/internal/ai"
	"bot-crm/internal/convo"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 64 << 10

// Conversations is the engine surface the API drives.
type Conversations interface {
	Handle(ctx context.Context, conversationID string, in convo.Input) convo.Response
	SupplyCredential(ctx context.Context, conversationID, secret string) convo.Response
	SetPreference(conversationID string, role ai.Role)
	End(conversationID string) bool
	Transcript(conversationID string) ([]convo.Message, bool)
}

// Check is one dependency pinged by /healthz.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// Config holds router settings.
type Config struct {
	RequestTimeout time.Duration
	Checks         []Check
	// Registry is served on /metrics when set.
	Registry *prometheus.Registry
}

type api struct {
	conv   Conversations
	checks []Check
	logger *slog.Logger
}

// NewRouter builds the HTTP handler.
func NewRouter(conv Conversations, cfg Config, logger *slog.Logger) http.Handler {
	a := &api{conv: conv, checks: cfg.Checks, logger: logger.With("component", "httpapi")}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(a.logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", a.health)
	if cfg.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/conversations/{conversationID}", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(timeout))
		r.Post("/messages", a.postMessage)
		r.Put("/credential", a.putCredential)
		r.Put("/preference", a.putPreference)
		r.Get("/transcript", a.getTranscript)
		r.Delete("/", a.deleteConversation)
	})
	return r
}

type messageRequest struct {
	Text   string `json:"text"`
	Action string `json:"action"`
}

func (a *api) postMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", err.Error())
		return
	}
	if req.Text == "" && req.Action == "" {
		writeError(w, http.StatusBadRequest, "text or action is required", "")
		return
	}
	id := chi.URLParam(r, "conversationID")
	resp := a.conv.Handle(r.Context(), id, convo.Input{Text: req.Text, Action: req.Action, Channel: "api"})
	writeJSON(w, http.StatusOK, resp)
}

type credentialRequest struct {
	Secret string `json:"secret"`
}

func (a *api) putCredential(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", err.Error())
		return
	}
	if req.Secret == "" {
		writeError(w, http.StatusBadRequest, "secret is required", "")
		return
	}
	resp := a.conv.SupplyCredential(r.Context(), chi.URLParam(r, "conversationID"), req.Secret)
	writeJSON(w, http.StatusOK, resp)
}

type preferenceRequest struct {
	Provider string `json:"provider"`
}

func (a *api) putPreference(w http.ResponseWriter, r *http.Request) {
	var req preferenceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", err.Error())
		return
	}
	role, err := ai.ParseRole(req.Provider)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid provider", err.Error())
		return
	}
	a.conv.SetPreference(chi.URLParam(r, "conversationID"), role)
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) getTranscript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	msgs, ok := a.conv.Transcript(id)
	if !ok {
		writeError(w, http.StatusNotFound, "conversation not found", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversationId": id,
		"messages":       msgs,
	})
}

func (a *api) deleteConversation(w http.ResponseWriter, r *http.Request) {
	if !a.conv.End(chi.URLParam(r, "conversationID")) {
		writeError(w, http.StatusNotFound, "conversation not found", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := map[string]string{}
	for _, c := range a.checks {
		if err := c.Ping(ctx); err != nil {
			a.logger.Warn("health check failed", "check", c.Name, "error", err)
			failed[c.Name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	resp := map[string]string{"error": message}
	if detail != "" {
		resp["detail"] = detail
	}
	writeJSON(w, status, resp)
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chimiddleware.GetReqID(r.Context()),
			)
		})
	}
}
