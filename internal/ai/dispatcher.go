package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"bot-crm/internal/metrics"
)

// DefaultSystemPrompt frames fallback answers for sales and service staff.
const DefaultSystemPrompt = "You are the assistant of a copier and printer sales and service business. " +
	"Answer staff questions briefly and practically. If a question is about customers, stock, tasks or " +
	"quotations, say which command they can type instead."

// Status is the outcome of Ask.
type Status string

const (
	StatusAnswered           Status = "answered"
	StatusFailed             Status = "failed"
	StatusCredentialRequired Status = "credential_required"
)

// Query is one fallback question.
type Query struct {
	Text string
	// Prefer selects the provider tried first. Empty means primary.
	Prefer Role
	// SecondaryKey is the session credential for the secondary provider.
	SecondaryKey string
}

// Reply is what the dispatcher hands back. It is always usable as a chat
// message.
type Reply struct {
	Status Status
	Text   string
	// Source is the role that produced an answered reply.
	Source Role
	// ProviderName is the concrete provider behind Source.
	ProviderName string
	// CredentialFor is set with StatusCredentialRequired.
	CredentialFor Role
	Attempts      []Attempt
}

// Attempt records one provider call.
type Attempt struct {
	Role Role
	Err  error
}

// DispatcherConfig configures the dispatcher.
type DispatcherConfig struct {
	SystemPrompt string
	Timeout      time.Duration
}

// Dispatcher sends unmatched messages to the primary provider and fails over
// to the secondary once. Ask never returns an error.
type Dispatcher struct {
	primary      Provider
	secondary    Provider
	systemPrompt string
	timeout      time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// NewDispatcher creates a dispatcher. Either provider may be nil.
func NewDispatcher(primary, secondary Provider, cfg DispatcherConfig, logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	return &Dispatcher{
		primary:      primary,
		secondary:    secondary,
		systemPrompt: prompt,
		timeout:      cfg.Timeout,
		logger:       logger.With("component", "ai"),
		metrics:      m,
	}
}

func (d *Dispatcher) provider(role Role) Provider {
	if role == RoleSecondary {
		return d.secondary
	}
	return d.primary
}

// usable reports whether role can be called with the query's credentials.
func (d *Dispatcher) usable(role Role, q Query) bool {
	p := d.provider(role)
	if p == nil {
		return false
	}
	return !p.NeedsCredential() || secretFor(role, q) != ""
}

func secretFor(role Role, q Query) string {
	if role == RoleSecondary {
		return q.SecondaryKey
	}
	return ""
}

// Ask answers q. The preferred provider goes first; on failure the other one
// is tried once when it is usable.
func (d *Dispatcher) Ask(ctx context.Context, q Query) Reply {
	first := q.Prefer
	if first != RoleSecondary {
		first = RolePrimary
	}
	order := []Role{first, first.Other()}

	var candidates []Role
	for _, r := range order {
		if d.usable(r, q) {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return d.credentialPrompt("No AI provider is set up for this conversation.")
	}

	var attempts []Attempt
	for _, role := range candidates {
		text, err := d.call(ctx, role, q)
		if err == nil {
			return Reply{
				Status:       StatusAnswered,
				Text:         text,
				Source:       role,
				ProviderName: d.provider(role).Name(),
				Attempts:     append(attempts, Attempt{Role: role}),
			}
		}
		attempts = append(attempts, Attempt{Role: role, Err: err})
		d.logger.Warn("ai provider failed", "role", role, "provider", d.provider(role).Name(), "error", err)
		if ctx.Err() != nil {
			break
		}
	}

	if len(attempts) >= 2 {
		return Reply{
			Status:   StatusFailed,
			Text:     fmt.Sprintf("Sorry, both AI attempts failed (%s: %s; %s: %s). Please try again later.", attempts[0].Role, describe(attempts[0].Err), attempts[1].Role, describe(attempts[1].Err)),
			Attempts: attempts,
		}
	}

	failed := attempts[0]
	other := failed.Role.Other()
	if d.provider(other) != nil && d.provider(other).NeedsCredential() && !d.usable(other, q) {
		reply := d.credentialPrompt(fmt.Sprintf("The %s AI provider failed (%s).", failed.Role, describe(failed.Err)))
		reply.Attempts = attempts
		return reply
	}
	return Reply{
		Status:   StatusFailed,
		Text:     fmt.Sprintf("Sorry, the AI assistant could not answer (%s: %s). Please try again later.", failed.Role, describe(failed.Err)),
		Attempts: attempts,
	}
}

func (d *Dispatcher) credentialPrompt(lead string) Reply {
	return Reply{
		Status:        StatusCredentialRequired,
		CredentialFor: RoleSecondary,
		Text:          lead + " Please send an API key for the secondary AI provider (it is kept only for this session), or type cancel.",
	}
}

func (d *Dispatcher) call(ctx context.Context, role Role, q Query) (string, error) {
	p := d.provider(role)
	callCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := p.Complete(callCtx, Request{
		Prompt:       q.Text,
		SystemPrompt: d.systemPrompt,
		Secret:       secretFor(role, q),
	})
	if d.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		d.metrics.AIRequests.WithLabelValues(p.Name(), status).Inc()
		d.metrics.AILatency.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())
	}
	return text, err
}

// describe turns a provider error into a short user-facing phrase.
func describe(err error) string {
	var pe *ProviderError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrCredentialMissing):
		return "no API key"
	case errors.Is(err, ErrCredentialRejected):
		return "API key rejected"
	case errors.Is(err, ErrQuotaExceeded):
		return "rate limited"
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	case errors.Is(err, ErrEmptyResponse):
		return "empty answer"
	case errors.As(err, &pe) && pe.StatusCode >= 500:
		return "service unavailable"
	case errors.As(err, &pe) && pe.StatusCode != 0:
		return fmt.Sprintf("error %d %s", pe.StatusCode, http.StatusText(pe.StatusCode))
	default:
		return "unreachable"
	}
}
