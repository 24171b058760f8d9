// Package ai talks to the generative AI providers used when a chat message
// matches no structured command.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Role names a provider slot.
type Role string

const (
	RolePrimary   Role = "primary"
	RoleSecondary Role = "secondary"
)

// Other returns the opposite role.
func (r Role) Other() Role {
	if r == RoleSecondary {
		return RolePrimary
	}
	return RoleSecondary
}

// ParseRole accepts "primary" or "secondary".
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RolePrimary, RoleSecondary:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

var (
	// ErrCredentialMissing is returned when a provider needs a secret that is not set.
	ErrCredentialMissing = errors.New("provider credential missing")
	// ErrCredentialRejected is returned when the provider refuses the secret.
	ErrCredentialRejected = errors.New("provider credential rejected")
	// ErrQuotaExceeded is returned on rate limiting.
	ErrQuotaExceeded = errors.New("provider quota exceeded")
	// ErrEmptyResponse is returned when the provider answered without text.
	ErrEmptyResponse = errors.New("provider returned no text")
)

// Credential is a session-scoped provider secret. It is never persisted and
// never logged.
type Credential struct {
	Provider Role
	Secret   string
}

// String hides the secret.
func (c Credential) String() string {
	return fmt.Sprintf("Credential{%s, ****}", c.Provider)
}

// LogValue keeps slog from printing the secret.
func (c Credential) LogValue() slog.Value {
	return slog.StringValue(c.String())
}

// Request is one prompt sent to a provider.
type Request struct {
	Prompt       string
	SystemPrompt string
	// Secret is the caller-supplied credential for providers that need one.
	Secret string
}

// Provider completes a prompt.
type Provider interface {
	Name() string
	// NeedsCredential reports whether Complete requires Request.Secret.
	NeedsCredential() bool
	Complete(ctx context.Context, req Request) (string, error)
}

// ProviderError describes a failed provider call.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
