package convo

import (
	"fmt"

	"bot-crm/internal/ai"
	"bot-crm/internal/nlu"
)

// Pending is the unfinished work of a conversation. A nil Pending is Idle.
// Implementations are AwaitingClarification, AwaitingConfirmation and
// AwaitingCredential.
type Pending interface {
	pendingName() string
}

// AwaitingClarification holds a matched command that is missing slots.
type AwaitingClarification struct {
	Partial nlu.Command
	Missing []string
	// Resume is the quotation confirmation to return to once Partial completes.
	Resume *AwaitingConfirmation
}

func (AwaitingClarification) pendingName() string { return "awaiting_clarification" }

// ConfirmReason says why a quotation waits for the user.
type ConfirmReason string

const (
	ReasonGenerate        ConfirmReason = "generate"
	ReasonCustomerMissing ConfirmReason = "customer_missing"
)

// AwaitingConfirmation holds a complete quotation draft.
type AwaitingConfirmation struct {
	Draft      nlu.QuotationRequest
	CustomerID string
	Reason     ConfirmReason
}

func (AwaitingConfirmation) pendingName() string { return "awaiting_confirmation" }

// AwaitingCredential holds a question that needs a provider key before it
// can be answered.
type AwaitingCredential struct {
	Provider ai.Role
	Question string
}

func (AwaitingCredential) pendingName() string { return "awaiting_credential" }

// State is the per-conversation state.
type State struct {
	Pending Pending
}

// Name is the state label used in logs and metrics.
func (s State) Name() string {
	if s.Pending == nil {
		return "idle"
	}
	return s.Pending.pendingName()
}

// Event drives Transition.
type Event interface {
	eventName() string
}

// Clarify stores a partial command and asks for its missing fields.
type Clarify struct {
	Partial nlu.Command
	Resume  *AwaitingConfirmation
}

// Confirm stores a quotation draft awaiting the user's choice.
type Confirm struct {
	Confirmation AwaitingConfirmation
}

// AwaitCredential stores a question until a provider key arrives.
type AwaitCredential struct {
	Provider ai.Role
	Question string
}

// Complete finishes the pending flow.
type Complete struct{}

// Cancel abandons the pending flow.
type Cancel struct{}

func (Clarify) eventName() string         { return "clarify" }
func (Confirm) eventName() string         { return "confirm" }
func (AwaitCredential) eventName() string { return "await_credential" }
func (Complete) eventName() string        { return "complete" }
func (Cancel) eventName() string          { return "cancel" }

// Transition returns the state that follows ev. The input state is not
// modified; an error leaves the caller's state as it was.
func Transition(s State, ev Event) (State, error) {
	switch e := ev.(type) {
	case Clarify:
		if e.Partial == nil || e.Partial.IsValid() {
			return s, fmt.Errorf("%w: clarify needs an incomplete command", ErrInvalidTransition)
		}
		if _, ok := s.Pending.(AwaitingCredential); ok {
			return s, fmt.Errorf("%w: clarify from %s", ErrInvalidTransition, s.Name())
		}
		return State{Pending: AwaitingClarification{
			Partial: e.Partial,
			Missing: append([]string(nil), e.Partial.MissingFields()...),
			Resume:  e.Resume,
		}}, nil
	case Confirm:
		if !e.Confirmation.Draft.IsValid() {
			return s, fmt.Errorf("%w: confirm needs a complete quotation", ErrInvalidTransition)
		}
		switch e.Confirmation.Reason {
		case ReasonGenerate, ReasonCustomerMissing:
		default:
			return s, fmt.Errorf("%w: unknown confirm reason %q", ErrInvalidTransition, e.Confirmation.Reason)
		}
		if _, ok := s.Pending.(AwaitingCredential); ok {
			return s, fmt.Errorf("%w: confirm from %s", ErrInvalidTransition, s.Name())
		}
		return State{Pending: e.Confirmation}, nil
	case AwaitCredential:
		if e.Question == "" {
			return s, fmt.Errorf("%w: credential prompt without a question", ErrInvalidTransition)
		}
		return State{Pending: AwaitingCredential{Provider: e.Provider, Question: e.Question}}, nil
	case Complete, Cancel:
		return State{}, nil
	default:
		return s, fmt.Errorf("%w: unknown event %T", ErrInvalidTransition, ev)
	}
}
