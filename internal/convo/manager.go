package convo

import (
	"log/slog"
	"time"

	"bot-crm/internal/metrics"
	"bot-crm/internal/nlu"
)

// Manager applies state transitions and resolves follow-up messages against
// a pending clarification.
type Manager struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewManager creates a state manager.
func NewManager(logger *slog.Logger, m *metrics.Metrics) *Manager {
	return &Manager{logger: logger.With("component", "state"), metrics: m}
}

// Apply moves st to the state that follows ev. On error st is unchanged.
func (m *Manager) Apply(conversationID string, st *State, ev Event) error {
	next, err := Transition(*st, ev)
	if err != nil {
		m.logger.Warn("transition rejected", "conversation", conversationID, "from", st.Name(), "event", ev.eventName(), "error", err)
		return err
	}
	if st.Pending == nil && next.Pending == nil {
		return nil
	}
	if m.metrics != nil {
		m.metrics.StateTransitions.WithLabelValues(st.Name(), next.Name()).Inc()
	}
	m.logger.Debug("state transition", "conversation", conversationID, "from", st.Name(), "to", next.Name(), "event", ev.eventName())
	*st = next
	return nil
}

// Continuation says how a message relates to a pending clarification.
type Continuation int

const (
	// Merged means the message filled slots of the pending command.
	Merged Continuation = iota
	// Superseded means the message is a different command.
	Superseded
	// Unrelated means the message neither filled a slot nor matched a command.
	Unrelated
)

// Continue resolves text against p. A command of the same kind is merged
// into the partial; a bare answer fills the first missing slots it can; any
// other matched command supersedes the flow.
func (m *Manager) Continue(p AwaitingClarification, res nlu.Result, text string, ref time.Time) (nlu.Command, Continuation) {
	if res.Matched && res.Command.Kind() == p.Partial.Kind() {
		return nlu.Merge(p.Partial, res.Command), Merged
	}
	if !res.Matched || res.Command.Kind() == nlu.KindPhoneLookup {
		if filled, ok := nlu.FillSlots(p.Partial, text, ref); ok {
			return filled, Merged
		}
	}
	if res.Matched {
		return res.Command, Superseded
	}
	return p.Partial, Unrelated
}
