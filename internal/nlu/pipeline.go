package nlu

import (
	"time"
)

// Matcher tries to recognise one command kind in text.
type Matcher interface {
	Name() string
	Match(text string, ref time.Time) (Command, bool)
}

// Result is the outcome of a pipeline run. Command is nil when Matched is false.
type Result struct {
	Matched bool
	Matcher string
	Command Command
}

// Clock returns the reference time for relative date phrases.
type Clock func() time.Time

// Pipeline runs matchers in order; the first hit wins.
type Pipeline struct {
	matchers []Matcher
	clock    Clock
}

// NewPipeline builds a pipeline with the default precedence: phone, customer,
// task, inventory, quotation.
func NewPipeline(clock Clock) *Pipeline {
	return NewPipelineWith(clock,
		PhoneMatcher{},
		CustomerMatcher{},
		TaskMatcher{},
		InventoryMatcher{},
		QuotationMatcher{},
	)
}

// NewPipelineWith builds a pipeline from explicit matchers.
func NewPipelineWith(clock Clock, matchers ...Matcher) *Pipeline {
	if clock == nil {
		clock = time.Now
	}
	return &Pipeline{matchers: matchers, clock: clock}
}

// Match returns the first matcher's command, or an unmatched result.
func (p *Pipeline) Match(text string) Result {
	return p.MatchAt(text, p.clock())
}

// MatchAt is Match with an explicit reference time.
func (p *Pipeline) MatchAt(text string, ref time.Time) Result {
	for _, m := range p.matchers {
		if cmd, ok := m.Match(text, ref); ok {
			return Result{Matched: true, Matcher: m.Name(), Command: cmd}
		}
	}
	return Result{}
}

// PhoneMatcher recognises a bare mobile number. Messages that explicitly ask
// to create a customer are left to CustomerMatcher.
type PhoneMatcher struct{}

func (PhoneMatcher) Name() string { return "phone" }

func (PhoneMatcher) Match(text string, _ time.Time) (Command, bool) {
	if hasCustomerDirective(text) {
		return nil, false
	}
	cmd, ok := ExtractPhone(text)
	if !ok {
		return nil, false
	}
	return cmd, true
}

// CustomerMatcher recognises customer-creation requests.
type CustomerMatcher struct{}

func (CustomerMatcher) Name() string { return "customer" }

func (CustomerMatcher) Match(text string, _ time.Time) (Command, bool) {
	cmd, ok := ExtractCustomer(text)
	if !ok {
		return nil, false
	}
	return cmd, true
}

// TaskMatcher recognises tasks and follow-ups.
type TaskMatcher struct{}

func (TaskMatcher) Name() string { return "task" }

func (TaskMatcher) Match(text string, ref time.Time) (Command, bool) {
	cmd, ok := ExtractTask(text, ref)
	if !ok {
		return nil, false
	}
	return cmd, true
}

// InventoryMatcher recognises stock queries.
type InventoryMatcher struct{}

func (InventoryMatcher) Name() string { return "inventory" }

func (InventoryMatcher) Match(text string, _ time.Time) (Command, bool) {
	cmd, ok := ExtractInventory(text)
	if !ok {
		return nil, false
	}
	return cmd, true
}

// QuotationMatcher recognises quotation requests.
type QuotationMatcher struct{}

func (QuotationMatcher) Name() string { return "quotation" }

func (QuotationMatcher) Match(text string, _ time.Time) (Command, bool) {
	cmd, ok := ExtractQuotation(text)
	if !ok {
		return nil, false
	}
	return cmd, true
}
