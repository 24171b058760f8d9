// Package convo orchestrates chat conversations: it matches commands, keeps
// per-conversation state, calls the stores and falls back to the AI assistant.
package convo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"bot-crm/internal/ai"
	"bot-crm/internal/metrics"
	"bot-crm/internal/nlu"
	"bot-crm/internal/quote"
	"bot-crm/internal/repo"
)

// Duplicate policies for customer creation.
const (
	DuplicateByPhone       = "phone"
	DuplicateByPhoneOrName = "phone_or_name"
)

// Config tunes the engine.
type Config struct {
	DuplicatePolicy string
	AIRateLimit     int
	AIRateWindow    time.Duration
	// Clock is the reference time for relative dates and message timestamps.
	Clock func() time.Time
}

// Deps are the engine's collaborators. Assistant, Log and Limiter may be nil.
type Deps struct {
	Customers CustomerDirectory
	Catalog   Catalog
	Tasks     TaskStore
	Quotes    QuotationGenerator
	Assistant Assistant
	Log       MessageLog
	Limiter   RateLimiter
}

// Input is one inbound chat event: either typed text or an action button.
type Input struct {
	Text    string
	Action  string
	Channel string
}

// Response carries the system messages produced for one input.
type Response struct {
	ConversationID string    `json:"conversationId"`
	Messages       []Message `json:"messages"`
	State          string    `json:"state"`
}

// Engine is the single entry point for every chat surface.
type Engine struct {
	pipeline *nlu.Pipeline
	manager  *Manager
	sessions *Sessions
	deps     Deps
	cfg      Config
	clock    func() time.Time
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a conversation engine.
func New(deps Deps, sessions *Sessions, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Engine {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	if cfg.DuplicatePolicy == "" {
		cfg.DuplicatePolicy = DuplicateByPhone
	}
	return &Engine{
		pipeline: nlu.NewPipeline(nlu.Clock(clock)),
		manager:  NewManager(logger, m),
		sessions: sessions,
		deps:     deps,
		cfg:      cfg,
		clock:    clock,
		metrics:  m,
		logger:   logger.With("component", "convo"),
	}
}

// Sessions exposes the session registry.
func (e *Engine) Sessions() *Sessions {
	return e.sessions
}

// Handle processes one input for a conversation. Inputs for the same
// conversation are handled one at a time.
func (e *Engine) Handle(ctx context.Context, conversationID string, in Input) Response {
	sess, release := e.sessions.Acquire(conversationID)
	defer release()

	text := strings.TrimSpace(in.Text)
	action := strings.TrimSpace(in.Action)
	channel := in.Channel
	if channel == "" {
		channel = "api"
	}
	msgType := "text"
	if action != "" {
		msgType = "action"
	}
	if text == "" && action == "" {
		return Response{ConversationID: conversationID, State: sess.State.Name()}
	}
	if e.metrics != nil {
		e.metrics.IncomingMessages.WithLabelValues(channel, msgType).Inc()
	}

	shown := text
	switch {
	case action != "":
		shown = actionLabel(action)
	case isCredentialMessage(sess, text):
		shown = "[API key hidden]"
	}
	sess.Append(newMessage(SenderUser, Text(shown), e.clock()))
	e.logMessage(ctx, sess.ID, "incoming", msgType, shown)
	start := len(sess.transcript)

	if err := e.route(ctx, sess, text, action); err != nil {
		e.logger.Error("message handling failed", "conversation", sess.ID, "state", sess.State.Name(), "error", err)
		if e.metrics != nil {
			e.metrics.Errors.WithLabelValues("convo").Inc()
		}
		e.reply(ctx, sess, Text(failureText(err)), "error")
	}
	return e.response(sess, start)
}

// SupplyCredential stores a secondary-provider key for the conversation and
// replays a question that was waiting for it.
func (e *Engine) SupplyCredential(ctx context.Context, conversationID, secret string) Response {
	sess, release := e.sessions.Acquire(conversationID)
	defer release()
	start := len(sess.transcript)
	if err := e.supplyCredential(ctx, sess, strings.TrimSpace(secret)); err != nil {
		e.logger.Error("credential replay failed", "conversation", sess.ID, "error", err)
		e.reply(ctx, sess, Text(failureText(err)), "error")
	}
	return e.response(sess, start)
}

// SetPreference selects the provider asked first.
func (e *Engine) SetPreference(conversationID string, role ai.Role) {
	sess, release := e.sessions.Acquire(conversationID)
	defer release()
	sess.Prefer = role
}

// End drops the conversation, its state and its credential.
func (e *Engine) End(conversationID string) bool {
	return e.sessions.End(conversationID)
}

// Transcript returns the messages of a live conversation.
func (e *Engine) Transcript(conversationID string) ([]Message, bool) {
	sess, release, ok := e.sessions.Peek(conversationID)
	if !ok {
		return nil, false
	}
	defer release()
	return sess.Transcript(), true
}

func (e *Engine) response(sess *Session, start int) Response {
	return Response{
		ConversationID: sess.ID,
		Messages:       append([]Message(nil), sess.transcript[start:]...),
		State:          sess.State.Name(),
	}
}

func (e *Engine) route(ctx context.Context, sess *Session, text, action string) error {
	if action != "" {
		return e.handleAction(ctx, sess, action)
	}
	if handled, err := e.sessionCommand(ctx, sess, text); handled {
		return err
	}

	switch p := sess.State.Pending.(type) {
	case AwaitingCredential:
		if looksLikeKey(text) {
			return e.supplyCredential(ctx, sess, text)
		}
		if err := e.apply(sess, Cancel{}); err != nil {
			return err
		}
	case AwaitingConfirmation:
		if id := confirmationChoice(p.Reason, text); id != "" {
			return e.handleAction(ctx, sess, id)
		}
	}

	ref := e.clock()
	res := e.pipeline.MatchAt(text, ref)
	if res.Matched && e.metrics != nil {
		e.metrics.MatcherHits.WithLabelValues(res.Matcher, strconv.FormatBool(res.Command.IsValid())).Inc()
	}

	switch p := sess.State.Pending.(type) {
	case AwaitingClarification:
		cmd, how := e.manager.Continue(p, res, text, ref)
		switch how {
		case Merged:
			return e.execute(ctx, sess, cmd, p.Resume)
		case Superseded:
			e.logger.Info("pending flow superseded", "conversation", sess.ID, "pending", p.Partial.Kind(), "new", cmd.Kind())
			if err := e.apply(sess, Cancel{}); err != nil {
				return err
			}
			return e.execute(ctx, sess, cmd, nil)
		default:
			e.reply(ctx, sess, Text("I still need more details. "+clarificationPrompt(p.Missing)+" Type cancel to drop this request."), "clarification_reprompt")
			return nil
		}
	case AwaitingConfirmation:
		if res.Matched {
			e.logger.Info("pending quotation superseded", "conversation", sess.ID, "new", res.Command.Kind())
			if err := e.apply(sess, Cancel{}); err != nil {
				return err
			}
			return e.execute(ctx, sess, res.Command, nil)
		}
		e.reply(ctx, sess, previewBlock(p), "confirmation_reprompt")
		return nil
	}

	if res.Matched {
		return e.execute(ctx, sess, res.Command, nil)
	}
	return e.fallback(ctx, sess, text)
}

func (e *Engine) execute(ctx context.Context, sess *Session, cmd nlu.Command, resume *AwaitingConfirmation) error {
	if !cmd.IsValid() {
		if err := e.apply(sess, Clarify{Partial: cmd, Resume: resume}); err != nil {
			return err
		}
		e.logger.Debug("command incomplete", "conversation", sess.ID, "kind", cmd.Kind(), "error", fmt.Errorf("%w: %v", ErrExtractionIncomplete, cmd.MissingFields()))
		e.reply(ctx, sess, Text(clarificationPrompt(cmd.MissingFields())), "clarification")
		return nil
	}

	switch c := cmd.(type) {
	case nlu.PhoneLookup:
		return e.handlePhoneLookup(ctx, sess, c)
	case nlu.CustomerCreate:
		return e.handleCustomerCreate(ctx, sess, c, resume)
	case nlu.TaskCreate:
		return e.handleTaskCreate(ctx, sess, c)
	case nlu.InventoryQuery:
		return e.handleInventoryQuery(ctx, sess, c)
	case nlu.QuotationRequest:
		return e.handleQuotationRequest(ctx, sess, c)
	default:
		return fmt.Errorf("unsupported command %T", cmd)
	}
}

func (e *Engine) handlePhoneLookup(ctx context.Context, sess *Session, cmd nlu.PhoneLookup) error {
	customer, err := e.deps.Customers.LookupByPhone(ctx, cmd.Phone)
	if err != nil {
		return lookupFailure("lookup customer", err)
	}
	if err := e.apply(sess, Complete{}); err != nil {
		return err
	}
	if customer == nil {
		e.reply(ctx, sess, Text("No customer found with this mobile number."), "customer_not_found")
		return nil
	}
	e.reply(ctx, sess, Block{View: CustomerCard{Customer: *customer}}, "customer_found")
	return nil
}

func (e *Engine) handleCustomerCreate(ctx context.Context, sess *Session, cmd nlu.CustomerCreate, resume *AwaitingConfirmation) error {
	customer, err := e.findDuplicate(ctx, cmd)
	if err != nil {
		return lookupFailure("check duplicate customer", err)
	}
	duplicate := customer != nil
	if !duplicate {
		created, err := e.deps.Customers.Create(ctx, repo.NewCustomer{
			Name:     cmd.Name,
			Phone:    cmd.Phone,
			Location: cmd.Location,
			Product:  cmd.Product,
		})
		switch {
		case errors.Is(err, repo.ErrDuplicate) && created != nil:
			customer, duplicate = created, true
		case err != nil:
			return lookupFailure("create customer", err)
		default:
			customer = created
			e.logger.Info("customer created", "conversation", sess.ID, "customer_id", customer.ID)
		}
	}
	category := "customer_created"
	if duplicate {
		category = "customer_duplicate"
		e.logger.Info("customer create skipped", "conversation", sess.ID, "customer_id", customer.ID, "reason", ErrDuplicateEntity)
	}
	card := Block{View: CustomerCard{Customer: *customer, Existing: duplicate, Created: !duplicate}}

	if resume != nil {
		conf := *resume
		conf.Draft.CustomerName = customer.Name
		conf.CustomerID = customer.ID
		conf.Reason = ReasonGenerate
		if err := e.apply(sess, Confirm{Confirmation: conf}); err != nil {
			return err
		}
		e.reply(ctx, sess, card, category)
		e.reply(ctx, sess, previewBlock(conf), "quotation_preview")
		return nil
	}

	if err := e.apply(sess, Complete{}); err != nil {
		return err
	}
	e.reply(ctx, sess, card, category)
	return nil
}

// findDuplicate applies the duplicate policy. Phone always counts; with
// phone_or_name an exact case-insensitive name match counts too.
func (e *Engine) findDuplicate(ctx context.Context, cmd nlu.CustomerCreate) (*repo.Customer, error) {
	existing, err := e.deps.Customers.LookupByPhone(ctx, cmd.Phone)
	if err != nil || existing != nil {
		return existing, err
	}
	if e.cfg.DuplicatePolicy != DuplicateByPhoneOrName {
		return nil, nil
	}
	return e.findCustomerByName(ctx, cmd.Name)
}

func (e *Engine) findCustomerByName(ctx context.Context, name string) (*repo.Customer, error) {
	matches, err := e.deps.Customers.SearchByName(ctx, name)
	if err != nil {
		return nil, err
	}
	for i := range matches {
		if strings.EqualFold(strings.TrimSpace(matches[i].Name), strings.TrimSpace(name)) {
			return &matches[i], nil
		}
	}
	return nil, nil
}

func (e *Engine) handleTaskCreate(ctx context.Context, sess *Session, cmd nlu.TaskCreate) error {
	title := cmd.Title
	if title == "" {
		title = "Task for " + cmd.Assignee
		if cmd.FollowUp {
			title = "Follow up with " + cmd.Assignee
		}
	}
	task, err := e.deps.Tasks.Create(ctx, repo.NewTask{
		Title:    title,
		Assignee: cmd.Assignee,
		DueDate:  *cmd.DueDate,
		FollowUp: cmd.FollowUp,
	})
	if err != nil {
		return lookupFailure("create task", err)
	}
	if err := e.apply(sess, Complete{}); err != nil {
		return err
	}
	e.reply(ctx, sess, Block{View: TaskCard{Task: *task}}, "task_created")
	return nil
}

func (e *Engine) handleInventoryQuery(ctx context.Context, sess *Session, cmd nlu.InventoryQuery) error {
	filter := cmd.Filter()
	items, err := e.deps.Catalog.Query(ctx, filter)
	if err != nil {
		return lookupFailure("query catalog", err)
	}
	cmd.MatchedItems = items

	view := InventoryView{
		Brand:    cmd.Brand,
		Model:    cmd.Model,
		ItemType: cmd.ItemType,
		Rows:     stockRows(cmd.MatchedItems),
	}
	category := "inventory"
	if len(items) == 0 {
		category = "inventory_not_found"
		view.NotFound = true
		var candidates []repo.Item
		for _, f := range relaxedFilters(filter) {
			more, err := e.deps.Catalog.Query(ctx, f)
			if err != nil {
				e.logger.Warn("suggestion query failed", "filter", f, "error", err)
				continue
			}
			candidates = append(candidates, more...)
		}
		view.Suggestions = stockRows(rankSuggestions(candidates, filter))
	}
	if err := e.apply(sess, Complete{}); err != nil {
		return err
	}
	e.reply(ctx, sess, Block{View: view}, category)
	return nil
}

func (e *Engine) handleQuotationRequest(ctx context.Context, sess *Session, cmd nlu.QuotationRequest) error {
	customer, err := e.findCustomerByName(ctx, cmd.CustomerName)
	if err != nil {
		return lookupFailure("check quotation customer", err)
	}
	conf := AwaitingConfirmation{Draft: cmd, Reason: ReasonCustomerMissing}
	if customer != nil {
		conf.Reason = ReasonGenerate
		conf.CustomerID = customer.ID
		conf.Draft.CustomerName = customer.Name
	}
	if err := e.apply(sess, Confirm{Confirmation: conf}); err != nil {
		return err
	}
	e.reply(ctx, sess, previewBlock(conf), "quotation_preview")
	return nil
}

func (e *Engine) handleAction(ctx context.Context, sess *Session, id string) error {
	p, ok := sess.State.Pending.(AwaitingConfirmation)
	if !ok {
		e.reply(ctx, sess, Text("There is nothing waiting for confirmation."), "action_ignored")
		return nil
	}
	if !actionOffered(p.Reason, id) {
		e.reply(ctx, sess, Text("That option is not available for this quotation."), "action_ignored")
		return nil
	}

	switch id {
	case ActionCancel:
		if err := e.apply(sess, Cancel{}); err != nil {
			return err
		}
		e.reply(ctx, sess, Text("Quotation cancelled."), "quotation_cancelled")
		return nil
	case ActionAddCustomerFirst:
		partial := nlu.CustomerCreate{Name: p.Draft.CustomerName}.Validate()
		resume := p
		if err := e.apply(sess, Clarify{Partial: partial, Resume: &resume}); err != nil {
			return err
		}
		e.reply(ctx, sess, Text(fmt.Sprintf("Let's add %s first. %s", p.Draft.CustomerName, clarificationPrompt(partial.Missing))), "clarification")
		return nil
	default:
		res, err := e.deps.Quotes.Generate(ctx, quote.Draft{
			CustomerID:   p.CustomerID,
			CustomerName: p.Draft.CustomerName,
			Models:       p.Draft.Models,
		})
		if err != nil {
			return lookupFailure("generate quotation", err)
		}
		if err := e.apply(sess, Complete{}); err != nil {
			return err
		}
		e.reply(ctx, sess, Block{View: QuotationDocumentView{Document: res.Document, Record: *res.Record}}, "quotation")
		return nil
	}
}

func (e *Engine) sessionCommand(ctx context.Context, sess *Session, text string) (bool, error) {
	lower := strings.ToLower(strings.TrimSpace(text))
	switch lower {
	case "cancel", "reset", "stop":
		if sess.State.Pending == nil {
			e.reply(ctx, sess, Text("Nothing to cancel."), "cancel")
			return true, nil
		}
		if err := e.apply(sess, Cancel{}); err != nil {
			return true, err
		}
		e.reply(ctx, sess, Text("Cancelled."), "cancel")
		return true, nil
	case "use secondary", "switch to secondary", "use primary", "switch to primary":
		role := ai.RolePrimary
		if strings.HasSuffix(lower, "secondary") {
			role = ai.RoleSecondary
		}
		sess.Prefer = role
		e.reply(ctx, sess, Text(fmt.Sprintf("AI questions will go to the %s provider first.", role)), "preference")
		return true, nil
	}
	if lower == "/key" || strings.HasPrefix(lower, "/key ") {
		return true, e.supplyCredential(ctx, sess, strings.TrimSpace(text[len("/key"):]))
	}
	return false, nil
}

func (e *Engine) supplyCredential(ctx context.Context, sess *Session, secret string) error {
	if secret == "" {
		e.reply(ctx, sess, Text("Please send the key after /key."), "credential_missing")
		return nil
	}
	role := ai.RoleSecondary
	p, waiting := sess.State.Pending.(AwaitingCredential)
	if waiting && p.Provider != "" {
		role = p.Provider
	}
	cred := ai.Credential{Provider: role, Secret: secret}
	sess.SetCredential(cred)
	e.logger.Info("session credential stored", "conversation", sess.ID, "credential", cred)

	if !waiting {
		e.reply(ctx, sess, Text("Key saved for this session."), "credential_saved")
		return nil
	}
	if err := e.apply(sess, Complete{}); err != nil {
		return err
	}
	e.reply(ctx, sess, Text("Key saved for this session. Retrying your question."), "credential_saved")
	return e.askAssistant(ctx, sess, p.Question)
}

func (e *Engine) fallback(ctx context.Context, sess *Session, text string) error {
	if reply := templateReply(nlu.Classify(text)); reply != "" {
		e.reply(ctx, sess, Text(reply), "template")
		return nil
	}
	return e.askAssistant(ctx, sess, text)
}

func (e *Engine) askAssistant(ctx context.Context, sess *Session, question string) error {
	if e.deps.Assistant == nil {
		e.reply(ctx, sess, Text("Sorry, I didn't understand that. Type help to see what I can do."), "fallback")
		return nil
	}
	if !e.allowAIRequest(ctx, sess.ID) {
		e.reply(ctx, sess, Text("You've asked the assistant a lot in a short time. Please try again in a few minutes."), "ai_rate_limited")
		return nil
	}

	r := e.deps.Assistant.Ask(ctx, ai.Query{
		Text:         question,
		Prefer:       sess.Prefer,
		SecondaryKey: sess.Credential(ai.RoleSecondary),
	})
	for _, a := range r.Attempts {
		if a.Role == ai.RoleSecondary && errors.Is(a.Err, ai.ErrCredentialRejected) {
			sess.ClearCredential()
		}
	}

	switch r.Status {
	case ai.StatusAnswered:
		msg := newMessage(SenderSystem, Text(r.Text), e.clock())
		msg.AISource = &AISource{Provider: r.ProviderName, Role: string(r.Source)}
		e.appendReply(ctx, sess, msg, "ai_answer")
	case ai.StatusCredentialRequired:
		if err := e.apply(sess, AwaitCredential{Provider: r.CredentialFor, Question: question}); err != nil {
			return err
		}
		e.reply(ctx, sess, Text(r.Text), "credential_prompt")
	default:
		e.reply(ctx, sess, Text(r.Text), "ai_failed")
	}
	return nil
}

func (e *Engine) allowAIRequest(ctx context.Context, conversationID string) bool {
	if e.deps.Limiter == nil || e.cfg.AIRateLimit <= 0 {
		return true
	}
	window := e.cfg.AIRateWindow
	if window <= 0 {
		window = 10 * time.Minute
	}
	ok, err := e.deps.Limiter.Allow(ctx, "rl:ai:"+conversationID, e.cfg.AIRateLimit, window)
	if err != nil {
		e.logger.Warn("rate limit check failed", "error", err)
		return true
	}
	return ok
}

func (e *Engine) apply(sess *Session, ev Event) error {
	return e.manager.Apply(sess.ID, &sess.State, ev)
}

func (e *Engine) reply(ctx context.Context, sess *Session, content Content, category string) {
	e.appendReply(ctx, sess, newMessage(SenderSystem, content, e.clock()), category)
}

func (e *Engine) appendReply(ctx context.Context, sess *Session, msg Message, category string) {
	sess.Append(msg)
	if e.metrics != nil {
		e.metrics.RouteTotal.WithLabelValues(category).Inc()
	}
	e.logMessage(ctx, sess.ID, "outgoing", category, RenderText(msg))
}

func (e *Engine) logMessage(ctx context.Context, conversationID, direction, msgType, text string) {
	if e.deps.Log == nil {
		return
	}
	if err := e.deps.Log.InsertMessage(ctx, repo.MessageRecord{
		ConversationID: conversationID,
		Direction:      direction,
		Type:           msgType,
		Content:        optionalString(text),
	}); err != nil {
		e.logger.Warn("failed logging message", "direction", direction, "error", err)
	}
}

func previewBlock(conf AwaitingConfirmation) Block {
	return Block{
		View: QuotationPreview{
			CustomerName:  conf.Draft.CustomerName,
			CustomerFound: conf.Reason == ReasonGenerate,
			Models:        conf.Draft.Models,
		},
		Actions: confirmationActions(conf.Reason),
	}
}

func confirmationActions(reason ConfirmReason) []Action {
	if reason == ReasonCustomerMissing {
		return []Action{
			{ID: ActionAddCustomerFirst, Label: "Add customer first"},
			{ID: ActionContinueAnyway, Label: "Continue anyway"},
			{ID: ActionCancel, Label: "Cancel"},
		}
	}
	return []Action{
		{ID: ActionGenerateQuotation, Label: "Generate quotation"},
		{ID: ActionCancel, Label: "Cancel"},
	}
}

func actionOffered(reason ConfirmReason, id string) bool {
	for _, a := range confirmationActions(reason) {
		if a.ID == id {
			return true
		}
	}
	return false
}

// confirmationChoice maps a typed reply to one of the offered actions.
// Numbers pick by position.
func confirmationChoice(reason ConfirmReason, text string) string {
	actions := confirmationActions(reason)
	lower := strings.ToLower(strings.TrimSpace(text))
	if n, err := strconv.Atoi(lower); err == nil {
		if n >= 1 && n <= len(actions) {
			return actions[n-1].ID
		}
		return ""
	}
	switch lower {
	case "no":
		return ActionCancel
	case "generate", "generate quotation", "yes", "confirm", "ok":
		if reason == ReasonGenerate {
			return ActionGenerateQuotation
		}
		return ActionContinueAnyway
	case "continue", "continue anyway":
		if reason == ReasonCustomerMissing {
			return ActionContinueAnyway
		}
	case "add customer", "add customer first":
		if reason == ReasonCustomerMissing {
			return ActionAddCustomerFirst
		}
	}
	return ""
}

func actionLabel(id string) string {
	switch id {
	case ActionGenerateQuotation:
		return "Generate quotation"
	case ActionCancel:
		return "Cancel"
	case ActionAddCustomerFirst:
		return "Add customer first"
	case ActionContinueAnyway:
		return "Continue anyway"
	default:
		return id
	}
}

// looksLikeKey accepts a single token long enough to be an API key.
func looksLikeKey(text string) bool {
	return len(text) >= 20 && !strings.ContainsAny(text, " \t\n")
}

func isCredentialMessage(sess *Session, text string) bool {
	lower := strings.ToLower(text)
	if lower == "/key" || strings.HasPrefix(lower, "/key ") {
		return true
	}
	_, waiting := sess.State.Pending.(AwaitingCredential)
	return waiting && looksLikeKey(text)
}

func failureText(err error) string {
	if errors.Is(err, ErrLookupFailure) {
		return "Sorry, I couldn't reach the records right now. Nothing was changed, please try again."
	}
	return "Sorry, something went wrong while handling that message."
}

func optionalString(val string) *string {
	if strings.TrimSpace(val) == "" {
		return nil
	}
	ptr := val
	return &ptr
}
