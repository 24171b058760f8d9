package convo

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"bot-crm/internal/ai"
	"bot-crm/internal/cache"
	"bot-crm/internal/nlu"
	"bot-crm/internal/quote"
	"bot-crm/internal/repo"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhoneLookupNotFound(t *testing.T) {
	h := newHarness(Config{})

	resp := h.say("c1", "9876543210")
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "No customer found with this mobile number.", resp.Messages[0].PlainText())
	assert.Equal(t, SenderSystem, resp.Messages[0].Sender)
	assert.Equal(t, "idle", resp.State)
}

func TestPhoneLookupFound(t *testing.T) {
	h := newHarness(Config{})
	h.directory.customers = []repo.Customer{{ID: "c-ravi", Name: "Ravi Sharma", Phone: "9876543210", Location: "Bhopal"}}

	resp := h.say("c1", "98765-43210")
	require.Len(t, resp.Messages, 1)
	block, ok := resp.Messages[0].Content.(Block)
	require.True(t, ok)
	card := block.View.(CustomerCard)
	assert.Equal(t, "c-ravi", card.Customer.ID)
	assert.False(t, card.Existing)
}

func TestCreateCustomer(t *testing.T) {
	h := newHarness(Config{})

	resp := h.say("c1", "Add new customer Ravi Sharma from Bhopal, 9876543210")
	require.Len(t, h.directory.creates, 1)
	assert.Equal(t, repo.NewCustomer{Name: "Ravi Sharma", Phone: "9876543210", Location: "Bhopal"}, h.directory.creates[0])

	require.Len(t, resp.Messages, 1)
	card := resp.Messages[0].Content.(Block).View.(CustomerCard)
	assert.True(t, card.Created)
	assert.False(t, card.Existing)
	assert.Contains(t, RenderText(resp.Messages[0]), "Customer created:")
	assert.Equal(t, "idle", resp.State)
}

func TestCreateCustomerNeverDuplicatesPhone(t *testing.T) {
	h := newHarness(Config{})

	h.say("c1", "Add new customer Ravi Sharma from Bhopal, 9876543210")
	resp := h.say("c1", "Add new customer Ravi S from Indore, 9876543210")

	assert.Len(t, h.directory.customers, 1)
	assert.Len(t, h.directory.creates, 1)
	card := resp.Messages[0].Content.(Block).View.(CustomerCard)
	assert.True(t, card.Existing)
	assert.Equal(t, "Ravi Sharma", card.Customer.Name)
}

func TestCreateCustomerNamePolicy(t *testing.T) {
	existing := repo.Customer{ID: "c-ravi", Name: "Ravi Sharma", Phone: "9000000000"}

	h := newHarness(Config{DuplicatePolicy: DuplicateByPhoneOrName})
	h.directory.customers = []repo.Customer{existing}
	resp := h.say("c1", "Add new customer Ravi Sharma from Bhopal, 9876543210")
	assert.Empty(t, h.directory.creates)
	assert.True(t, resp.Messages[0].Content.(Block).View.(CustomerCard).Existing)

	h = newHarness(Config{DuplicatePolicy: DuplicateByPhone})
	h.directory.customers = []repo.Customer{existing}
	h.say("c1", "Add new customer Ravi Sharma from Bhopal, 9876543210")
	assert.Len(t, h.directory.creates, 1)
}

func TestCustomerClarificationMergesPhone(t *testing.T) {
	h := newHarness(Config{})

	resp := h.say("c1", "add customer Anita Verma from Pune")
	assert.Equal(t, "awaiting_clarification", resp.State)
	assert.Contains(t, resp.Messages[0].PlainText(), "mobile number")

	resp = h.say("c1", "98260 12345")
	require.Len(t, h.directory.creates, 1)
	assert.Equal(t, "Anita Verma", h.directory.creates[0].Name)
	assert.Equal(t, "Pune", h.directory.creates[0].Location)
	assert.Equal(t, "9826012345", h.directory.creates[0].Phone)
	assert.Equal(t, "idle", resp.State)
}

func TestQuotationClarificationKeepsModels(t *testing.T) {
	h := newHarness(Config{})
	h.directory.customers = []repo.Customer{{ID: "c-ravi", Name: "Ravi Sharma", Phone: "9876543210"}}
	models := []nlu.ModelQty{{Model: "Kyocera 2554ci", Quantity: 2}}

	resp := h.say("c1", "Generate quotation for 2 Kyocera 2554ci")
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "Please share the customer name for the quotation.", resp.Messages[0].PlainText())
	pending, ok := h.state("c1").Pending.(AwaitingClarification)
	require.True(t, ok)
	assert.Equal(t, []string{nlu.SlotCustomerName}, pending.Missing)
	assert.Equal(t, models, pending.Partial.(nlu.QuotationRequest).Models)

	resp = h.say("c1", "Ravi Sharma")
	conf, ok := h.state("c1").Pending.(AwaitingConfirmation)
	require.True(t, ok)
	assert.Equal(t, ReasonGenerate, conf.Reason)
	assert.Equal(t, "c-ravi", conf.CustomerID)
	assert.Equal(t, models, conf.Draft.Models)
	block := resp.Messages[0].Content.(Block)
	assert.Equal(t, []Action{{ID: ActionGenerateQuotation, Label: "Generate quotation"}, {ID: ActionCancel, Label: "Cancel"}}, block.Actions)

	resp = h.press("c1", ActionGenerateQuotation)
	require.Len(t, h.quotes.drafts, 1)
	assert.Equal(t, quote.Draft{CustomerID: "c-ravi", CustomerName: "Ravi Sharma", Models: models}, h.quotes.drafts[0])
	doc := resp.Messages[0].Content.(Block).View.(QuotationDocumentView)
	assert.Equal(t, "QT-20250410-0000ABCD", doc.Document.Number)
	assert.Equal(t, "idle", resp.State)
}

func TestQuotationAddCustomerFirstResumes(t *testing.T) {
	h := newHarness(Config{})

	resp := h.say("c1", "quote for Sharma Traders: 2 x Ricoh 2014 toner")
	conf, ok := h.state("c1").Pending.(AwaitingConfirmation)
	require.True(t, ok)
	assert.Equal(t, ReasonCustomerMissing, conf.Reason)
	require.Len(t, resp.Messages[0].Content.(Block).Actions, 3)
	assert.Contains(t, RenderText(resp.Messages[0]), "Reply 1 for Add customer first, 2 for Continue anyway, 3 for Cancel.")

	resp = h.press("c1", ActionAddCustomerFirst)
	clar, ok := h.state("c1").Pending.(AwaitingClarification)
	require.True(t, ok)
	assert.Equal(t, "Sharma Traders", clar.Partial.(nlu.CustomerCreate).Name)
	assert.Equal(t, []string{nlu.SlotPhone}, clar.Missing)
	require.NotNil(t, clar.Resume)
	assert.Contains(t, resp.Messages[0].PlainText(), "Let's add Sharma Traders first.")

	resp = h.say("c1", "98765 43210")
	require.Len(t, resp.Messages, 2)
	assert.True(t, resp.Messages[0].Content.(Block).View.(CustomerCard).Created)
	conf, ok = h.state("c1").Pending.(AwaitingConfirmation)
	require.True(t, ok)
	assert.Equal(t, ReasonGenerate, conf.Reason)
	assert.Equal(t, "cust-9876543210", conf.CustomerID)
	assert.Equal(t, []nlu.ModelQty{{Model: "Ricoh 2014 toner", Quantity: 2}}, conf.Draft.Models)

	resp = h.say("c1", "1")
	require.Len(t, h.quotes.drafts, 1)
	assert.Equal(t, "cust-9876543210", h.quotes.drafts[0].CustomerID)
	assert.Equal(t, "idle", resp.State)
}

func TestQuotationContinueAnyway(t *testing.T) {
	h := newHarness(Config{})

	h.say("c1", "quote for Sharma Traders: 2 x Ricoh 2014 toner")
	resp := h.say("c1", "continue anyway")
	require.Len(t, h.quotes.drafts, 1)
	assert.Empty(t, h.quotes.drafts[0].CustomerID)
	assert.Equal(t, "Sharma Traders", h.quotes.drafts[0].CustomerName)
	assert.Equal(t, "idle", resp.State)
}

func TestQuotationCancel(t *testing.T) {
	h := newHarness(Config{})
	h.directory.customers = []repo.Customer{{ID: "c-ravi", Name: "Ravi Sharma", Phone: "9876543210"}}

	h.say("c1", "Quotation for Ravi Sharma for 2 Kyocera 2554ci")
	require.IsType(t, AwaitingConfirmation{}, h.state("c1").Pending)

	resp := h.press("c1", ActionCancel)
	assert.Equal(t, "Quotation cancelled.", resp.Messages[0].PlainText())
	assert.Nil(t, h.state("c1").Pending)
	assert.Empty(t, h.quotes.drafts)
}

func TestActionWithoutPendingConfirmation(t *testing.T) {
	h := newHarness(Config{})

	resp := h.press("c1", ActionGenerateQuotation)
	assert.Equal(t, "There is nothing waiting for confirmation.", resp.Messages[0].PlainText())
	assert.Empty(t, h.quotes.drafts)
}

func TestInventoryQuery(t *testing.T) {
	h := newHarness(Config{})
	h.catalog.items = []repo.Item{{ID: "i1", Brand: "Ricoh", Model: "2014", ItemType: "toner", Quantity: 2, MinThreshold: 5}}

	resp := h.say("c1", "Check stock for Ricoh 2014 toner")
	require.Len(t, h.catalog.queries, 1)
	assert.Equal(t, repo.ItemFilter{Brand: "Ricoh", Model: "2014", ItemType: "toner"}, h.catalog.queries[0])

	view := resp.Messages[0].Content.(Block).View.(InventoryView)
	assert.False(t, view.NotFound)
	require.Len(t, view.Rows, 1)
	assert.True(t, view.Rows[0].LowStock)
	assert.Contains(t, RenderText(resp.Messages[0]), "(low, min 5)")
}

func TestInventoryNotFoundSuggestsSimilar(t *testing.T) {
	h := newHarness(Config{})
	h.catalog.items = []repo.Item{
		{ID: "i1", Brand: "Ricoh", Model: "2020D", ItemType: "toner", Quantity: 8, MinThreshold: 2},
		{ID: "i2", Brand: "Ricoh", Model: "2014", ItemType: "drum", Quantity: 1, MinThreshold: 1},
	}

	resp := h.say("c1", "Check stock for Ricoh 2014 toner")
	view := resp.Messages[0].Content.(Block).View.(InventoryView)
	assert.True(t, view.NotFound)
	assert.Empty(t, view.Rows)
	require.Len(t, view.Suggestions, 2)
	assert.Equal(t, "i2", view.Suggestions[0].Item.ID)
	assert.Equal(t, "i1", view.Suggestions[1].Item.ID)
	assert.Contains(t, RenderText(resp.Messages[0]), "No items found for Ricoh 2014 toner.")
}

func TestTaskCreate(t *testing.T) {
	h := newHarness(Config{})

	resp := h.say("c1", "Create task call Ravi about AMC renewal tomorrow at 10 AM")
	require.Len(t, h.tasks.created, 1)
	assert.Equal(t, "call Ravi about AMC renewal", h.tasks.created[0].Title)
	assert.True(t, time.Date(2025, time.April, 11, 10, 0, 0, 0, ist).Equal(h.tasks.created[0].DueDate))
	assert.IsType(t, TaskCard{}, resp.Messages[0].Content.(Block).View)
}

func TestTaskClarificationFillsDueDate(t *testing.T) {
	h := newHarness(Config{})

	resp := h.say("c1", "create task for Ravi")
	assert.Equal(t, "Please share the due date.", resp.Messages[0].PlainText())

	h.say("c1", "tomorrow 4pm")
	require.Len(t, h.tasks.created, 1)
	assert.Equal(t, "Ravi", h.tasks.created[0].Assignee)
	assert.Equal(t, "Task for Ravi", h.tasks.created[0].Title)
	assert.True(t, time.Date(2025, time.April, 11, 16, 0, 0, 0, ist).Equal(h.tasks.created[0].DueDate))
	assert.Nil(t, h.state("c1").Pending)
}

func TestNewCommandSupersedesPendingFlow(t *testing.T) {
	h := newHarness(Config{})
	h.catalog.items = []repo.Item{{ID: "i1", Brand: "Ricoh", Model: "MP 2014", ItemType: "toner", Quantity: 6, MinThreshold: 2}}

	h.say("c1", "Generate quotation for 2 Kyocera 2554ci")
	require.IsType(t, AwaitingClarification{}, h.state("c1").Pending)

	resp := h.say("c1", "Check stock for Ricoh 2014 toner")
	require.Len(t, h.catalog.queries, 1)
	assert.Equal(t, repo.ItemFilter{Brand: "Ricoh", Model: "2014", ItemType: "toner"}, h.catalog.queries[0])
	view, ok := resp.Messages[0].Content.(Block).View.(InventoryView)
	require.True(t, ok)
	assert.False(t, view.NotFound)
	assert.Len(t, view.Rows, 1)
	assert.Nil(t, h.state("c1").Pending)
}

func TestUnrelatedTextRepromptsClarification(t *testing.T) {
	h := newHarness(Config{})

	h.say("c1", "Generate quotation for 2 Kyocera 2554ci")
	resp := h.say("c1", "What's the weather today?")
	assert.Contains(t, resp.Messages[0].PlainText(), "customer name for the quotation")
	assert.IsType(t, AwaitingClarification{}, h.state("c1").Pending)
	assert.Empty(t, h.assistant.queries)
}

func TestLookupFailureLeavesStateUnchanged(t *testing.T) {
	h := newHarness(Config{})

	h.say("c1", "Generate quotation for 2 Kyocera 2554ci")
	before := h.state("c1")
	h.directory.err = errors.New("connection refused")

	resp := h.say("c1", "Ravi Sharma")
	assert.Contains(t, resp.Messages[0].PlainText(), "couldn't reach the records")
	assert.Equal(t, before, h.state("c1"))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Errors.WithLabelValues("convo")))
}

func TestCancelClearsPending(t *testing.T) {
	h := newHarness(Config{})

	h.say("c1", "new task")
	resp := h.say("c1", "cancel")
	assert.Equal(t, "Cancelled.", resp.Messages[0].PlainText())
	assert.Nil(t, h.state("c1").Pending)

	resp = h.say("c1", "cancel")
	assert.Equal(t, "Nothing to cancel.", resp.Messages[0].PlainText())
}

func TestTemplateReplyBeforeAssistant(t *testing.T) {
	h := newHarness(Config{})

	resp := h.say("c1", "help")
	assert.True(t, strings.HasPrefix(resp.Messages[0].PlainText(), "I can help with"))
	assert.Empty(t, h.assistant.queries)
}

func TestUnmatchedTextGoesToAssistant(t *testing.T) {
	h := newHarness(Config{})
	h.assistant.replies = []ai.Reply{{Status: ai.StatusAnswered, Text: "It is sunny.", Source: ai.RolePrimary, ProviderName: "function"}}

	resp := h.say("c1", "What's the weather today?")
	require.Len(t, h.assistant.queries, 1)
	assert.Equal(t, ai.RolePrimary, h.assistant.queries[0].Prefer)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "It is sunny.", resp.Messages[0].PlainText())
	assert.Equal(t, &AISource{Provider: "function", Role: "primary"}, resp.Messages[0].AISource)

	h.say("c1", "use secondary")
	h.say("c1", "tell me a joke")
	require.Len(t, h.assistant.queries, 2)
	assert.Equal(t, ai.RoleSecondary, h.assistant.queries[1].Prefer)
}

func TestCredentialPromptAndReplay(t *testing.T) {
	h := newHarness(Config{})
	h.assistant.replies = []ai.Reply{
		{Status: ai.StatusCredentialRequired, CredentialFor: ai.RoleSecondary, Text: "Please send an API key for the secondary AI provider."},
		{Status: ai.StatusAnswered, Text: "Why did the printer jam? It had too many issues.", Source: ai.RoleSecondary, ProviderName: "secondary"},
	}
	const key = "gsk_0123456789abcdefghijkl"

	resp := h.say("c1", "tell me a joke")
	assert.Equal(t, "awaiting_credential", resp.State)
	pending := h.state("c1").Pending.(AwaitingCredential)
	assert.Equal(t, "tell me a joke", pending.Question)

	resp = h.say("c1", key)
	require.Len(t, h.assistant.queries, 2)
	assert.Equal(t, key, h.assistant.queries[1].SecondaryKey)
	assert.Equal(t, "tell me a joke", h.assistant.queries[1].Text)
	last := resp.Messages[len(resp.Messages)-1]
	require.NotNil(t, last.AISource)
	assert.Equal(t, "secondary", last.AISource.Role)
	assert.Equal(t, "idle", resp.State)

	transcript, ok := h.engine.Transcript("c1")
	require.True(t, ok)
	for _, m := range transcript {
		assert.NotContains(t, RenderText(m), key)
	}
	for _, rec := range h.log.records {
		if rec.Content != nil {
			assert.NotContains(t, *rec.Content, key)
		}
	}
}

func TestRejectedCredentialIsCleared(t *testing.T) {
	h := newHarness(Config{})
	h.assistant.replies = []ai.Reply{{
		Status:   ai.StatusFailed,
		Text:     "Sorry, both AI attempts failed.",
		Attempts: []ai.Attempt{{Role: ai.RolePrimary, Err: ai.ErrQuotaExceeded}, {Role: ai.RoleSecondary, Err: ai.ErrCredentialRejected}},
	}}

	h.engine.SupplyCredential(context.Background(), "c1", "gsk_0123456789abcdefghijkl")
	h.say("c1", "tell me a joke")

	sess, release := h.engine.sessions.Acquire("c1")
	defer release()
	assert.Empty(t, sess.Credential(ai.RoleSecondary))
}

func TestAssistantRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	limiter := cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:")

	h := newHarness(Config{AIRateLimit: 1, AIRateWindow: time.Minute})
	h.engine.deps.Limiter = limiter
	h.assistant.replies = []ai.Reply{{Status: ai.StatusAnswered, Text: "ok", Source: ai.RolePrimary, ProviderName: "function"}}

	h.say("c1", "tell me a joke")
	resp := h.say("c1", "tell me another joke")
	assert.Len(t, h.assistant.queries, 1)
	assert.Contains(t, resp.Messages[0].PlainText(), "Please try again in a few minutes")

	h.say("c2", "tell me a joke")
	assert.Len(t, h.assistant.queries, 2)
}

func TestHandleSerialisesPerConversation(t *testing.T) {
	h := newHarness(Config{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := "shared"
			if i%2 == 1 {
				id = "other"
			}
			h.say(id, "help")
		}(i)
	}
	wg.Wait()

	transcript, ok := h.engine.Transcript("shared")
	require.True(t, ok)
	require.Len(t, transcript, 20)
	for i := 0; i < len(transcript); i += 2 {
		assert.Equal(t, SenderUser, transcript[i].Sender)
		assert.Equal(t, SenderSystem, transcript[i+1].Sender)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.ActiveSessions))
}

func TestEndForgetsConversation(t *testing.T) {
	h := newHarness(Config{})
	h.say("c1", "help")

	assert.True(t, h.engine.End("c1"))
	_, ok := h.engine.Transcript("c1")
	assert.False(t, ok)
	assert.False(t, h.engine.End("c1"))
}
