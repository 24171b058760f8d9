package convo

import (
	"encoding/json"
	"testing"

	"bot-crm/internal/nlu"
	"bot-crm/internal/repo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClarificationPromptListsEveryField(t *testing.T) {
	assert.Equal(t, "Please share the customer name for the quotation.", clarificationPrompt([]string{nlu.SlotCustomerName}))
	assert.Equal(t, "Please share the task description or assignee and due date.", clarificationPrompt([]string{nlu.SlotTitle, nlu.SlotDueDate}))
	assert.Equal(t, "Please share the customer name, 10-digit mobile number and due date.",
		clarificationPrompt([]string{nlu.SlotName, nlu.SlotPhone, nlu.SlotDueDate}))
}

func TestRenderQuotationPreviewWithActions(t *testing.T) {
	msg := newMessage(SenderSystem, previewBlock(AwaitingConfirmation{
		Draft:  validDraft(),
		Reason: ReasonGenerate,
	}), refTime)

	assert.Equal(t, "Quotation for Ravi Sharma:\n- 2 x Kyocera 2554ci\n\nReply 1 for Generate quotation, 2 for Cancel.", RenderText(msg))
}

func TestRenderCustomerCard(t *testing.T) {
	msg := newMessage(SenderSystem, Block{View: CustomerCard{
		Customer: repo.Customer{Name: "Ravi Sharma", Phone: "9876543210", Location: "Bhopal"},
		Existing: true,
	}}, refTime)
	assert.Equal(t, "Customer already exists:\nName: Ravi Sharma\nPhone: 9876543210\nLocation: Bhopal", RenderText(msg))
}

func TestMessageJSON(t *testing.T) {
	text := newMessage(SenderUser, Text("hello"), refTime)
	raw, err := json.Marshal(text)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "hello", got["text"])
	assert.Equal(t, "user", got["sender"])
	assert.NotContains(t, got, "view")

	block := newMessage(SenderSystem, previewBlock(AwaitingConfirmation{Draft: validDraft(), Reason: ReasonCustomerMissing}), refTime)
	raw, err = json.Marshal(block)
	require.NoError(t, err)
	got = nil
	require.NoError(t, json.Unmarshal(raw, &got))
	view := got["view"].(map[string]any)
	assert.Equal(t, "quotation_preview", view["kind"])
	assert.Len(t, got["actions"], 3)
	assert.Contains(t, got["rendered"], "is not in the customer directory")
}

func TestRankSuggestions(t *testing.T) {
	items := []repo.Item{
		{ID: "a", Brand: "Canon", Model: "2525", ItemType: "toner", Quantity: 3},
		{ID: "b", Brand: "Kyocera", Model: "2554CI", ItemType: "machine", Quantity: 1},
		{ID: "c", Brand: "Kyocera", Model: "2554CI", ItemType: "toner", Quantity: 9},
		{ID: "c", Brand: "Kyocera", Model: "2554CI", ItemType: "toner", Quantity: 9},
		{ID: "d", Brand: "Kyocera", Model: "3554CI", ItemType: "drum", Quantity: 4},
	}
	got := rankSuggestions(items, repo.ItemFilter{Brand: "Kyocera", Model: "2554CI", ItemType: "toner"})
	ids := make([]string, len(got))
	for i, it := range got {
		ids[i] = it.ID
	}
	assert.Equal(t, []string{"c", "b", "d", "a"}, ids)
}

func TestRelaxedFilters(t *testing.T) {
	got := relaxedFilters(repo.ItemFilter{Brand: "Ricoh", Model: "2014", ItemType: "toner"})
	assert.Equal(t, []repo.ItemFilter{
		{Model: "2014"},
		{Brand: "Ricoh", ItemType: "toner"},
		{Brand: "Ricoh"},
	}, got)

	assert.Equal(t, []repo.ItemFilter{{Brand: "Ricoh"}}, relaxedFilters(repo.ItemFilter{Brand: "Ricoh", ItemType: "toner"}))
}
