package convo

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Sender is who wrote a message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderSystem Sender = "system"
)

// Content is either Text or Block.
type Content interface {
	isContent()
}

// Text is plain message text.
type Text string

func (Text) isContent() {}

// Block is a rich view with optional action buttons.
type Block struct {
	View    ViewModel
	Actions []Action
}

func (Block) isContent() {}

// Action is a button the chat surface can send back as Input.Action.
type Action struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Action identifiers.
const (
	ActionGenerateQuotation = "generate_quotation"
	ActionCancel            = "cancel"
	ActionAddCustomerFirst  = "add_customer_first"
	ActionContinueAnyway    = "continue_anyway"
)

// AISource attributes a message to the provider that wrote it.
type AISource struct {
	Provider string `json:"provider"`
	Role     string `json:"role"`
}

// Message is one transcript entry. Messages are not modified after they are
// appended.
type Message struct {
	ID        string
	Content   Content
	Sender    Sender
	Timestamp time.Time
	AISource  *AISource
}

func newMessage(sender Sender, content Content, at time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Content:   content,
		Sender:    sender,
		Timestamp: at,
	}
}

// PlainText returns the text of a Text message, or "" for blocks.
func (m Message) PlainText() string {
	if t, ok := m.Content.(Text); ok {
		return string(t)
	}
	return ""
}

type messageJSON struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	Text      *string   `json:"text,omitempty"`
	View      *viewJSON `json:"view,omitempty"`
	Actions   []Action  `json:"actions,omitempty"`
	AISource  *AISource `json:"aiSource,omitempty"`
	Rendered  string    `json:"rendered"`
}

type viewJSON struct {
	Kind string    `json:"kind"`
	Data ViewModel `json:"data"`
}

// MarshalJSON writes the content union as either "text" or "view".
func (m Message) MarshalJSON() ([]byte, error) {
	out := messageJSON{
		ID:        m.ID,
		Sender:    m.Sender,
		Timestamp: m.Timestamp,
		AISource:  m.AISource,
		Rendered:  RenderText(m),
	}
	switch c := m.Content.(type) {
	case Text:
		s := string(c)
		out.Text = &s
	case Block:
		out.View = &viewJSON{Kind: c.View.ViewKind(), Data: c.View}
		out.Actions = c.Actions
	}
	return json.Marshal(out)
}
