package wa

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"bot-crm/internal/convo"
	"bot-crm/internal/metrics"

	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

const nonTextReply = "I can only read text messages for now. Please type your request."

// Conversations is the engine surface the handler drives.
type Conversations interface {
	Handle(ctx context.Context, conversationID string, in convo.Input) convo.Response
}

// Sender delivers replies.
type Sender interface {
	SendText(ctx context.Context, to types.JID, text string) error
}

// Handler turns whatsmeow events into engine calls. Messages from one sender
// are processed one at a time in arrival order.
type Handler struct {
	conv    Conversations
	sender  Sender
	metrics *metrics.Metrics
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.Mutex
	queues map[string][]*events.Message
}

// NewHandler builds a Handler. timeout bounds each inbound message.
func NewHandler(conv Conversations, sender Sender, m *metrics.Metrics, logger *slog.Logger, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Handler{
		conv:    conv,
		sender:  sender,
		metrics: m,
		logger:  logger.With("component", "whatsapp"),
		timeout: timeout,
		queues:  make(map[string][]*events.Message),
	}
}

// HandleEvent is registered with the client. Messages are queued per sender
// and processed off the event loop.
func (h *Handler) HandleEvent(evt any) {
	switch v := evt.(type) {
	case *events.Message:
		h.enqueue(v)
	case *events.Connected:
		h.logger.Info("whatsapp session online")
	case *events.Disconnected:
		h.logger.Warn("whatsapp disconnected")
	case *events.LoggedOut:
		h.logger.Error("whatsapp device logged out", "reason", v.Reason)
	}
}

func (h *Handler) enqueue(evt *events.Message) {
	key := evt.Info.Sender.ToNonAD().String()
	h.mu.Lock()
	queue, running := h.queues[key]
	h.queues[key] = append(queue, evt)
	h.mu.Unlock()
	if !running {
		go h.drain(key)
	}
}

// drain processes queued messages for key until the queue is empty.
func (h *Handler) drain(key string) {
	for {
		h.mu.Lock()
		queue := h.queues[key]
		if len(queue) == 0 {
			delete(h.queues, key)
			h.mu.Unlock()
			return
		}
		evt := queue[0]
		h.queues[key] = queue[1:]
		h.mu.Unlock()

		h.processSafely(evt)
	}
}

func (h *Handler) processSafely(evt *events.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("panic handling message", "panic", r, "stack", string(debug.Stack()))
			if h.metrics != nil {
				h.metrics.Errors.WithLabelValues("whatsapp").Inc()
			}
		}
	}()
	h.ProcessMessage(ctx, evt)
}

// ProcessMessage handles one inbound message. Each sender is its own
// conversation.
func (h *Handler) ProcessMessage(ctx context.Context, evt *events.Message) {
	if evt.Info.IsFromMe || evt.Info.IsGroup {
		return
	}

	to := evt.Info.Chat
	conversationID := evt.Info.Sender.ToNonAD().String()
	text := extractText(evt)
	if text == "" {
		msgType := detectMessageType(evt)
		if h.metrics != nil {
			h.metrics.IncomingMessages.WithLabelValues("whatsapp", msgType).Inc()
		}
		h.logger.Debug("ignoring non-text message", "type", msgType, "conversation", conversationID)
		h.send(ctx, to, nonTextReply)
		return
	}

	resp := h.conv.Handle(ctx, conversationID, convo.Input{Text: text, Channel: "whatsapp"})
	for _, msg := range resp.Messages {
		h.send(ctx, to, convo.RenderText(msg))
	}
}

func (h *Handler) send(ctx context.Context, to types.JID, text string) {
	if err := h.sender.SendText(ctx, to, text); err != nil {
		h.logger.Error("failed sending reply", "error", err, "to", to.String())
		if h.metrics != nil {
			h.metrics.Errors.WithLabelValues("whatsapp").Inc()
		}
	}
}

func detectMessageType(evt *events.Message) string {
	msg := evt.Message
	switch {
	case msg == nil:
		return "unknown"
	case msg.GetConversation() != "":
		return "text"
	case msg.ExtendedTextMessage != nil:
		return "extended_text"
	case msg.ImageMessage != nil:
		return "image"
	case msg.VideoMessage != nil:
		return "video"
	case msg.AudioMessage != nil:
		return "audio"
	case msg.DocumentMessage != nil:
		return "document"
	case msg.StickerMessage != nil:
		return "sticker"
	default:
		return "unknown"
	}
}

func extractText(evt *events.Message) string {
	msg := evt.Message
	switch {
	case msg == nil:
		return ""
	case msg.GetConversation() != "":
		return strings.TrimSpace(msg.GetConversation())
	case msg.ExtendedTextMessage != nil:
		return strings.TrimSpace(msg.GetExtendedTextMessage().GetText())
	case msg.ImageMessage != nil:
		return strings.TrimSpace(msg.GetImageMessage().GetCaption())
	default:
		return ""
	}
}
