// Package wa connects the conversation engine to WhatsApp through whatsmeow.
package wa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"

	_ "modernc.org/sqlite"
)

// ErrNotConnected is returned by Ping and SendText before the socket is up.
var ErrNotConnected = errors.New("whatsapp not connected")

// Config holds gateway settings.
type Config struct {
	StorePath string
	LogLevel  string
}

// Gateway owns the whatsmeow client and its device store.
type Gateway struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	logger    *slog.Logger
}

// Open prepares the SQLite device store and the client. It does not connect.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Gateway, error) {
	logger = logger.With("component", "whatsapp")
	if dir := filepath.Dir(cfg.StorePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", cfg.StorePath)
	container, err := sqlstore.New(ctx, "sqlite", dsn, newLogger(logger, "store", cfg.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("open device store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("load device: %w", err)
	}

	client := whatsmeow.NewClient(device, newLogger(logger, "client", cfg.LogLevel))
	return &Gateway{client: client, container: container, logger: logger}, nil
}

// Start registers handler for client events and connects. A device that has
// never been paired logs QR codes until it is scanned or ctx ends.
func (g *Gateway) Start(ctx context.Context, handler func(evt any)) error {
	g.client.AddEventHandler(handler)

	if g.client.Store.ID != nil {
		if err := g.client.Connect(); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		g.logger.Info("whatsapp connected", "jid", g.client.Store.ID.String())
		return nil
	}

	qrChan, err := g.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("qr channel: %w", err)
	}
	if err := g.client.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	go func() {
		for item := range qrChan {
			switch item.Event {
			case whatsmeow.QRChannelEventCode:
				g.logger.Info("scan qr code to pair device", "code", item.Code, "timeout", item.Timeout)
			case whatsmeow.QRChannelEventError:
				g.logger.Error("pairing failed", "error", item.Error)
			default:
				g.logger.Info("pairing event", "event", item.Event)
			}
		}
	}()
	return nil
}

// SendText delivers a plain text message.
func (g *Gateway) SendText(ctx context.Context, to types.JID, text string) error {
	if !g.client.IsConnected() {
		return ErrNotConnected
	}
	_, err := g.client.SendMessage(ctx, to, &waProto.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// Ping reports whether the socket is connected.
func (g *Gateway) Ping(context.Context) error {
	if !g.client.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Close disconnects and releases the device store.
func (g *Gateway) Close() {
	g.client.Disconnect()
	if err := g.container.Close(); err != nil {
		g.logger.Warn("close device store", "error", err)
	}
}
