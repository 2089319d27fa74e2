// Package whatsapp implements the WhatsApp channel using whatsmeow.
//
// The session is persisted in SQLite. On first start there is no linked
// device and the pairing code is written to the configured QR writer until
// it is scanned from the phone's "Linked devices" screen.
package whatsapp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.mau.fi/whatsmeow"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for the session store.

	"github.com/jholhewres/boat/pkg/boat/channels"
)

// Config holds WhatsApp channel configuration.
type Config struct {
	// SessionPath is the SQLite file holding the linked device.
	SessionPath string `yaml:"session_path" toml:"session_path" env:"SESSION_PATH"`

	// RespondToGroups enables group chats.
	RespondToGroups bool `yaml:"respond_to_groups" toml:"respond_to_groups" env:"RESPOND_TO_GROUPS"`

	// RespondToDMs enables direct chats.
	RespondToDMs bool `yaml:"respond_to_dms" toml:"respond_to_dms" env:"RESPOND_TO_DMS"`

	// DeviceName is shown in the phone's linked devices list.
	DeviceName string `yaml:"device_name" toml:"device_name" env:"DEVICE_NAME"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SessionPath:     "./data/whatsapp.db",
		RespondToGroups: true,
		RespondToDMs:    true,
		DeviceName:      "boat",
	}
}

// WhatsApp implements channels.Channel.
type WhatsApp struct {
	cfg    Config
	logger *slog.Logger
	qrOut  io.Writer

	client    *whatsmeow.Client
	container *sqlstore.Container

	messages       chan *channels.IncomingMessage
	messagesClosed atomic.Bool

	connected  atomic.Bool
	lastMsg    atomic.Value // time.Time
	errorCount atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
}

// New creates a WhatsApp channel. Pairing codes are written to qrOut;
// nil means stdout.
func New(cfg Config, qrOut io.Writer, logger *slog.Logger) *WhatsApp {
	if logger == nil {
		logger = slog.Default()
	}
	if qrOut == nil {
		qrOut = os.Stdout
	}
	if cfg.SessionPath == "" {
		cfg.SessionPath = DefaultConfig().SessionPath
	}
	if cfg.DeviceName == "" {
		cfg.DeviceName = DefaultConfig().DeviceName
	}
	return &WhatsApp{
		cfg:      cfg,
		logger:   logger.With("component", "whatsapp"),
		qrOut:    qrOut,
		messages: make(chan *channels.IncomingMessage, 256),
		ctx:      context.Background(),
	}
}

// Name returns "whatsapp".
func (w *WhatsApp) Name() string { return "whatsapp" }

// Connect opens the session store and connects. Without a linked device
// the QR login runs in the background and Connect returns immediately.
func (w *WhatsApp) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// A retried Connect must not leak the previous attempt.
	w.release()
	w.ctx, w.cancel = context.WithCancel(ctx)

	if err := os.MkdirAll(filepath.Dir(w.cfg.SessionPath), 0o755); err != nil {
		w.release()
		return fmt.Errorf("whatsapp: create session directory: %w", err)
	}
	container, err := sqlstore.New(w.ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=1&_journal_mode=WAL", w.cfg.SessionPath),
		waLog.Noop)
	if err != nil {
		w.release()
		return fmt.Errorf("whatsapp: creating session store: %w", err)
	}
	w.container = container

	device, err := getDevice(w.ctx, container)
	if err != nil {
		w.release()
		return fmt.Errorf("whatsapp: getting device: %w", err)
	}
	store.SetOSInfo(w.cfg.DeviceName, [3]uint32{1, 0, 0})

	w.client = whatsmeow.NewClient(device, waLog.Noop)
	w.client.AddEventHandler(w.handleEvent)
	w.client.EnableAutoReconnect = true

	if w.client.Store.ID == nil {
		w.logger.Info("whatsapp: no linked device, waiting for QR scan")
		client, loginCtx := w.client, w.ctx
		go func() {
			if err := w.loginWithQR(loginCtx, client); err != nil {
				w.logger.Warn("whatsapp: QR login failed", "error", err)
			}
		}()
		return nil
	}

	if err := w.client.Connect(); err != nil {
		w.release()
		return fmt.Errorf("whatsapp: connecting: %w", err)
	}
	w.connected.Store(true)
	w.logger.Info("whatsapp: connected", "jid", w.client.Store.ID.String())
	return nil
}

// release cancels the connection context, drops the client and closes
// the session store. Callers hold w.mu.
func (w *WhatsApp) release() {
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	if w.client != nil {
		w.client.Disconnect()
		w.client = nil
	}
	if w.container != nil {
		if err := w.container.Close(); err != nil {
			w.logger.Debug("whatsapp: closing session store", "error", err)
		}
		w.container = nil
	}
}

func getDevice(ctx context.Context, container *sqlstore.Container) (*store.Device, error) {
	devices, err := container.GetAllDevices(ctx)
	if err != nil {
		return nil, err
	}
	if len(devices) > 0 {
		return devices[0], nil
	}
	return container.NewDevice(), nil
}

func (w *WhatsApp) loginWithQR(ctx context.Context, client *whatsmeow.Client) error {
	qrChan, err := client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("getting QR channel: %w", err)
	}
	if err := client.Connect(); err != nil {
		return fmt.Errorf("connecting for QR: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-qrChan:
			if !ok {
				return fmt.Errorf("QR channel closed")
			}
			switch evt.Event {
			case "code":
				fmt.Fprintf(w.qrOut, "\nLink boat from WhatsApp > Linked devices using this pairing code\n(render it with any QR tool, e.g. `qrencode -t ansiutf8`):\n\n%s\n\n", evt.Code)
			case "success":
				w.connected.Store(true)
				w.logger.Info("whatsapp: device linked")
				return nil
			case "timeout":
				return fmt.Errorf("QR code expired, restart to try again")
			default:
				if evt.Error != nil {
					return fmt.Errorf("QR login: %w", evt.Error)
				}
			}
		}
	}
}

// Disconnect closes the connection and the message stream.
func (w *WhatsApp) Disconnect() error {
	w.connected.Store(false)

	w.mu.Lock()
	w.release()
	if w.messagesClosed.CompareAndSwap(false, true) {
		close(w.messages)
	}
	w.mu.Unlock()

	w.logger.Info("whatsapp: disconnected")
	return nil
}

// SendDirect sends text to a phone number or user JID.
func (w *WhatsApp) SendDirect(ctx context.Context, to, text string) error {
	return w.send(ctx, to, text)
}

// SendGroup sends text to a group JID.
func (w *WhatsApp) SendGroup(ctx context.Context, groupID, text string) error {
	return w.send(ctx, groupID, text)
}

func (w *WhatsApp) send(ctx context.Context, to, text string) error {
	w.mu.RLock()
	client := w.client
	w.mu.RUnlock()
	if client == nil || !w.connected.Load() {
		return channels.ErrChannelDisconnected
	}

	jid, err := parseJID(to)
	if err != nil {
		return fmt.Errorf("whatsapp: invalid recipient %q: %w", to, err)
	}
	_, err = client.SendMessage(ctx, jid, &waE2E.Message{Conversation: proto.String(text)})
	if err != nil {
		w.errorCount.Add(1)
		return fmt.Errorf("whatsapp: send to %s: %w", jid, err)
	}
	return nil
}

// Receive returns the incoming message stream.
func (w *WhatsApp) Receive() <-chan *channels.IncomingMessage { return w.messages }

// IsConnected reports whether a linked session is online.
func (w *WhatsApp) IsConnected() bool { return w.connected.Load() }

// Health returns the channel health status.
func (w *WhatsApp) Health() channels.HealthStatus {
	var lastAt time.Time
	if v := w.lastMsg.Load(); v != nil {
		lastAt = v.(time.Time)
	}
	h := channels.HealthStatus{
		Connected:     w.connected.Load(),
		LastMessageAt: lastAt,
		ErrorCount:    int(w.errorCount.Load()),
	}
	w.mu.RLock()
	if w.client != nil && w.client.Store != nil && w.client.Store.ID != nil {
		h.Details = map[string]any{"jid": w.client.Store.ID.String()}
	}
	w.mu.RUnlock()
	return h
}

func (w *WhatsApp) handleEvent(raw any) {
	switch evt := raw.(type) {
	case *events.Message:
		if msg := w.convert(evt); msg != nil {
			w.emit(msg)
		}
	case *events.Connected:
		w.connected.Store(true)
		w.logger.Info("whatsapp: connection established")
	case *events.Disconnected:
		w.connected.Store(false)
		w.logger.Warn("whatsapp: connection lost, auto-reconnect enabled")
	case *events.LoggedOut:
		w.connected.Store(false)
		w.logger.Error("whatsapp: logged out from phone, remove the session file to link again",
			"reason", evt.Reason.String())
	}
}

// convert maps a whatsmeow message to an IncomingMessage, or nil when the
// message is ignored: own messages, status broadcasts, non-text messages,
// and chat kinds disabled in config.
func (w *WhatsApp) convert(evt *events.Message) *channels.IncomingMessage {
	if evt.Info.IsFromMe || evt.Info.Chat.Server == types.BroadcastServer {
		return nil
	}
	if evt.Info.IsGroup && !w.cfg.RespondToGroups {
		return nil
	}
	if !evt.Info.IsGroup && !w.cfg.RespondToDMs {
		return nil
	}

	text := messageText(evt.Message)
	if text == "" {
		return nil
	}

	kind := channels.KindDirect
	if evt.Info.IsGroup {
		kind = channels.KindGroup
	}

	return &channels.IncomingMessage{
		ID:        string(evt.Info.ID),
		Channel:   "whatsapp",
		Author:    channels.Identity{ID: evt.Info.Sender.ToNonAD().String(), Name: evt.Info.PushName},
		ChatID:    evt.Info.Chat.String(),
		Kind:      kind,
		Content:   text,
		Timestamp: evt.Info.Timestamp,
		Metadata: map[string]any{
			"phone": evt.Info.Sender.User,
		},
	}
}

// messageText extracts plain text from a conversation or extended text message.
func messageText(m *waE2E.Message) string {
	if m == nil {
		return ""
	}
	if t := m.GetConversation(); t != "" {
		return t
	}
	return m.GetExtendedTextMessage().GetText()
}

func (w *WhatsApp) emit(msg *channels.IncomingMessage) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.messagesClosed.Load() {
		return
	}
	w.lastMsg.Store(time.Now())
	select {
	case w.messages <- msg:
	default:
		w.logger.Warn("whatsapp: message buffer full, dropping message", "from", msg.Author.ID)
	}
}

// parseJID accepts a full JID ("5511...@s.whatsapp.net", "123-456@g.us")
// or a bare phone number.
func parseJID(s string) (types.JID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return types.JID{}, fmt.Errorf("empty JID")
	}
	if strings.Contains(s, "@") {
		return types.ParseJID(s)
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if len(digits) < 10 {
		return types.JID{}, fmt.Errorf("phone number too short: %s", s)
	}
	return types.NewJID(digits, types.DefaultUserServer), nil
}

var _ channels.Channel = (*WhatsApp)(nil)
