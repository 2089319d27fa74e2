package whatsapp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/jholhewres/boat/pkg/boat/channels"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func textEvent(chat types.JID, isGroup bool, text string) *events.Message {
	return &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{
				Chat:    chat,
				Sender:  types.NewJID("5511999999999", types.DefaultUserServer),
				IsGroup: isGroup,
			},
			ID:        "ABC",
			PushName:  "Alice",
			Timestamp: time.Unix(1700000000, 0),
		},
		Message: &waE2E.Message{Conversation: proto.String(text)},
	}
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	w := New(Config{}, io.Discard, nil)
	if w.Name() != "whatsapp" {
		t.Errorf("Name() = %q", w.Name())
	}
	if w.cfg.SessionPath != "./data/whatsapp.db" || w.cfg.DeviceName != "boat" {
		t.Errorf("defaults not applied: %+v", w.cfg)
	}
	if w.IsConnected() {
		t.Error("new channel reports connected")
	}
}

func TestConvert(t *testing.T) {
	t.Parallel()

	w := New(DefaultConfig(), io.Discard, quiet())
	dmChat := types.NewJID("5511999999999", types.DefaultUserServer)
	groupChat := types.NewJID("120363000000000000", types.GroupServer)

	dm := w.convert(textEvent(dmChat, false, "!ping"))
	if dm == nil {
		t.Fatal("DM dropped")
	}
	if dm.Kind != channels.KindDirect || dm.Author.Name != "Alice" || dm.Author.ID != "5511999999999@s.whatsapp.net" || dm.Content != "!ping" {
		t.Errorf("DM = %+v", dm)
	}

	group := w.convert(textEvent(groupChat, true, "!ready ready"))
	if group == nil || group.Kind != channels.KindGroup || group.ChatID != groupChat.String() {
		t.Errorf("group message = %+v", group)
	}

	ext := textEvent(dmChat, false, "")
	ext.Message = &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("!echo hi")}}
	if got := w.convert(ext); got == nil || got.Content != "!echo hi" {
		t.Errorf("extended text = %+v", got)
	}

	own := textEvent(dmChat, false, "!ping")
	own.Info.IsFromMe = true
	if w.convert(own) != nil {
		t.Error("own message not dropped")
	}
	if w.convert(textEvent(dmChat, false, "")) != nil {
		t.Error("empty message not dropped")
	}
	status := textEvent(types.NewJID("status", types.BroadcastServer), false, "hi")
	if w.convert(status) != nil {
		t.Error("status broadcast not dropped")
	}
}

func TestConvert_Filters(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.RespondToGroups = false
	w := New(cfg, io.Discard, quiet())
	groupChat := types.NewJID("120363000000000000", types.GroupServer)
	if w.convert(textEvent(groupChat, true, "!ping")) != nil {
		t.Error("group message accepted with groups disabled")
	}
}

func TestParseJID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"5511999999999", "5511999999999@s.whatsapp.net", false},
		{"+55 (11) 99999-9999", "5511999999999@s.whatsapp.net", false},
		{"120363000000000000@g.us", "120363000000000000@g.us", false},
		{"123", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := parseJID(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseJID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got.String() != tt.want {
			t.Errorf("parseJID(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestSendAndDisconnect(t *testing.T) {
	t.Parallel()

	w := New(DefaultConfig(), io.Discard, quiet())
	if err := w.SendDirect(context.Background(), "5511999999999", "hi"); !errors.Is(err, channels.ErrChannelDisconnected) {
		t.Errorf("SendDirect() error = %v, want ErrChannelDisconnected", err)
	}

	if err := w.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if err := w.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-w.Receive(); ok {
		t.Error("Receive() still open after Disconnect")
	}
	// Emitting after close must not panic.
	w.emit(&channels.IncomingMessage{Content: "late"})
}

func TestConnect_FailureReleasesAttempt(t *testing.T) {
	t.Parallel()

	// A regular file where the session directory should be makes every
	// attempt fail before the store opens.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	cfg.SessionPath = filepath.Join(blocker, "session", "whatsapp.db")
	w := New(cfg, io.Discard, quiet())

	var attempts []context.Context
	for range 3 {
		if err := w.Connect(context.Background()); err == nil {
			t.Fatal("Connect() succeeded with an unusable session path")
		}
		w.mu.RLock()
		attempts = append(attempts, w.ctx)
		if w.cancel != nil || w.container != nil || w.client != nil {
			t.Errorf("failed attempt left state behind: cancel=%v container=%v client=%v",
				w.cancel != nil, w.container != nil, w.client != nil)
		}
		w.mu.RUnlock()
	}
	for i, ctx := range attempts {
		if ctx.Err() == nil {
			t.Errorf("attempt %d context still live", i)
		}
	}
	if w.IsConnected() {
		t.Error("IsConnected() after failed Connect")
	}
}
