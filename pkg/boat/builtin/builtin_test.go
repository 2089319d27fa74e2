package builtin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/jholhewres/boat/pkg/boat/channels"
	"github.com/jholhewres/boat/pkg/boat/dispatch"
	"github.com/jholhewres/boat/pkg/boat/party"
)

type replies struct {
	mu  sync.Mutex
	out []string
}

func (r *replies) SendDirect(_ context.Context, _, _, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, text)
	return nil
}

func (r *replies) SendGroup(_ context.Context, _, _, text string) error {
	return r.SendDirect(context.Background(), "", "", text)
}

func (r *replies) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.out) == 0 {
		return ""
	}
	return r.out[len(r.out)-1]
}

type fixture struct {
	router *dispatch.Router
	local  *party.Local
	out    *replies
}

func newFixture(t *testing.T, disabled ...string) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	local := party.NewLocal()
	guard := party.NewGuard(local, []string{"CID_Banned"}, logger)
	r := dispatch.NewRouter(dispatch.Options{Prefix: "!", Logger: logger})

	lookup := func(channel string) (party.Controller, bool) {
		if channel == "console" {
			return guard, true
		}
		return nil, false
	}
	if err := Register(r, Deps{Party: lookup, Logger: logger}, disabled); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return &fixture{router: r, local: local, out: &replies{}}
}

func (f *fixture) send(t *testing.T, channel, text string) string {
	t.Helper()

	msg := &channels.IncomingMessage{
		Channel: channel,
		Author:  channels.Identity{ID: "u1", Name: "alice"},
		ChatID:  "party",
		Kind:    channels.KindGroup,
		Content: text,
	}
	if err := f.router.Dispatch(context.Background(), msg, f.out); err != nil {
		t.Fatalf("Dispatch(%q) error = %v", text, err)
	}
	return f.out.last()
}

func TestBuiltins_Replies(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	tests := []struct {
		text string
		want string
	}{
		{"!ping", "pong"},
		{"!echo hello   world", "hello   world"},
		{"!whoami", "alice (u1) via console group"},
		{"!playlist Playlist_DefaultDuo", "playlist set to Playlist_DefaultDuo"},
		{"!ready ready", "readiness set to Ready"},
		{"!ready", "readiness set to SittingOut"},
		{"!ready maybe", `unknown ready state: "maybe"`},
		{"!skin CID_028 Material=2", "skin set to CID_028 (Material=2)"},
		{"!emote EID_Floss", "emote set to EID_Floss"},
		{"!cosmetic BID_004", "backpack set to BID_004"},
		{"!skin cid_banned", "cosmetic is blocklisted: cid_banned"},
		{"!skin CID_1 broken", `invalid variant: "broken" (want key=value)`},
		{"!skin", "a cosmetic id is required, e.g. CID_028_Athena_Commando_F"},
	}
	for _, tt := range tests {
		if got := f.send(t, "console", tt.text); got != tt.want {
			t.Errorf("%s -> %q, want %q", tt.text, got, tt.want)
		}
	}

	s := f.local.Snapshot()
	if s.Loadout[party.Skin].ID != "CID_028" || s.Loadout[party.Backpack].ID != "BID_004" {
		t.Errorf("loadout = %+v", s.Loadout)
	}
	if s.Readiness != party.SittingOut {
		t.Errorf("readiness = %s, want SittingOut", s.Readiness)
	}
}

func TestBuiltins_NoPartyControls(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if got, want := f.send(t, "discord", "!playlist Solo"), "party controls are not available on discord"; got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
	if got := f.local.Snapshot().Playlist; got != "" {
		t.Errorf("playlist changed to %q", got)
	}
}

func TestBuiltins_Help(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	got := f.send(t, "console", "!help")
	for _, want := range []string{"!ping - check the bot is alive", "!skin <id> [variants...]", "!ready <state>"} {
		if !strings.Contains(got, want) {
			t.Errorf("help output missing %q:\n%s", want, got)
		}
	}
}

func TestBuiltins_Disabled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "echo", "cosmetic")
	if _, ok := f.router.Lookup("!echo"); ok {
		t.Error("disabled echo was registered")
	}
	if _, ok := f.router.Lookup("!cosmetic"); ok {
		t.Error("disabled cosmetic was registered")
	}
	if got := len(f.router.Commands()); got != len(Names())-2 {
		t.Errorf("commands = %d, want %d", got, len(Names())-2)
	}
}

func TestBuiltins_ControllerFailurePropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("party service unavailable")
	r := dispatch.NewRouter(dispatch.Options{Prefix: "!", Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	lookup := func(string) (party.Controller, bool) { return failing{boom}, true }
	if err := Register(r, Deps{Party: lookup}, nil); err != nil {
		t.Fatal(err)
	}

	msg := &channels.IncomingMessage{Channel: "console", Author: channels.Identity{Name: "alice"}, Content: "!playlist Duos"}
	if err := r.Dispatch(context.Background(), msg, &replies{}); !errors.Is(err, boom) {
		t.Errorf("Dispatch() error = %v, want %v", err, boom)
	}
}

type failing struct{ err error }

func (f failing) SetPlaylist(context.Context, string) error            { return f.err }
func (f failing) SetReadiness(context.Context, party.ReadyState) error { return f.err }
func (f failing) SetCosmetic(context.Context, party.Cosmetic) error    { return f.err }
