// Package console implements a local terminal channel on top of readline.
//
// Every line typed is delivered as a message from the current identity.
// Lines starting with ':' are meta commands that change who is speaking,
// switch between the direct and group chat, or simulate a party invite:
//
//	:as <name>       speak as another user
//	:group / :dm     switch chat kind
//	:invite <name>   receive a party invite from name
//	:party           show the simulated party state
//
// The console drives an in-memory party.Local, so party commands can be
// tried without a game connection.
package console

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chzyer/readline"
	"github.com/google/uuid"

	"github.com/jholhewres/boat/pkg/boat/channels"
	"github.com/jholhewres/boat/pkg/boat/party"
)

// GroupChatID is the chat id of the simulated group.
const GroupChatID = "party"

// Config holds console channel configuration.
type Config struct {
	// Name is the display name typed lines are sent as.
	Name string `yaml:"name" toml:"name" env:"NAME"`

	// Prompt is shown before each line.
	Prompt string `yaml:"prompt" toml:"prompt" env:"PROMPT"`

	// HistoryFile keeps line history between runs. Empty disables it.
	HistoryFile string `yaml:"history_file" toml:"history_file" env:"HISTORY_FILE"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{Name: "owner", Prompt: "boat> "}
}

// Console implements channels.Channel, party.Provider and party.InviteSource.
type Console struct {
	cfg    Config
	logger *slog.Logger
	in     io.ReadCloser
	out    io.Writer

	rl    *readline.Instance
	party *party.Local

	messages chan *channels.IncomingMessage
	invites  chan *party.Invite
	closed   bool

	// speaker state changed by meta lines.
	as    string
	group bool

	connected atomic.Bool
	lastMsg   atomic.Value // time.Time

	outMu sync.Mutex
	mu    sync.RWMutex
}

// New creates a console channel reading in and writing to out. Nil values
// mean stdin and stdout.
func New(cfg Config, in io.ReadCloser, out io.Writer, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	def := DefaultConfig()
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = def.Name
	}
	if cfg.Prompt == "" {
		cfg.Prompt = def.Prompt
	}
	return &Console{
		cfg:      cfg,
		logger:   logger.With("component", "console"),
		in:       in,
		out:      out,
		party:    party.NewLocal(),
		messages: make(chan *channels.IncomingMessage, 64),
		invites:  make(chan *party.Invite, 16),
		as:       cfg.Name,
	}
}

// Name returns "console".
func (c *Console) Name() string { return "console" }

// Connect starts reading lines.
func (c *Console) Connect(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          c.cfg.Prompt,
		HistoryFile:     c.cfg.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdin:           c.in,
		Stdout:          c.out,
	})
	if err != nil {
		return fmt.Errorf("console: starting readline: %w", err)
	}

	c.mu.Lock()
	c.rl = rl
	c.mu.Unlock()
	c.connected.Store(true)

	go c.readLoop(ctx, rl)
	return nil
}

func (c *Console) readLoop(ctx context.Context, rl *readline.Instance) {
	defer c.connected.Store(false)
	for ctx.Err() == nil {
		line, err := rl.Readline()
		if err != nil {
			if err != readline.ErrInterrupt && err != io.EOF {
				c.logger.Warn("console: read failed", "error", err)
			}
			return
		}
		c.handleLine(ctx, line)
	}
}

// handleLine turns one typed line into a message or runs a meta command.
func (c *Console) handleLine(ctx context.Context, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if strings.HasPrefix(line, ":") {
		c.meta(ctx, line)
		return
	}

	c.mu.RLock()
	who, group := c.as, c.group
	c.mu.RUnlock()

	msg := &channels.IncomingMessage{
		ID:        uuid.NewString(),
		Channel:   "console",
		Author:    channels.Identity{ID: who, Name: who},
		ChatID:    who,
		Kind:      channels.KindDirect,
		Content:   line,
		Timestamp: time.Now(),
	}
	if group {
		msg.ChatID = GroupChatID
		msg.Kind = channels.KindGroup
	}
	c.emit(msg)
}

func (c *Console) meta(ctx context.Context, line string) {
	verb, arg, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
	arg = strings.TrimSpace(arg)

	switch verb {
	case "as":
		if arg == "" {
			c.printf("usage: :as <name>\n")
			return
		}
		c.mu.Lock()
		c.as = arg
		c.mu.Unlock()
		c.printf("now speaking as %s\n", arg)
	case "group":
		c.setGroup(true)
		c.printf("now in the group chat\n")
	case "dm":
		c.setGroup(false)
		c.printf("now in a direct chat\n")
	case "invite":
		if arg == "" {
			c.printf("usage: :invite <name>\n")
			return
		}
		c.invite(arg)
	case "party":
		c.printParty()
	case "help":
		c.printf(":as <name>  :group  :dm  :invite <name>  :party  :help\n")
	default:
		c.printf("unknown meta command %q, try :help\n", verb)
	}
}

func (c *Console) setGroup(v bool) {
	c.mu.Lock()
	c.group = v
	c.mu.Unlock()
}

func (c *Console) invite(from string) {
	partyID := uuid.NewString()[:8]
	inv := party.NewInvite(uuid.NewString(), "console", channels.Identity{ID: from, Name: from}, partyID,
		func(_ context.Context, accept bool) error {
			if accept {
				c.printf("joined %s's party %s\n", from, partyID)
			} else {
				c.printf("declined invite from %s\n", from)
			}
			return nil
		})

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.invites <- inv:
	default:
		c.logger.Warn("console: invite buffer full, dropping invite", "from", from)
	}
}

func (c *Console) printParty() {
	s := c.party.Snapshot()
	playlist := s.Playlist
	if playlist == "" {
		playlist = "(default)"
	}
	c.printf("playlist: %s\nreadiness: %s\n", playlist, s.Readiness)

	for _, k := range party.CosmeticKinds {
		item, ok := s.Loadout[k]
		if !ok {
			continue
		}
		if len(item.Variants) > 0 {
			c.printf("%s: %s (%s)\n", k, item.ID, item.Variants)
		} else {
			c.printf("%s: %s\n", k, item.ID)
		}
	}
}

func (c *Console) emit(msg *channels.IncomingMessage) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	c.lastMsg.Store(time.Now())
	select {
	case c.messages <- msg:
	default:
		c.logger.Warn("console: message buffer full, dropping message")
	}
}

func (c *Console) printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()

	c.mu.RLock()
	var w io.Writer = c.out
	if c.rl != nil {
		w = c.rl.Stdout()
	}
	c.mu.RUnlock()
	fmt.Fprintf(w, format, args...)
}

// Disconnect stops reading and closes the message and invite streams.
func (c *Console) Disconnect() error {
	c.connected.Store(false)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.rl != nil {
		_ = c.rl.Close()
	}
	close(c.messages)
	close(c.invites)
	return nil
}

// SendDirect prints a direct reply.
func (c *Console) SendDirect(_ context.Context, to, text string) error {
	if c.isClosed() {
		return channels.ErrChannelDisconnected
	}
	c.printf("[dm -> %s] %s\n", to, text)
	return nil
}

// SendGroup prints a reply to the group.
func (c *Console) SendGroup(_ context.Context, groupID, text string) error {
	if c.isClosed() {
		return channels.ErrChannelDisconnected
	}
	c.printf("[%s] %s\n", groupID, text)
	return nil
}

func (c *Console) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Receive returns the incoming message stream.
func (c *Console) Receive() <-chan *channels.IncomingMessage { return c.messages }

// IsConnected reports whether lines are being read.
func (c *Console) IsConnected() bool { return c.connected.Load() }

// Health returns the channel health status.
func (c *Console) Health() channels.HealthStatus {
	var lastAt time.Time
	if v := c.lastMsg.Load(); v != nil {
		lastAt = v.(time.Time)
	}
	return channels.HealthStatus{Connected: c.connected.Load(), LastMessageAt: lastAt}
}

// Party returns the simulated party.
func (c *Console) Party() party.Controller { return c.party }

// State returns a snapshot of the simulated party.
func (c *Console) State() party.State { return c.party.Snapshot() }

// Invites returns the simulated invite stream.
func (c *Console) Invites() <-chan *party.Invite { return c.invites }

var (
	_ channels.Channel   = (*Console)(nil)
	_ party.Provider     = (*Console)(nil)
	_ party.InviteSource = (*Console)(nil)
)
