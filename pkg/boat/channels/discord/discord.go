// Package discord implements the Discord channel using discordgo.
//
// Direct messages arrive as channels.KindDirect, guild text channels as
// channels.KindGroup. Replies longer than Discord's 2000 character limit are
// split on line boundaries where possible.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jholhewres/boat/pkg/boat/channels"
)

// maxMessageLen is Discord's per-message character limit.
const maxMessageLen = 2000

// Config holds Discord channel configuration.
type Config struct {
	// Token is the bot token. Prefer the keyring or BOAT_DISCORD_TOKEN.
	Token string `yaml:"token" toml:"token" env:"TOKEN"`

	// AllowedGuilds restricts which guild ids the bot listens in.
	// Empty means every guild.
	AllowedGuilds []string `yaml:"allowed_guilds" toml:"allowed_guilds" env:"ALLOWED_GUILDS" envSeparator:","`

	// AllowedChannels restricts which channel ids the bot listens in.
	// Empty means every channel.
	AllowedChannels []string `yaml:"allowed_channels" toml:"allowed_channels" env:"ALLOWED_CHANNELS" envSeparator:","`
}

// Discord implements channels.Channel.
type Discord struct {
	cfg     Config
	logger  *slog.Logger
	session *discordgo.Session
	open    func(*discordgo.Session) error

	messages chan *channels.IncomingMessage

	connected  atomic.Bool
	lastMsg    atomic.Value // time.Time
	errorCount atomic.Int64

	// dmChannels caches user id to DM channel id.
	dmChannels sync.Map

	mu sync.RWMutex
}

// New creates a Discord channel.
func New(cfg Config, logger *slog.Logger) *Discord {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discord{
		cfg:      cfg,
		logger:   logger.With("component", "discord"),
		open:     (*discordgo.Session).Open,
		messages: make(chan *channels.IncomingMessage, 256),
	}
}

// Name returns "discord".
func (d *Discord) Name() string { return "discord" }

// Connect opens the gateway connection.
func (d *Discord) Connect(_ context.Context) error {
	if d.cfg.Token == "" {
		return fmt.Errorf("discord: bot token is required")
	}

	session, err := discordgo.New("Bot " + d.cfg.Token)
	if err != nil {
		return fmt.Errorf("discord: creating session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent
	session.AddHandler(d.onMessageCreate)

	if err := d.open(session); err != nil {
		if cerr := session.Close(); cerr != nil {
			d.logger.Debug("discord: closing failed session", "error", cerr)
		}
		return fmt.Errorf("discord: opening gateway: %w", err)
	}

	d.mu.Lock()
	d.session = session
	d.mu.Unlock()
	d.connected.Store(true)

	if user := session.State.User; user != nil {
		d.logger.Info("discord: connected", "bot", user.Username, "id", user.ID)
	}
	return nil
}

// Disconnect closes the gateway connection.
func (d *Discord) Disconnect() error {
	d.mu.Lock()
	session := d.session
	d.session = nil
	d.mu.Unlock()

	d.connected.Store(false)
	if session != nil {
		if err := session.Close(); err != nil {
			return fmt.Errorf("discord: closing gateway: %w", err)
		}
	}
	d.logger.Info("discord: disconnected")
	return nil
}

func (d *Discord) currentSession() (*discordgo.Session, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.session == nil {
		return nil, channels.ErrChannelDisconnected
	}
	return d.session, nil
}

// SendDirect sends a DM to a user id, opening the DM channel on first use.
func (d *Discord) SendDirect(ctx context.Context, to, text string) error {
	s, err := d.currentSession()
	if err != nil {
		return err
	}
	channelID, ok := d.dmChannels.Load(to)
	if !ok {
		ch, err := s.UserChannelCreate(to, discordgo.WithContext(ctx))
		if err != nil {
			d.errorCount.Add(1)
			return fmt.Errorf("discord: opening DM with %s: %w", to, err)
		}
		channelID = ch.ID
		d.dmChannels.Store(to, ch.ID)
	}
	return d.send(ctx, s, channelID.(string), text)
}

// SendGroup sends to a guild text channel id.
func (d *Discord) SendGroup(ctx context.Context, groupID, text string) error {
	s, err := d.currentSession()
	if err != nil {
		return err
	}
	return d.send(ctx, s, groupID, text)
}

func (d *Discord) send(ctx context.Context, s *discordgo.Session, channelID, text string) error {
	for _, chunk := range splitMessage(text, maxMessageLen) {
		if _, err := s.ChannelMessageSend(channelID, chunk, discordgo.WithContext(ctx)); err != nil {
			d.errorCount.Add(1)
			return fmt.Errorf("discord: send to %s: %w", channelID, err)
		}
	}
	return nil
}

// Receive returns the incoming message stream.
func (d *Discord) Receive() <-chan *channels.IncomingMessage { return d.messages }

// IsConnected reports the gateway state.
func (d *Discord) IsConnected() bool { return d.connected.Load() }

// Health returns the channel health status.
func (d *Discord) Health() channels.HealthStatus {
	var lastAt time.Time
	if v := d.lastMsg.Load(); v != nil {
		lastAt = v.(time.Time)
	}
	return channels.HealthStatus{
		Connected:     d.connected.Load(),
		LastMessageAt: lastAt,
		ErrorCount:    int(d.errorCount.Load()),
	}
}

func (d *Discord) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	selfID := ""
	if s.State != nil && s.State.User != nil {
		selfID = s.State.User.ID
	}
	incoming := d.convert(m, selfID)
	if incoming == nil {
		return
	}

	d.lastMsg.Store(time.Now())

	select {
	case d.messages <- incoming:
	default:
		d.logger.Warn("discord: message buffer full, dropping message", "msg_id", incoming.ID)
	}
}

// convert maps a gateway event to an IncomingMessage. It returns nil for
// messages the bot must ignore: its own, other bots', and those outside
// the allowed guilds or channels.
func (d *Discord) convert(m *discordgo.MessageCreate, selfID string) *channels.IncomingMessage {
	if m.Message == nil || m.Author == nil {
		return nil
	}
	if m.Author.ID == selfID || m.Author.Bot {
		return nil
	}
	if len(d.cfg.AllowedGuilds) > 0 && m.GuildID != "" && !slices.Contains(d.cfg.AllowedGuilds, m.GuildID) {
		return nil
	}
	if len(d.cfg.AllowedChannels) > 0 && !slices.Contains(d.cfg.AllowedChannels, m.ChannelID) {
		return nil
	}

	kind := channels.KindDirect
	if m.GuildID != "" {
		kind = channels.KindGroup
	}

	name := m.Author.Username
	if m.Author.GlobalName != "" {
		name = m.Author.GlobalName
	}
	if m.Member != nil && m.Member.Nick != "" {
		name = m.Member.Nick
	}

	incoming := &channels.IncomingMessage{
		ID:        m.ID,
		Channel:   "discord",
		Author:    channels.Identity{ID: m.Author.ID, Name: name},
		ChatID:    m.ChannelID,
		Kind:      kind,
		Content:   m.Content,
		Timestamp: m.Timestamp,
		Metadata:  map[string]any{"username": m.Author.Username},
	}
	if m.GuildID != "" {
		incoming.Metadata["guild_id"] = m.GuildID
	}
	return incoming
}

// splitMessage splits text into chunks of at most maxLen bytes, preferring
// to cut after a newline in the second half of a chunk.
func splitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}
	var chunks []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			chunks = append(chunks, text)
			break
		}
		cutAt := maxLen
		if idx := strings.LastIndex(text[:maxLen], "\n"); idx > maxLen/2 {
			cutAt = idx + 1
		}
		chunks = append(chunks, text[:cutAt])
		text = text[cutAt:]
	}
	return chunks
}

var _ channels.Channel = (*Discord)(nil)
