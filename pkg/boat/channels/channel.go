// Package channels defines the transport contract for boat. Each chat
// platform (Discord, WhatsApp, the local console) implements Channel so the
// dispatcher can receive messages and reply without knowing which platform
// a message came from.
package channels

import (
	"context"
	"errors"
	"time"
)

// Kind tells whether a message arrived in a one-to-one conversation or in a
// shared group (party, guild channel, WhatsApp group).
type Kind int

const (
	// KindDirect is a one-to-one conversation with the sender.
	KindDirect Kind = iota

	// KindGroup is a conversation shared by several members.
	KindGroup
)

// String returns "direct" or "group".
func (k Kind) String() string {
	switch k {
	case KindDirect:
		return "direct"
	case KindGroup:
		return "group"
	default:
		return "unknown"
	}
}

// Identity identifies a message author.
type Identity struct {
	// ID is the stable platform identifier (user id, JID).
	ID string

	// Name is the display name shown by the platform.
	Name string
}

// String returns the display name, falling back to the id.
func (i Identity) String() string {
	if i.Name != "" {
		return i.Name
	}
	return i.ID
}

// IncomingMessage represents a message received from any channel.
type IncomingMessage struct {
	// ID is the unique message identifier in the source channel.
	ID string

	// Channel names the source channel (e.g. "discord").
	Channel string

	// Author is the sender.
	Author Identity

	// ChatID is the group or conversation identifier. For direct
	// messages it may equal the author id.
	ChatID string

	// Kind is KindDirect or KindGroup.
	Kind Kind

	// Content is the raw text of the message.
	Content string

	// Timestamp is when the message was sent.
	Timestamp time.Time

	// Metadata carries channel-specific extras.
	Metadata map[string]any
}

// Sender is the reply capability the dispatcher consumes. Implementations
// route on the channel name so one Sender can serve every platform.
type Sender interface {
	// SendDirect sends text to a single user on the named channel.
	SendDirect(ctx context.Context, channel, to, text string) error

	// SendGroup sends text to a group conversation on the named channel.
	SendGroup(ctx context.Context, channel, groupID, text string) error
}

// Channel defines the interface that every communication channel must implement.
type Channel interface {
	// Name returns the channel identifier (e.g. "whatsapp", "discord").
	Name() string

	// Connect establishes the connection to the messaging platform.
	Connect(ctx context.Context) error

	// Disconnect gracefully closes the connection.
	Disconnect() error

	// SendDirect sends text to one user.
	SendDirect(ctx context.Context, to, text string) error

	// SendGroup sends text to a group conversation.
	SendGroup(ctx context.Context, groupID, text string) error

	// Receive returns a Go channel that emits incoming messages.
	Receive() <-chan *IncomingMessage

	// IsConnected returns true if the channel is connected.
	IsConnected() bool

	// Health returns the channel health status.
	Health() HealthStatus
}

// HealthStatus represents the health state of a channel.
type HealthStatus struct {
	Connected     bool
	LastMessageAt time.Time
	ErrorCount    int
	Details       map[string]any
}

// Errors.
var (
	ErrChannelDisconnected = errors.New("channel is not connected")
	ErrUnknownChannel      = errors.New("unknown channel")
	ErrAlreadyRegistered   = errors.New("channel already registered")
	ErrNoChannelConnected  = errors.New("no channel connected")
)
