package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/jholhewres/boat/pkg/boat/channels"
)

// errNoSender is returned by Reply on a context built without a transport.
var errNoSender = errors.New("message context has no sender")

// MessageContext is the uniform view of one inbound message handed to a
// command handler. It is built per message and dropped when dispatch returns.
type MessageContext struct {
	msgID     string
	channel   string
	author    channels.Identity
	chatID    string
	kind      channels.Kind
	content   string
	timestamp time.Time
	metadata  map[string]any

	args  Args
	runID string
	via   channels.Sender
}

// NewMessageContext wraps msg. Content is copied as received; msg itself is
// never modified.
func NewMessageContext(msg *channels.IncomingMessage, via channels.Sender) *MessageContext {
	return &MessageContext{
		msgID:     msg.ID,
		channel:   msg.Channel,
		author:    msg.Author,
		chatID:    msg.ChatID,
		kind:      msg.Kind,
		content:   msg.Content,
		timestamp: msg.Timestamp,
		metadata:  msg.Metadata,
		via:       via,
	}
}

// ID is the transport message id.
func (m *MessageContext) ID() string { return m.msgID }

// Channel is the name of the channel the message arrived on.
func (m *MessageContext) Channel() string { return m.channel }

// Author identifies the sender.
func (m *MessageContext) Author() channels.Identity { return m.author }

// ChatID is the conversation the message belongs to.
func (m *MessageContext) ChatID() string { return m.chatID }

// Kind is direct or group.
func (m *MessageContext) Kind() channels.Kind { return m.kind }

// Timestamp is when the transport received the message.
func (m *MessageContext) Timestamp() time.Time { return m.timestamp }

// Content is the message text. Inside a handler it holds only the argument
// text; the prefix and command name have been removed.
func (m *MessageContext) Content() string { return m.content }

// Args returns the arguments bound to the command signature.
func (m *MessageContext) Args() Args { return m.args }

// Arg is shorthand for Args().Get(i).
func (m *MessageContext) Arg(i int) string { return m.args.Get(i) }

// Rest is shorthand for Args().Rest().
func (m *MessageContext) Rest() string { return m.args.Rest() }

// RunID identifies this dispatch run in logs and the journal.
func (m *MessageContext) RunID() string { return m.runID }

// Metadata returns a transport-specific value attached to the message.
func (m *MessageContext) Metadata(key string) (any, bool) {
	v, ok := m.metadata[key]
	return v, ok
}

// Reply answers in the conversation the message came from: a direct
// message goes back to the author, a group message to the group. Transport
// errors are returned as is.
func (m *MessageContext) Reply(ctx context.Context, text string) error {
	if m.via == nil {
		return errNoSender
	}
	if m.kind == channels.KindDirect {
		return m.via.SendDirect(ctx, m.channel, m.author.ID, text)
	}
	return m.via.SendGroup(ctx, m.channel, m.chatID, text)
}
