package party

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/jholhewres/boat/pkg/boat/channels"
)

// ErrAlreadyAnswered is returned when an invite is answered twice.
var ErrAlreadyAnswered = errors.New("invite already answered")

// Invite is a pending party invitation.
type Invite struct {
	ID      string
	Channel string
	From    channels.Identity
	PartyID string

	answer   func(ctx context.Context, accept bool) error
	answered bool
}

// NewInvite creates an invite answered through fn.
func NewInvite(id, channel string, from channels.Identity, partyID string,
	fn func(ctx context.Context, accept bool) error) *Invite {
	return &Invite{ID: id, Channel: channel, From: from, PartyID: partyID, answer: fn}
}

// Accept joins the inviting party.
func (i *Invite) Accept(ctx context.Context) error { return i.respond(ctx, true) }

// Decline rejects the invite.
func (i *Invite) Decline(ctx context.Context) error { return i.respond(ctx, false) }

func (i *Invite) respond(ctx context.Context, accept bool) error {
	if i.answered {
		return ErrAlreadyAnswered
	}
	i.answered = true
	if i.answer == nil {
		return nil
	}
	return i.answer(ctx, accept)
}

// InviteSource is implemented by channels that receive party invites.
type InviteSource interface {
	Invites() <-chan *Invite
}

// InvitePolicy accepts invites only from configured names or ids.
type InvitePolicy struct {
	allowed map[string]struct{}
	logger  *slog.Logger
}

// NewInvitePolicy builds a policy. An empty list declines every invite.
func NewInvitePolicy(acceptFrom []string, logger *slog.Logger) *InvitePolicy {
	if logger == nil {
		logger = slog.Default()
	}
	p := &InvitePolicy{
		allowed: make(map[string]struct{}, len(acceptFrom)),
		logger:  logger.With("component", "invites"),
	}
	for _, a := range acceptFrom {
		if a = strings.TrimSpace(a); a != "" {
			p.allowed[a] = struct{}{}
		}
	}
	return p
}

// Allows reports whether an invite from who should be accepted.
func (p *InvitePolicy) Allows(who channels.Identity) bool {
	if _, ok := p.allowed[who.Name]; ok && who.Name != "" {
		return true
	}
	_, ok := p.allowed[who.ID]
	return ok && who.ID != ""
}

// Handle answers inv according to the policy.
func (p *InvitePolicy) Handle(ctx context.Context, inv *Invite) error {
	if p.Allows(inv.From) {
		p.logger.Info("accepting invite", "from", inv.From.String(), "party", inv.PartyID, "channel", inv.Channel)
		return inv.Accept(ctx)
	}
	p.logger.Debug("declining invite", "from", inv.From.String(), "channel", inv.Channel)
	return inv.Decline(ctx)
}

// Serve answers invites from src until ctx ends or src closes.
func (p *InvitePolicy) Serve(ctx context.Context, src InviteSource) {
	in := src.Invites()
	for {
		select {
		case <-ctx.Done():
			return
		case inv, ok := <-in:
			if !ok {
				return
			}
			if err := p.Handle(ctx, inv); err != nil {
				p.logger.Warn("answering invite failed", "from", inv.From.String(), "error", err)
			}
		}
	}
}
