// Package builtin provides the commands every boat instance ships with.
package builtin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/jholhewres/boat/pkg/boat/dispatch"
	"github.com/jholhewres/boat/pkg/boat/party"
)

// PartyLookup returns the party controller of a channel, if it has one.
type PartyLookup func(channel string) (party.Controller, bool)

// Deps are the collaborators the built-in commands need.
type Deps struct {
	// Party resolves the controller for the channel a message came from.
	// Nil means no channel has party controls.
	Party PartyLookup

	Logger *slog.Logger
}

// Names lists the built-in command names.
func Names() []string {
	return []string{"help", "ping", "echo", "whoami", "playlist", "ready", "skin", "emote", "backpack", "cosmetic"}
}

// Register adds every built-in command to r, skipping names in disabled.
func Register(r *dispatch.Router, deps Deps, disabled []string) error {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	c := &commands{router: r, party: deps.Party, logger: deps.Logger.With("component", "builtin")}

	var regs []dispatch.Registration
	for _, reg := range c.registrations() {
		if slices.Contains(disabled, reg.Name) {
			c.logger.Debug("builtin command disabled", "name", reg.Name)
			continue
		}
		regs = append(regs, reg)
	}
	return r.RegisterAll(regs...)
}

type commands struct {
	router *dispatch.Router
	party  PartyLookup
	logger *slog.Logger
}

func (c *commands) registrations() []dispatch.Registration {
	return []dispatch.Registration{
		{Name: "help", Binding: dispatch.ContextOnly(c.help).Describe("list commands")},
		{Name: "ping", Binding: dispatch.ContextOnly(c.ping).Describe("check the bot is alive")},
		{Name: "echo", Binding: dispatch.WithRemainder(c.echo).Describe("repeat the text back")},
		{Name: "whoami", Binding: dispatch.ContextOnly(c.whoami).Describe("show how the bot sees you")},
		{Name: "playlist", Binding: dispatch.Declare(c.playlist, "ctx", dispatch.SwitchMarker, "playlist").Describe("set the party playlist")},
		{Name: "ready", Binding: dispatch.Declare(c.ready, "ctx", "state").Describe("set readiness: ready, not_ready or sitting_out")},
		{Name: "skin", Binding: cosmeticBinding(c.equip(party.Skin)).Describe("equip a skin")},
		{Name: "emote", Binding: cosmeticBinding(c.equip(party.Emote)).Describe("play an emote")},
		{Name: "backpack", Binding: cosmeticBinding(c.equip(party.Backpack)).Describe("equip a backpack")},
		{Name: "cosmetic", Binding: cosmeticBinding(c.equip("")).Describe("equip any cosmetic, slot detected from the id")},
	}
}

func cosmeticBinding(h dispatch.HandlerFunc) dispatch.Binding {
	return dispatch.Declare(h, "ctx", "id", dispatch.SwitchMarker, "variants")
}

func (c *commands) help(ctx context.Context, msg *dispatch.MessageContext) error {
	var b strings.Builder
	for i, cmd := range c.router.Commands() {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(cmd.Usage())
		if d := cmd.Description(); d != "" {
			b.WriteString(" - ")
			b.WriteString(d)
		}
	}
	return msg.Reply(ctx, b.String())
}

func (c *commands) ping(ctx context.Context, msg *dispatch.MessageContext) error {
	return msg.Reply(ctx, "pong")
}

func (c *commands) echo(ctx context.Context, msg *dispatch.MessageContext) error {
	if msg.Rest() == "" {
		return nil
	}
	return msg.Reply(ctx, msg.Rest())
}

func (c *commands) whoami(ctx context.Context, msg *dispatch.MessageContext) error {
	a := msg.Author()
	return msg.Reply(ctx, fmt.Sprintf("%s (%s) via %s %s", a.Name, a.ID, msg.Channel(), msg.Kind()))
}

func (c *commands) playlist(ctx context.Context, msg *dispatch.MessageContext) error {
	ctl, err := c.controller(ctx, msg)
	if ctl == nil {
		return err
	}
	name := strings.TrimSpace(msg.Rest())
	if err := ctl.SetPlaylist(ctx, name); err != nil {
		return c.userError(ctx, msg, err)
	}
	return msg.Reply(ctx, "playlist set to "+name)
}

func (c *commands) ready(ctx context.Context, msg *dispatch.MessageContext) error {
	ctl, err := c.controller(ctx, msg)
	if ctl == nil {
		return err
	}
	state, err := party.ParseReadyState(msg.Arg(0))
	if err != nil {
		return c.userError(ctx, msg, err)
	}
	if err := ctl.SetReadiness(ctx, state); err != nil {
		return c.userError(ctx, msg, err)
	}
	return msg.Reply(ctx, "readiness set to "+string(state))
}

// equip returns a handler for one cosmetic slot. An empty kind detects the
// slot from the id.
func (c *commands) equip(kind party.CosmeticKind) dispatch.HandlerFunc {
	return func(ctx context.Context, msg *dispatch.MessageContext) error {
		ctl, err := c.controller(ctx, msg)
		if ctl == nil {
			return err
		}
		id := msg.Arg(0)
		if id == "" {
			return msg.Reply(ctx, "a cosmetic id is required, e.g. CID_028_Athena_Commando_F")
		}
		variants, err := party.ParseVariants(msg.Rest())
		if err != nil {
			return c.userError(ctx, msg, err)
		}
		k := kind
		if k == "" {
			k = party.KindOf(id)
		}
		if err := ctl.SetCosmetic(ctx, party.Cosmetic{Kind: k, ID: id, Variants: variants}); err != nil {
			return c.userError(ctx, msg, err)
		}
		reply := k.String() + " set to " + id
		if len(variants) > 0 {
			reply += " (" + variants.String() + ")"
		}
		return msg.Reply(ctx, reply)
	}
}

// controller resolves the party controller for msg. When there is none it
// replies to the sender and returns a nil controller with the reply error.
func (c *commands) controller(ctx context.Context, msg *dispatch.MessageContext) (party.Controller, error) {
	if c.party != nil {
		if ctl, ok := c.party(msg.Channel()); ok && ctl != nil {
			return ctl, nil
		}
	}
	return nil, msg.Reply(ctx, "party controls are not available on "+msg.Channel())
}

// userError answers mistakes the sender can fix and returns anything else.
func (c *commands) userError(ctx context.Context, msg *dispatch.MessageContext, err error) error {
	switch {
	case errors.Is(err, party.ErrBlocked),
		errors.Is(err, party.ErrEmptyPlaylist),
		errors.Is(err, party.ErrEmptyCosmetic),
		errors.Is(err, party.ErrInvalidVariant),
		errors.Is(err, party.ErrUnknownReadyState):
		c.logger.Debug("rejected party request", "sender", msg.Author().String(), "error", err)
		return msg.Reply(ctx, err.Error())
	default:
		return err
	}
}
