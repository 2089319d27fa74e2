package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jholhewres/boat/pkg/boat/audit"
	"github.com/jholhewres/boat/pkg/boat/builtin"
	"github.com/jholhewres/boat/pkg/boat/channels"
	"github.com/jholhewres/boat/pkg/boat/channels/console"
	"github.com/jholhewres/boat/pkg/boat/channels/discord"
	"github.com/jholhewres/boat/pkg/boat/channels/whatsapp"
	"github.com/jholhewres/boat/pkg/boat/dispatch"
	"github.com/jholhewres/boat/pkg/boat/party"
	"github.com/jholhewres/boat/pkg/boat/scheduler"
)

// Options carries what New needs besides the configuration.
type Options struct {
	// Channels replaces the channels built from cfg.Channels.Enabled.
	Channels []channels.Channel

	// Register adds commands after the built-ins.
	Register func(r *dispatch.Router) error

	// Terminal streams for the console channel and the WhatsApp pairing
	// code. Nil means stdin and stdout.
	In  io.ReadCloser
	Out io.Writer

	Logger *slog.Logger
}

// Bot is a configured, not yet running bot.
type Bot struct {
	cfg    *Config
	logger *slog.Logger

	router  *dispatch.Router
	manager *channels.Manager
	journal *audit.Journal
	sched   *scheduler.Scheduler
	invites *party.InvitePolicy

	chans  []channels.Channel
	guards map[string]*party.Guard
}

// New builds every component. Command registration errors are returned
// here, before any channel connects.
func New(cfg *Config, opts Options) (*Bot, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b := &Bot{
		cfg:     cfg,
		logger:  logger.With("component", "bot"),
		manager: channels.NewManager(channels.DefaultConnectPolicy(), logger),
		invites: party.NewInvitePolicy(cfg.Party.AcceptInvitesFrom, logger),
		guards:  make(map[string]*party.Guard),
	}

	b.chans = opts.Channels
	if b.chans == nil {
		b.chans = buildChannels(cfg, opts, logger)
	}
	for _, ch := range b.chans {
		if err := b.manager.Register(ch); err != nil {
			return nil, err
		}
		if p, ok := ch.(party.Provider); ok {
			b.guards[ch.Name()] = party.NewGuard(p.Party(), cfg.Party.Blocklist, logger)
		}
	}

	var observers []dispatch.Observer
	if cfg.Audit.Enabled {
		j, err := audit.Open(audit.Options{
			Path:        cfg.Audit.Path,
			HashSenders: cfg.Audit.HashSenders,
			Retention:   cfg.Audit.Retention.Std(),
			Logger:      logger,
		})
		if err != nil {
			return nil, fmt.Errorf("opening dispatch journal: %w", err)
		}
		b.journal = j
		observers = append(observers, j)
	}

	router, err := NewRouter(cfg, b.partyFor, logger, observers...)
	if err != nil {
		b.Close()
		return nil, err
	}
	if opts.Register != nil {
		if err := opts.Register(router); err != nil {
			b.Close()
			return nil, fmt.Errorf("registering commands: %w", err)
		}
	}
	b.router = router

	if cfg.Scheduler.Enabled {
		s, err := scheduler.New(cfg.Scheduler.Jobs, b.manager, logger)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("creating scheduler: %w", err)
		}
		b.sched = s
	}
	return b, nil
}

// NewRouter builds the router for cfg and registers the built-in commands.
func NewRouter(cfg *Config, lookup builtin.PartyLookup, logger *slog.Logger, observers ...dispatch.Observer) (*dispatch.Router, error) {
	router := dispatch.NewRouter(dispatch.Options{
		Prefix:         cfg.Prefix,
		Owners:         cfg.Owner,
		Duplicates:     cfg.Commands.Duplicates,
		HandlerTimeout: cfg.Commands.Timeout.Std(),
		Observers:      observers,
		Logger:         logger,
	})
	if err := builtin.Register(router, builtin.Deps{Party: lookup, Logger: logger}, cfg.Commands.Disabled); err != nil {
		return nil, fmt.Errorf("registering built-in commands: %w", err)
	}
	return router, nil
}

func buildChannels(cfg *Config, opts Options, logger *slog.Logger) []channels.Channel {
	var out []channels.Channel
	for _, name := range cfg.Channels.Enabled {
		switch name {
		case ChannelConsole:
			cc := cfg.Channels.Console
			if cc.Name == "" && cfg.Owner.Enabled && len(cfg.Owner.Owners) > 0 {
				cc.Name = cfg.Owner.Owners[0]
			}
			out = append(out, console.New(cc, opts.In, opts.Out, logger))
		case ChannelDiscord:
			out = append(out, discord.New(cfg.Channels.Discord, logger))
		case ChannelWhatsApp:
			out = append(out, whatsapp.New(cfg.Channels.WhatsApp, opts.Out, logger))
		}
	}
	return out
}

// partyFor returns the guarded party controller of a channel.
func (b *Bot) partyFor(channel string) (party.Controller, bool) {
	g, ok := b.guards[channel]
	if !ok {
		return nil, false
	}
	return g, true
}

// Router returns the command router.
func (b *Bot) Router() *dispatch.Router { return b.router }

// Manager returns the channel manager.
func (b *Bot) Manager() *channels.Manager { return b.manager }

// Scheduler returns the scheduler, or nil when it is disabled.
func (b *Bot) Scheduler() *scheduler.Scheduler { return b.sched }

// Journal returns the dispatch journal, or nil when it is disabled.
func (b *Bot) Journal() *audit.Journal { return b.journal }

// Run connects the channels and dispatches messages until ctx is done.
// Failures of single messages are logged and never stop the loop.
func (b *Bot) Run(ctx context.Context) error {
	if p := b.router.Policy(); p.DeniesAll() {
		b.logger.Warn("owner mode is enabled with no owners, every command will be ignored")
	} else if p.Enabled() {
		b.logger.Info("owner mode enabled", "owners", p.Size())
	}

	b.router.Seal()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := b.manager.Start(ctx); err != nil {
		return err
	}
	defer b.manager.Stop()

	var bg sync.WaitGroup
	for _, ch := range b.chans {
		src, ok := ch.(party.InviteSource)
		if !ok {
			continue
		}
		bg.Add(1)
		go func() {
			defer bg.Done()
			b.invites.Serve(ctx, src)
		}()
	}
	defer bg.Wait()
	defer cancel()

	if b.sched != nil {
		if err := b.sched.Start(ctx); err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}
		defer b.sched.Stop()
	}

	b.logger.Info("bot running", "prefix", b.router.Prefix(), "commands", len(b.router.Commands()),
		"channels", b.manager.Names())

	limit := b.cfg.Commands.Concurrency
	if limit < 1 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)

	msgs := b.manager.Messages()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case msg, ok := <-msgs:
			if !ok {
				break loop
			}
			g.Go(func() error {
				b.handle(ctx, msg)
				return nil
			})
		}
	}

	_ = g.Wait()
	b.logger.Info("bot stopped")
	return nil
}

func (b *Bot) handle(ctx context.Context, msg *channels.IncomingMessage) {
	err := b.router.Dispatch(ctx, msg, b.manager)
	if err == nil {
		return
	}
	var de *dispatch.DispatchError
	if errors.As(err, &de) {
		b.logger.Warn("command failed",
			"command", de.Command,
			"author", de.Author.String(),
			"channel", msg.Channel,
			"run_id", de.RunID,
			"error", de.Err,
		)
		return
	}
	b.logger.Warn("dispatch failed", "channel", msg.Channel, "error", err)
}

// Close releases the journal. Run must have returned.
func (b *Bot) Close() error {
	if b.journal != nil {
		return b.journal.Close()
	}
	return nil
}
