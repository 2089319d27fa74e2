// Package dispatch is the command registration and invocation engine.
//
// A Router owns the registry of commands keyed by prefix+name and the owner
// policy. Every inbound message goes through Router.Dispatch:
//
//	received -> prefix check -> lookup -> permission check -> invoke -> done
//
// Any gate may end the run early. Non-commands, unknown commands and denied
// senders end silently; only failures of a matched, permitted command are
// returned to the caller.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/jholhewres/boat/pkg/boat/channels"
)

// DuplicatePolicy decides what Register does with an existing key.
type DuplicatePolicy string

const (
	// RejectDuplicates fails the second registration with ErrDuplicateCommand.
	RejectDuplicates DuplicatePolicy = "reject"

	// OverwriteDuplicates replaces the earlier command and logs a warning.
	OverwriteDuplicates DuplicatePolicy = "overwrite"
)

// Options configures a Router.
type Options struct {
	// Prefix is prepended to every command name to form its key.
	Prefix string

	// Owners configures the owner gate.
	Owners OwnerConfig

	// Duplicates defaults to RejectDuplicates.
	Duplicates DuplicatePolicy

	// HandlerTimeout bounds each handler run. Zero disables the bound.
	HandlerTimeout time.Duration

	// Observers are told about every matched run.
	Observers []Observer

	Logger *slog.Logger
}

// Registration is one entry for RegisterAll.
type Registration struct {
	Name    string
	Binding Binding
}

// Router maps invocation keys to commands and runs the dispatch pipeline.
//
// Registration must finish before the first Dispatch: the router seals
// itself then and the registry is read without locks from that point on.
type Router struct {
	prefix     string
	policy     OwnerPolicy
	duplicates DuplicatePolicy
	timeout    time.Duration
	observers  []Observer
	logger     *slog.Logger

	mu       sync.Mutex
	sealed   bool
	sealOnce sync.Once
	registry map[string]*Command
}

// NewRouter creates an empty router. The prefix may be empty, in which case
// a command's key is its bare name.
func NewRouter(opts Options) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dup := opts.Duplicates
	if dup == "" {
		dup = RejectDuplicates
	}
	return &Router{
		prefix:     opts.Prefix,
		policy:     NewOwnerPolicy(opts.Owners),
		duplicates: dup,
		timeout:    opts.HandlerTimeout,
		observers:  append([]Observer(nil), opts.Observers...),
		logger:     logger.With("component", "dispatch"),
		registry:   make(map[string]*Command),
	}
}

// Prefix returns the configured command prefix.
func (r *Router) Prefix() string { return r.prefix }

// Policy returns the owner policy.
func (r *Router) Policy() OwnerPolicy { return r.policy }

// Register compiles b and stores it under prefix+name.
func (r *Router) Register(name string, b Binding) error {
	cmd, err := newCommand(r.prefix, name, b)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("register %q: %w", name, ErrRegistrySealed)
	}
	if _, exists := r.registry[cmd.Key()]; exists {
		if r.duplicates != OverwriteDuplicates {
			return fmt.Errorf("%w: %q", ErrDuplicateCommand, cmd.Key())
		}
		r.logger.Warn("command overwritten", "key", cmd.Key())
	}
	r.registry[cmd.Key()] = cmd
	r.logger.Debug("command registered", "key", cmd.Key(), "signature", cmd.Signature().String())
	return nil
}

// MustRegister is Register that panics on error. Meant for package-level
// wiring where a bad registration is a programming error.
func (r *Router) MustRegister(name string, b Binding) {
	if err := r.Register(name, b); err != nil {
		panic(err)
	}
}

// RegisterAll registers every entry and reports all failures together.
// Valid entries are registered even when others fail.
func (r *Router) RegisterAll(regs ...Registration) error {
	var result *multierror.Error
	for _, reg := range regs {
		if err := r.Register(reg.Name, reg.Binding); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Lookup returns the command registered under the invocation key.
func (r *Router) Lookup(key string) (*Command, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cmd, ok := r.registry[key]
	return cmd, ok
}

// Commands returns every registered command sorted by key.
func (r *Router) Commands() []*Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Command, 0, len(r.registry))
	for _, c := range r.registry {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Seal stops further registration. Dispatch seals implicitly.
func (r *Router) Seal() {
	r.sealOnce.Do(func() {
		r.mu.Lock()
		r.sealed = true
		n := len(r.registry)
		r.mu.Unlock()
		r.logger.Debug("registry sealed", "commands", n)
	})
}

// Dispatch runs the pipeline for one inbound message. It returns nil when
// the message is not a command attempt, names no registered command, or
// comes from a sender the owner policy denies. Failures of the invoked
// command are returned as *DispatchError.
//
// msg is not modified, so dispatching the same message twice behaves the
// same both times.
func (r *Router) Dispatch(ctx context.Context, msg *channels.IncomingMessage, via channels.Sender) error {
	r.Seal()

	mc := NewMessageContext(msg, via)

	key, _ := SplitInvocation(mc.content)
	if key == "" || !strings.HasPrefix(key, r.prefix) {
		return nil
	}

	cmd, ok := r.Lookup(key)
	if !ok {
		return nil
	}

	mc.runID = uuid.NewString()
	rec := Record{
		RunID:   mc.runID,
		Channel: mc.channel,
		ChatID:  mc.chatID,
		Kind:    mc.kind,
		Author:  mc.author,
		Command: cmd.Key(),
		Started: time.Now(),
	}

	if !r.policy.Permits(mc.author) {
		r.logger.Debug("command denied",
			"command", cmd.Key(), "sender", mc.author.String(), "channel", mc.channel)
		rec.Outcome = OutcomeDenied
		r.notify(rec)
		return nil
	}

	err := r.invoke(ctx, cmd, mc)
	rec.Duration = time.Since(rec.Started)
	rec.Outcome = OutcomeOK
	if err != nil {
		rec.Outcome = OutcomeFailed
		if errors.Is(err, ErrHandlerTimeout) {
			rec.Outcome = OutcomeTimeout
		}
		rec.Err = err
		err = &DispatchError{Command: cmd.Key(), Author: mc.author, RunID: mc.runID, Err: err}
	}
	r.notify(rec)
	return err
}

// invoke runs the command, bounded by the router timeout when one is set.
// On timeout it returns without waiting for the handler, which keeps
// running until it observes its cancelled context.
func (r *Router) invoke(ctx context.Context, cmd *Command, mc *MessageContext) error {
	if r.timeout <= 0 {
		return r.safeInvoke(ctx, cmd, mc)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.safeInvoke(ctx, cmd, mc) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		select {
		case err := <-done:
			return err
		default:
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrHandlerTimeout, r.timeout)
		}
		return ctx.Err()
	}
}

func (r *Router) safeInvoke(ctx context.Context, cmd *Command, mc *MessageContext) (err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("handler panic",
				"command", cmd.Key(), "panic", p, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, p)
		}
	}()
	return cmd.Invoke(ctx, mc)
}

func (r *Router) notify(rec Record) {
	for _, o := range r.observers {
		o.Observe(rec)
	}
}
