package dispatch

import (
	"errors"
	"fmt"

	"github.com/jholhewres/boat/pkg/boat/channels"
)

// Registration errors.
var (
	// ErrInvalidParameters reports a declared parameter list that cannot be
	// compiled into a signature.
	ErrInvalidParameters = errors.New("invalid handler parameters")

	// ErrDuplicateCommand reports a second registration for the same key.
	ErrDuplicateCommand = errors.New("duplicate command")

	// ErrNotInvocable reports a binding without a handler.
	ErrNotInvocable = errors.New("handler is not invocable")

	// ErrInvalidName reports a command name that could never be matched.
	ErrInvalidName = errors.New("invalid command name")

	// ErrRegistrySealed reports a registration after dispatch started.
	ErrRegistrySealed = errors.New("registry is sealed")
)

// Invocation errors.
var (
	// ErrKeyMismatch reports an Invoke call whose content does not start
	// with the command's invocation key.
	ErrKeyMismatch = errors.New("content does not start with command key")

	// ErrHandlerTimeout reports a handler that outlived the router timeout.
	ErrHandlerTimeout = errors.New("handler timed out")

	// ErrHandlerPanic reports a recovered handler panic.
	ErrHandlerPanic = errors.New("handler panicked")
)

// DispatchError wraps any failure raised while invoking a matched command,
// whether it came from the handler itself or from the transport during a reply.
type DispatchError struct {
	Command string
	Author  channels.Identity
	RunID   string
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s for %s: %v", e.Command, e.Author, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }
