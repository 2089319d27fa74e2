package dispatch

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// Command is a registered handler together with its compiled signature.
// Commands are immutable once created.
type Command struct {
	name        string
	prefix      string
	signature   Signature
	description string
	handler     HandlerFunc
}

func newCommand(prefix, name string, b Binding) (*Command, error) {
	if name == "" || strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	sig, err := CompileSignature(b.params...)
	if err != nil {
		return nil, fmt.Errorf("command %q: %w", name, err)
	}
	if b.handler == nil {
		return nil, fmt.Errorf("command %q: %w", name, ErrNotInvocable)
	}
	return &Command{
		name:        name,
		prefix:      prefix,
		signature:   sig,
		description: b.description,
		handler:     b.handler,
	}, nil
}

// Name is the command name without prefix.
func (c *Command) Name() string { return c.name }

// Prefix is the router prefix the command was registered under.
func (c *Command) Prefix() string { return c.prefix }

// Key is the invocation key, prefix followed by name.
func (c *Command) Key() string { return c.prefix + c.name }

// Signature returns the compiled calling convention.
func (c *Command) Signature() Signature { return c.signature }

// Description is the help text attached with Binding.Describe.
func (c *Command) Description() string { return c.description }

// Usage renders a one-line usage string, e.g. "!skin <id> [variants...]".
func (c *Command) Usage() string {
	if u := c.signature.Usage(); u != "" {
		return c.Key() + " " + u
	}
	return c.Key()
}

// Invoke strips the invocation key from msg, binds the arguments and runs
// the handler. msg content must start with the key as a whole token.
// The handler's error is returned unchanged.
func (c *Command) Invoke(ctx context.Context, msg *MessageContext) error {
	rest, ok := stripKey(msg.content, c.Key())
	if !ok {
		return fmt.Errorf("%w: %q", ErrKeyMismatch, c.Key())
	}
	msg.content = rest
	msg.args = bindArgs(c.signature, rest)
	return c.handler(ctx, msg)
}
