package dispatch

import (
	"context"
	"fmt"
	"slices"
)

// HandlerFunc is the body of a command. The message context is its only
// explicit argument; positional and remainder values are read from
// msg.Args() according to the command's signature.
type HandlerFunc func(ctx context.Context, msg *MessageContext) error

// Binding pairs a handler with its declared parameter list. Build one with
// ContextOnly, WithPositional, WithRemainder, WithPositionalRemainder or
// Declare; the list is compiled when the binding is registered.
type Binding struct {
	handler     HandlerFunc
	params      []string
	description string
}

// Declare binds h to an explicit parameter list, e.g.
// Declare(h, "ctx", "id", "*", "variants").
func Declare(h HandlerFunc, params ...string) Binding {
	return Binding{handler: h, params: slices.Clone(params)}
}

// ContextOnly binds a handler that takes no arguments.
func ContextOnly(h HandlerFunc) Binding {
	return Declare(h, "ctx")
}

// WithPositional binds a handler taking n whitespace-delimited arguments,
// named arg1..argN.
func WithPositional(n int, h HandlerFunc) Binding {
	return Declare(h, positionalParams(n)...)
}

// WithRemainder binds a handler taking the whole argument text as "rest".
func WithRemainder(h HandlerFunc) Binding {
	return Declare(h, "ctx", SwitchMarker, "rest")
}

// WithPositionalRemainder binds a handler taking n positional arguments
// followed by the remaining text as "rest".
func WithPositionalRemainder(n int, h HandlerFunc) Binding {
	return Declare(h, append(positionalParams(n), SwitchMarker, "rest")...)
}

func positionalParams(n int) []string {
	params := []string{"ctx"}
	for i := 1; i <= n; i++ {
		params = append(params, fmt.Sprintf("arg%d", i))
	}
	return params
}

// Describe returns a copy of b carrying a one-line help text.
func (b Binding) Describe(text string) Binding {
	b.description = text
	return b
}

// Params returns the declared parameter list.
func (b Binding) Params() []string { return slices.Clone(b.params) }
