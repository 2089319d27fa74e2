package dispatch

import (
	"fmt"
	"slices"
	"strings"
)

// BindingKind classifies one declared handler parameter.
type BindingKind int

const (
	// BindContext is the message context slot. It is always first and
	// never consumes text.
	BindContext BindingKind = iota

	// BindPositional receives one whitespace-delimited token.
	BindPositional

	// BindRemainder receives all text left after the positional tokens.
	BindRemainder
)

func (k BindingKind) String() string {
	switch k {
	case BindContext:
		return "context"
	case BindPositional:
		return "positional"
	case BindRemainder:
		return "remainder"
	default:
		return fmt.Sprintf("BindingKind(%d)", int(k))
	}
}

// SwitchMarker is the bare separator in a declared parameter list. Every
// parameter after it is in remainder mode. It is not a slot itself.
const SwitchMarker = "*"

// Signature is the compiled calling convention of a handler.
type Signature struct {
	kinds []BindingKind
	names []string
}

// CompileSignature turns a declared parameter list into a Signature.
//
// The first parameter is the context. Parameters up to SwitchMarker are
// positional, and exactly one parameter may follow the marker as the
// remainder. Anything else fails with ErrInvalidParameters.
func CompileSignature(params ...string) (Signature, error) {
	if len(params) == 0 {
		return Signature{}, fmt.Errorf("%w: a handler must declare the context parameter", ErrInvalidParameters)
	}
	if params[0] == SwitchMarker || strings.TrimSpace(params[0]) == "" {
		return Signature{}, fmt.Errorf("%w: first parameter must name the context", ErrInvalidParameters)
	}

	sig := Signature{
		kinds: make([]BindingKind, 0, len(params)),
		names: make([]string, 0, len(params)),
	}
	sig.kinds = append(sig.kinds, BindContext)
	sig.names = append(sig.names, params[0])

	remainderMode := false
	for i, p := range params[1:] {
		pos := i + 1
		if p == SwitchMarker {
			if remainderMode {
				return Signature{}, fmt.Errorf("%w: second %q at position %d", ErrInvalidParameters, SwitchMarker, pos)
			}
			remainderMode = true
			continue
		}
		if strings.TrimSpace(p) == "" {
			return Signature{}, fmt.Errorf("%w: unnamed parameter at position %d", ErrInvalidParameters, pos)
		}
		if slices.Contains(sig.names, p) {
			return Signature{}, fmt.Errorf("%w: parameter %q declared twice", ErrInvalidParameters, p)
		}

		if !remainderMode {
			sig.kinds = append(sig.kinds, BindPositional)
			sig.names = append(sig.names, p)
			continue
		}
		if sig.HasRemainder() {
			return Signature{}, fmt.Errorf("%w: %q follows the remainder parameter %q",
				ErrInvalidParameters, p, sig.names[len(sig.names)-1])
		}
		sig.kinds = append(sig.kinds, BindRemainder)
		sig.names = append(sig.names, p)
	}

	if remainderMode && !sig.HasRemainder() {
		return Signature{}, fmt.Errorf("%w: %q must be followed by a parameter", ErrInvalidParameters, SwitchMarker)
	}
	return sig, nil
}

// Kinds returns a copy of the binding kinds in declaration order.
func (s Signature) Kinds() []BindingKind { return slices.Clone(s.kinds) }

// Params returns a copy of the parameter names, without the switch marker.
func (s Signature) Params() []string { return slices.Clone(s.names) }

// Len is the number of bound slots, context included.
func (s Signature) Len() int { return len(s.kinds) }

// Positional is the number of positional slots.
func (s Signature) Positional() int {
	n := 0
	for _, k := range s.kinds {
		if k == BindPositional {
			n++
		}
	}
	return n
}

// HasRemainder reports whether the last slot is a remainder slot.
func (s Signature) HasRemainder() bool {
	return len(s.kinds) > 0 && s.kinds[len(s.kinds)-1] == BindRemainder
}

// Equal reports whether two signatures bind the same slots under the same names.
func (s Signature) Equal(o Signature) bool {
	return slices.Equal(s.kinds, o.kinds) && slices.Equal(s.names, o.names)
}

// Usage renders the argument part of a help line, e.g. "<id> [variants...]".
func (s Signature) Usage() string {
	parts := make([]string, 0, len(s.kinds))
	for i, k := range s.kinds {
		switch k {
		case BindPositional:
			parts = append(parts, "<"+s.names[i]+">")
		case BindRemainder:
			parts = append(parts, "["+s.names[i]+"...]")
		}
	}
	return strings.Join(parts, " ")
}

func (s Signature) String() string {
	parts := make([]string, 0, len(s.kinds)+1)
	for i, k := range s.kinds {
		if k == BindRemainder {
			parts = append(parts, SwitchMarker)
		}
		parts = append(parts, s.names[i])
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
