package dispatch

import (
	"strings"
	"unicode"
)

// Args is the argument text of one invocation, bound to a signature.
type Args struct {
	raw        string
	names      []string
	positional []string
	rest       string
}

// bindArgs splits raw per sig: one token per positional slot, then
// everything after the last consumed token for the remainder slot.
func bindArgs(sig Signature, raw string) Args {
	a := Args{raw: raw}
	for i, k := range sig.kinds {
		if k == BindPositional {
			a.names = append(a.names, sig.names[i])
		}
	}

	toks := fields(raw, len(a.names))
	cut := 0
	for _, t := range toks {
		a.positional = append(a.positional, t.text)
		cut = t.end
	}
	if sig.HasRemainder() {
		a.rest = strings.TrimLeftFunc(raw[cut:], unicode.IsSpace)
	}
	return a
}

// Raw returns the full argument text.
func (a Args) Raw() string { return a.raw }

// Len returns the number of positional slots that received a token.
func (a Args) Len() int { return len(a.positional) }

// Get returns the i-th positional argument (zero based), or "" when the
// sender supplied fewer tokens.
func (a Args) Get(i int) string {
	if i < 0 || i >= len(a.positional) {
		return ""
	}
	return a.positional[i]
}

// Lookup returns a positional argument by its declared name.
func (a Args) Lookup(name string) (string, bool) {
	for i, n := range a.names {
		if n == name {
			if i < len(a.positional) {
				return a.positional[i], true
			}
			return "", false
		}
	}
	return "", false
}

// Rest returns the remainder slot. It is empty for signatures without one.
func (a Args) Rest() string { return a.rest }

// Missing lists the names of positional slots left unfilled.
func (a Args) Missing() []string {
	if len(a.positional) >= len(a.names) {
		return nil
	}
	return append([]string(nil), a.names[len(a.positional):]...)
}
