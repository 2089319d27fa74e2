package dispatch

import (
	"strings"

	"github.com/jholhewres/boat/pkg/boat/channels"
)

// OwnerConfig configures the owner gate.
type OwnerConfig struct {
	// Enabled restricts every command to the listed owners.
	Enabled bool `yaml:"enabled" toml:"owner_mode" env:"ENABLED"`

	// Owners are display names or stable ids. A sender matches on either.
	Owners []string `yaml:"owners" toml:"owners" env:"OWNERS" envSeparator:","`

	// FoldCase compares names and ids case-insensitively.
	FoldCase bool `yaml:"fold_case" toml:"fold_case" env:"FOLD_CASE"`
}

// OwnerPolicy decides whether a sender may run commands. It is immutable
// and safe for concurrent use.
type OwnerPolicy struct {
	enabled  bool
	foldCase bool
	owners   map[string]struct{}
}

// NewOwnerPolicy builds a policy from cfg. Blank entries are ignored.
func NewOwnerPolicy(cfg OwnerConfig) OwnerPolicy {
	p := OwnerPolicy{
		enabled:  cfg.Enabled,
		foldCase: cfg.FoldCase,
		owners:   make(map[string]struct{}, len(cfg.Owners)),
	}
	for _, o := range cfg.Owners {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		p.owners[p.normalize(o)] = struct{}{}
	}
	return p
}

func (p OwnerPolicy) normalize(s string) string {
	if p.foldCase {
		return strings.ToLower(s)
	}
	return s
}

// Enabled reports whether the gate is active.
func (p OwnerPolicy) Enabled() bool { return p.enabled }

// Size is the number of distinct allow-list entries.
func (p OwnerPolicy) Size() int { return len(p.owners) }

// DeniesAll reports an enabled gate with nobody on the list.
func (p OwnerPolicy) DeniesAll() bool { return p.enabled && len(p.owners) == 0 }

// Permits reports whether who may run commands. With the gate disabled
// everyone is permitted; otherwise the display name or the id must be on
// the list exactly.
func (p OwnerPolicy) Permits(who channels.Identity) bool {
	if !p.enabled {
		return true
	}
	if who.Name != "" {
		if _, ok := p.owners[p.normalize(who.Name)]; ok {
			return true
		}
	}
	if who.ID != "" {
		if _, ok := p.owners[p.normalize(who.ID)]; ok {
			return true
		}
	}
	return false
}
