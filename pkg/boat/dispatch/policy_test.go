package dispatch

import (
	"testing"

	"github.com/jholhewres/boat/pkg/boat/channels"
)

func TestOwnerPolicy_Permits(t *testing.T) {
	t.Parallel()

	alice := channels.Identity{ID: "a1b2", Name: "alice"}
	bob := channels.Identity{ID: "c3d4", Name: "bob"}

	tests := []struct {
		name string
		cfg  OwnerConfig
		who  channels.Identity
		want bool
	}{
		{"disabled permits anyone", OwnerConfig{}, bob, true},
		{"disabled ignores list", OwnerConfig{Owners: []string{"alice"}}, bob, true},
		{"name match", OwnerConfig{Enabled: true, Owners: []string{"alice"}}, alice, true},
		{"id match", OwnerConfig{Enabled: true, Owners: []string{"c3d4"}}, bob, true},
		{"no match", OwnerConfig{Enabled: true, Owners: []string{"alice"}}, bob, false},
		{"no partial match", OwnerConfig{Enabled: true, Owners: []string{"ali"}}, alice, false},
		{"case sensitive by default", OwnerConfig{Enabled: true, Owners: []string{"Alice"}}, alice, false},
		{"fold case", OwnerConfig{Enabled: true, FoldCase: true, Owners: []string{"ALICE"}}, alice, true},
		{"empty list denies", OwnerConfig{Enabled: true}, alice, false},
		{"blank entries ignored", OwnerConfig{Enabled: true, Owners: []string{"", "  "}}, channels.Identity{}, false},
		{"entries trimmed", OwnerConfig{Enabled: true, Owners: []string{" alice "}}, alice, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := NewOwnerPolicy(tt.cfg)
			if got := p.Permits(tt.who); got != tt.want {
				t.Errorf("Permits(%v) = %v, want %v", tt.who, got, tt.want)
			}
		})
	}
}

func TestOwnerPolicy_DeniesAll(t *testing.T) {
	t.Parallel()

	if !NewOwnerPolicy(OwnerConfig{Enabled: true}).DeniesAll() {
		t.Error("enabled empty policy should deny all")
	}
	if NewOwnerPolicy(OwnerConfig{}).DeniesAll() {
		t.Error("disabled policy should not deny all")
	}
	p := NewOwnerPolicy(OwnerConfig{Enabled: true, Owners: []string{"a", "a", "b"}})
	if p.Size() != 2 {
		t.Errorf("Size() = %d, want 2", p.Size())
	}
}
