package dispatch

import (
	"slices"
	"testing"
)

func TestSplitInvocation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       string
		wantKey  string
		wantRest string
	}{
		{"!playlist Duos", "!playlist", "Duos"},
		{"!playlist", "!playlist", ""},
		{"!playlist ", "!playlist", ""},
		{"  !playlist   Duos  ", "!playlist", "Duos  "},
		{"!echo hello   world", "!echo", "hello   world"},
		{"!echo\thello", "!echo", "hello"},
		{"!echo\n\nline two", "!echo", "line two"},
		{"", "", ""},
		{"   ", "", ""},
		{"hello there", "hello", "there"},
	}

	for _, tt := range tests {
		key, rest := SplitInvocation(tt.in)
		if key != tt.wantKey || rest != tt.wantRest {
			t.Errorf("SplitInvocation(%q) = (%q, %q), want (%q, %q)",
				tt.in, key, rest, tt.wantKey, tt.wantRest)
		}
	}
}

func TestStripKey(t *testing.T) {
	t.Parallel()

	if rest, ok := stripKey("!skin CID_001 style=1", "!skin"); !ok || rest != "CID_001 style=1" {
		t.Errorf("stripKey = (%q, %v), want (%q, true)", rest, ok, "CID_001 style=1")
	}
	if _, ok := stripKey("!skinny", "!skin"); ok {
		t.Error("stripKey matched a longer token")
	}
	if _, ok := stripKey("hi !skin", "!skin"); ok {
		t.Error("stripKey matched a key that is not the first token")
	}
}

func TestBindArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		params      []string
		raw         string
		wantPos     []string
		wantRest    string
		wantMissing []string
	}{
		{
			name:   "context only ignores text",
			params: []string{"ctx"},
			raw:    "anything here",
		},
		{
			name:    "two positional",
			params:  []string{"ctx", "a", "b"},
			raw:     "one two three",
			wantPos: []string{"one", "two"},
		},
		{
			name:        "missing positional",
			params:      []string{"ctx", "a", "b"},
			raw:         "one",
			wantPos:     []string{"one"},
			wantMissing: []string{"b"},
		},
		{
			name:     "positional and remainder",
			params:   []string{"ctx", "id", "*", "variants"},
			raw:      "CID_001   style=2  parts=3",
			wantPos:  []string{"CID_001"},
			wantRest: "style=2  parts=3",
		},
		{
			name:     "remainder keeps inner spacing",
			params:   []string{"ctx", "*", "rest"},
			raw:      "Solo   Squads",
			wantRest: "Solo   Squads",
		},
		{
			name:        "empty text",
			params:      []string{"ctx", "state"},
			raw:         "",
			wantMissing: []string{"state"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sig, err := CompileSignature(tt.params...)
			if err != nil {
				t.Fatal(err)
			}
			a := bindArgs(sig, tt.raw)
			if a.Len() != len(tt.wantPos) {
				t.Fatalf("Len() = %d, want %d", a.Len(), len(tt.wantPos))
			}
			for i, want := range tt.wantPos {
				if got := a.Get(i); got != want {
					t.Errorf("Get(%d) = %q, want %q", i, got, want)
				}
			}
			if a.Rest() != tt.wantRest {
				t.Errorf("Rest() = %q, want %q", a.Rest(), tt.wantRest)
			}
			if !slices.Equal(a.Missing(), tt.wantMissing) {
				t.Errorf("Missing() = %v, want %v", a.Missing(), tt.wantMissing)
			}
			if a.Raw() != tt.raw {
				t.Errorf("Raw() = %q, want %q", a.Raw(), tt.raw)
			}
		})
	}
}

func TestArgs_Lookup(t *testing.T) {
	t.Parallel()

	sig, err := CompileSignature("ctx", "state", "mode")
	if err != nil {
		t.Fatal(err)
	}
	a := bindArgs(sig, "ready")

	if v, ok := a.Lookup("state"); !ok || v != "ready" {
		t.Errorf("Lookup(state) = (%q, %v), want (ready, true)", v, ok)
	}
	if _, ok := a.Lookup("mode"); ok {
		t.Error("Lookup(mode) found a value for an unfilled slot")
	}
	if _, ok := a.Lookup("nope"); ok {
		t.Error("Lookup(nope) found an undeclared name")
	}
	if got := a.Get(5); got != "" {
		t.Errorf("Get(5) = %q, want empty", got)
	}
}
