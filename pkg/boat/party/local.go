package party

import (
	"context"
	"maps"
	"sync"
)

// State is what a Local controller currently shows.
type State struct {
	Playlist  string
	Readiness ReadyState
	Loadout   map[CosmeticKind]Cosmetic
}

// Local is an in-memory Controller. The console channel uses it to
// simulate a party.
type Local struct {
	mu    sync.Mutex
	state State
}

// NewLocal returns a controller sitting out with an empty loadout.
func NewLocal() *Local {
	return &Local{state: State{
		Readiness: SittingOut,
		Loadout:   make(map[CosmeticKind]Cosmetic),
	}}
}

func (l *Local) SetPlaylist(_ context.Context, playlist string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Playlist = playlist
	return nil
}

func (l *Local) SetReadiness(_ context.Context, state ReadyState) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Readiness = state
	return nil
}

func (l *Local) SetCosmetic(_ context.Context, c Cosmetic) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	c.Variants = maps.Clone(c.Variants)
	l.state.Loadout[c.Kind] = c
	return nil
}

// Snapshot returns a copy of the current state.
func (l *Local) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.state
	s.Loadout = maps.Clone(l.state.Loadout)
	return s
}

var _ Controller = (*Local)(nil)
