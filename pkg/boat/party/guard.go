package party

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Guard wraps a Controller and refuses blocklisted cosmetics. Blocklist
// entries match ids case-insensitively.
type Guard struct {
	next    Controller
	blocked map[string]struct{}
	logger  *slog.Logger
}

// NewGuard wraps next with the given blocklist.
func NewGuard(next Controller, blocklist []string, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Guard{
		next:    next,
		blocked: make(map[string]struct{}, len(blocklist)),
		logger:  logger.With("component", "party"),
	}
	for _, id := range blocklist {
		if id = strings.TrimSpace(id); id != "" {
			g.blocked[strings.ToUpper(id)] = struct{}{}
		}
	}
	return g
}

// Blocked reports whether id is on the blocklist.
func (g *Guard) Blocked(id string) bool {
	_, ok := g.blocked[strings.ToUpper(strings.TrimSpace(id))]
	return ok
}

// SetPlaylist forwards to the wrapped controller.
func (g *Guard) SetPlaylist(ctx context.Context, playlist string) error {
	if strings.TrimSpace(playlist) == "" {
		return ErrEmptyPlaylist
	}
	return g.next.SetPlaylist(ctx, playlist)
}

// SetReadiness forwards to the wrapped controller.
func (g *Guard) SetReadiness(ctx context.Context, state ReadyState) error {
	return g.next.SetReadiness(ctx, state)
}

// SetCosmetic refuses blocklisted ids with ErrBlocked.
func (g *Guard) SetCosmetic(ctx context.Context, c Cosmetic) error {
	if strings.TrimSpace(c.ID) == "" {
		return ErrEmptyCosmetic
	}
	if g.Blocked(c.ID) {
		g.logger.Info("blocked cosmetic refused", "id", c.ID, "kind", c.Kind.String())
		return fmt.Errorf("%w: %s", ErrBlocked, c.ID)
	}
	return g.next.SetCosmetic(ctx, c)
}

var _ Controller = (*Guard)(nil)
