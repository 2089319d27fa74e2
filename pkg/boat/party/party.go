// Package party holds the party controls commands act on: playlist,
// readiness and equipped cosmetics, plus the invite gate. Transports that
// can drive a real party expose a Controller through Provider.
package party

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Errors.
var (
	ErrBlocked           = errors.New("cosmetic is blocklisted")
	ErrUnknownReadyState = errors.New("unknown ready state")
	ErrInvalidVariant    = errors.New("invalid variant")
	ErrEmptyPlaylist     = errors.New("playlist is empty")
	ErrEmptyCosmetic     = errors.New("cosmetic id is empty")
)

// CosmeticKind is the slot a cosmetic is equipped in. Its value is the id
// prefix used by the game catalog.
type CosmeticKind string

const (
	Skin     CosmeticKind = "CID"
	Emote    CosmeticKind = "EID"
	Backpack CosmeticKind = "BID"
	Pickaxe  CosmeticKind = "PID"
	Emoji    CosmeticKind = "EMOJI"
	Pet      CosmeticKind = "PET"
	Contrail CosmeticKind = "CONTRAIL"
)

// CosmeticKinds lists every kind in catalog order.
var CosmeticKinds = []CosmeticKind{Skin, Emote, Backpack, Pickaxe, Emoji, Pet, Contrail}

// String returns the human name of the slot.
func (k CosmeticKind) String() string {
	switch k {
	case Skin:
		return "skin"
	case Emote:
		return "emote"
	case Backpack:
		return "backpack"
	case Pickaxe:
		return "pickaxe"
	case Emoji:
		return "emoji"
	case Pet:
		return "pet"
	case Contrail:
		return "contrail"
	default:
		return strings.ToLower(string(k))
	}
}

// KindOf detects the slot from a catalog id such as "EID_Floss". The
// prefix and its underscore are matched case-insensitively. Unrecognized
// ids are treated as skins.
func KindOf(id string) CosmeticKind {
	upper := strings.ToUpper(strings.TrimSpace(id))
	for _, k := range CosmeticKinds {
		if strings.HasPrefix(upper, string(k)+"_") {
			return k
		}
	}
	return Skin
}

// Variants are style selections for a cosmetic, e.g. {"Material": "2"}.
type Variants map[string]string

// ParseVariants reads whitespace-separated key=value pairs.
func ParseVariants(text string) (Variants, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, nil
	}
	v := make(Variants, len(fields))
	for _, f := range fields {
		key, val, ok := strings.Cut(f, "=")
		if !ok || key == "" || val == "" {
			return nil, fmt.Errorf("%w: %q (want key=value)", ErrInvalidVariant, f)
		}
		v[key] = val
	}
	return v, nil
}

// String renders variants as sorted key=value pairs.
func (v Variants) String() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+v[k])
	}
	return strings.Join(parts, " ")
}

// Cosmetic is one equip request.
type Cosmetic struct {
	Kind     CosmeticKind
	ID       string
	Variants Variants
}

// ReadyState is the lobby readiness of the bot's party member.
type ReadyState string

const (
	Ready      ReadyState = "Ready"
	NotReady   ReadyState = "NotReady"
	SittingOut ReadyState = "SittingOut"
)

// ParseReadyState accepts "ready", "not_ready", "NotReady", "sitting out"
// and similar spellings.
func ParseReadyState(s string) (ReadyState, error) {
	norm := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.TrimSpace(s)))
	switch norm {
	case "ready":
		return Ready, nil
	case "notready", "unready":
		return NotReady, nil
	case "sittingout", "sitout", "":
		return SittingOut, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownReadyState, s)
	}
}

// Controller changes the bot's own party member and party settings.
type Controller interface {
	SetPlaylist(ctx context.Context, playlist string) error
	SetReadiness(ctx context.Context, state ReadyState) error
	SetCosmetic(ctx context.Context, c Cosmetic) error
}

// Provider is implemented by channels that can drive a party.
type Provider interface {
	Party() Controller
}

// Config configures party behaviour.
type Config struct {
	// Blocklist holds cosmetic ids that may never be equipped.
	Blocklist []string `yaml:"blocklist" toml:"blocklist" env:"BLOCKLIST" envSeparator:","`

	// AcceptInvitesFrom lists display names or ids whose invites are
	// accepted. Everyone else is declined.
	AcceptInvitesFrom []string `yaml:"accept_invites_from" toml:"accept_invites_from" env:"ACCEPT_INVITES_FROM" envSeparator:","`
}
