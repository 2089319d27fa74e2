package bot

import (
	"fmt"
	"log/slog"

	"github.com/zalando/go-keyring"
)

const (
	keyringService    = "boat"
	keyringDiscordKey = "discord_token"
)

// StoreDiscordToken saves the Discord bot token in the OS keyring.
func StoreDiscordToken(token string) error {
	if err := keyring.Set(keyringService, keyringDiscordKey, token); err != nil {
		return fmt.Errorf("storing token in keyring: %w", err)
	}
	return nil
}

// DeleteDiscordToken removes the stored token.
func DeleteDiscordToken() error {
	return keyring.Delete(keyringService, keyringDiscordKey)
}

// ResolveDiscordToken fills cfg's Discord token from, in order, the OS
// keyring, BOAT_DISCORD_TOKEN (already applied to cfg by ApplyEnv) and the
// config file. It reports where the token came from, or "" when none was
// found.
func ResolveDiscordToken(cfg *Config, logger *slog.Logger) string {
	if logger == nil {
		logger = slog.Default()
	}
	if val, err := keyring.Get(keyringService, keyringDiscordKey); err == nil && val != "" {
		cfg.Channels.Discord.Token = val
		logger.Debug("discord token loaded from OS keyring")
		return "keyring"
	}
	if tok := cfg.Channels.Discord.Token; tok != "" && !IsEnvReference(tok) {
		logger.Debug("discord token loaded from config/env")
		return "config"
	}
	cfg.Channels.Discord.Token = ""
	return ""
}
