// Package bot wires the channels, the command router and the supporting
// services into a running bot, and owns its configuration.
package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/jholhewres/boat/pkg/boat/channels/console"
	"github.com/jholhewres/boat/pkg/boat/channels/discord"
	"github.com/jholhewres/boat/pkg/boat/channels/whatsapp"
	"github.com/jholhewres/boat/pkg/boat/dispatch"
	"github.com/jholhewres/boat/pkg/boat/party"
	"github.com/jholhewres/boat/pkg/boat/scheduler"
)

// Config holds all bot configuration.
type Config struct {
	// Name is shown in the banner and the console prompt.
	Name string `yaml:"name" toml:"name" env:"NAME"`

	// Prefix starts every command (e.g. "!").
	Prefix string `yaml:"prefix" toml:"prefix" env:"PREFIX"`

	// Owner restricts commands to the listed senders.
	Owner dispatch.OwnerConfig `yaml:"owner" toml:"owner" envPrefix:"OWNER_"`

	// Commands configures dispatch.
	Commands CommandsConfig `yaml:"commands" toml:"commands" envPrefix:"COMMANDS_"`

	// Party configures party controls and invites.
	Party party.Config `yaml:"party" toml:"party" envPrefix:"PARTY_"`

	// Channels configures the transports.
	Channels ChannelsConfig `yaml:"channels" toml:"channels"`

	// Scheduler configures scheduled commands.
	Scheduler SchedulerConfig `yaml:"scheduler" toml:"scheduler" envPrefix:"SCHEDULER_"`

	// Audit configures the dispatch journal.
	Audit AuditConfig `yaml:"audit" toml:"audit" envPrefix:"AUDIT_"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging" toml:"logging" envPrefix:"LOG_"`
}

// CommandsConfig configures the router and the dispatch loop.
type CommandsConfig struct {
	// Concurrency caps the number of messages dispatched at once.
	Concurrency int `yaml:"concurrency" toml:"concurrency" env:"CONCURRENCY"`

	// Timeout bounds each handler run. Zero disables the bound.
	Timeout Duration `yaml:"timeout" toml:"timeout" env:"TIMEOUT"`

	// Duplicates is "reject" or "overwrite".
	Duplicates dispatch.DuplicatePolicy `yaml:"duplicates" toml:"duplicates" env:"DUPLICATES"`

	// Disabled lists built-in command names that are not registered.
	Disabled []string `yaml:"disabled" toml:"disabled" env:"DISABLED" envSeparator:","`
}

// ChannelsConfig holds configuration for all channels.
type ChannelsConfig struct {
	// Enabled lists the channels to start.
	Enabled []string `yaml:"enabled" toml:"enabled" env:"CHANNELS" envSeparator:","`

	Discord  discord.Config  `yaml:"discord" toml:"discord" envPrefix:"DISCORD_"`
	WhatsApp whatsapp.Config `yaml:"whatsapp" toml:"whatsapp" envPrefix:"WHATSAPP_"`
	Console  console.Config  `yaml:"console" toml:"console" envPrefix:"CONSOLE_"`
}

// SchedulerConfig configures scheduled commands.
type SchedulerConfig struct {
	Enabled bool            `yaml:"enabled" toml:"enabled" env:"ENABLED"`
	Jobs    []scheduler.Job `yaml:"jobs" toml:"jobs"`
}

// AuditConfig configures the dispatch journal.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled" env:"ENABLED"`
	Path    string `yaml:"path" toml:"path" env:"PATH"`

	// HashSenders stores keyed digests instead of sender ids and names.
	HashSenders bool `yaml:"hash_senders" toml:"hash_senders" env:"HASH_SENDERS"`

	// Retention drops older rows on startup. Zero keeps the default,
	// negative keeps everything.
	Retention Duration `yaml:"retention" toml:"retention" env:"RETENTION"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `yaml:"level" toml:"level" env:"LEVEL"`

	// Format is "pretty", "text" or "json".
	Format string `yaml:"format" toml:"format" env:"FORMAT"`
}

// Channel names accepted in channels.enabled.
const (
	ChannelConsole  = "console"
	ChannelDiscord  = "discord"
	ChannelWhatsApp = "whatsapp"
)

// DefaultConfig returns the default bot configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:   "boat",
		Prefix: "!",
		Commands: CommandsConfig{
			Concurrency: 8,
			Timeout:     Duration(30 * time.Second),
			Duplicates:  dispatch.RejectDuplicates,
		},
		Channels: ChannelsConfig{
			Enabled:  []string{ChannelConsole},
			WhatsApp: whatsapp.DefaultConfig(),
			// An empty console name speaks as the first owner.
			Console: console.Config{Prompt: console.DefaultConfig().Prompt},
		},
		Audit: AuditConfig{
			Enabled: true,
			Path:    "./data/boat.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "pretty",
		},
	}
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Prefix == "" {
		result = multierror.Append(result, fmt.Errorf("prefix must not be empty"))
	} else if strings.ContainsAny(c.Prefix, " \t\r\n") {
		result = multierror.Append(result, fmt.Errorf("prefix %q must not contain whitespace", c.Prefix))
	}
	if c.Commands.Concurrency < 1 {
		result = multierror.Append(result, fmt.Errorf("commands.concurrency must be at least 1, got %d", c.Commands.Concurrency))
	}
	if c.Commands.Timeout < 0 {
		result = multierror.Append(result, fmt.Errorf("commands.timeout must not be negative"))
	}
	switch c.Commands.Duplicates {
	case "", dispatch.RejectDuplicates, dispatch.OverwriteDuplicates:
	default:
		result = multierror.Append(result, fmt.Errorf("commands.duplicates must be %q or %q, got %q",
			dispatch.RejectDuplicates, dispatch.OverwriteDuplicates, c.Commands.Duplicates))
	}

	if len(c.Channels.Enabled) == 0 {
		result = multierror.Append(result, fmt.Errorf("channels.enabled must name at least one channel"))
	}
	for _, name := range c.Channels.Enabled {
		switch name {
		case ChannelConsole, ChannelDiscord, ChannelWhatsApp:
		default:
			result = multierror.Append(result, fmt.Errorf("unknown channel %q", name))
		}
	}

	switch c.Logging.Format {
	case "", "pretty", "text", "json":
	default:
		result = multierror.Append(result, fmt.Errorf("logging.format must be pretty, text or json, got %q", c.Logging.Format))
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		result = multierror.Append(result, err)
	}

	if c.Scheduler.Enabled {
		seen := make(map[string]bool, len(c.Scheduler.Jobs))
		for i, j := range c.Scheduler.Jobs {
			if err := j.Validate(); err != nil {
				result = multierror.Append(result, fmt.Errorf("scheduler.jobs[%d]: %w", i, err))
			}
			if seen[j.ID] {
				result = multierror.Append(result, fmt.Errorf("scheduler.jobs[%d]: duplicate id %q", i, j.ID))
			}
			seen[j.ID] = true
		}
	}

	return result.ErrorOrNil()
}

// ChannelEnabled reports whether name is in channels.enabled.
func (c *Config) ChannelEnabled(name string) bool {
	for _, n := range c.Channels.Enabled {
		if n == name {
			return true
		}
	}
	return false
}

// Duration is a time.Duration written as "30s" or "720h" in config files.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}
