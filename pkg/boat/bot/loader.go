package bot

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override (e.g. BOAT_PREFIX).
const EnvPrefix = "BOAT_"

// envVarPattern matches ${VAR_NAME} or $VAR_NAME in config values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Z_][A-Z0-9_]*)`)

// LoadConfigFromFile reads a YAML or TOML configuration file, expands
// environment references, applies BOAT_* overrides and validates the
// result. An empty path loads the defaults plus overrides.
func LoadConfigFromFile(path string) (*Config, error) {
	loadEnvFiles()

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		cfg, err = ParseConfig([]byte(expandEnvVars(string(data))), formatOf(path))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		checkFilePermissions(path)
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ParseConfig parses data in the given format ("yaml" or "toml") over the
// defaults.
func ParseConfig(data []byte, format string) (*Config, error) {
	cfg := DefaultConfig()

	switch format {
	case "toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config TOML: %w", err)
		}
		if err := applyLegacySettings(data, cfg); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config YAML: %w", err)
		}
	}
	return cfg, nil
}

// ApplyEnv overlays BOAT_* environment variables onto cfg.
// Scheduled jobs are only read from files.
func ApplyEnv(cfg *Config) error {
	jobs := cfg.Scheduler.Jobs
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("applying environment overrides: %w", err)
	}
	cfg.Scheduler.Jobs = jobs
	return nil
}

// legacySettings is the settings.toml layout of the first bot release:
//
//	[account]
//	owner_mode = true
//	owners = ["name"]
//	debug = false
//
//	[account.preferences]
//	blocklist = ["CID_..."]
type legacySettings struct {
	Account *struct {
		OwnerMode   *bool    `toml:"owner_mode"`
		Owners      []string `toml:"owners"`
		Debug       bool     `toml:"debug"`
		Preferences struct {
			Blocklist []string `toml:"blocklist"`
		} `toml:"preferences"`
	} `toml:"account"`
}

func applyLegacySettings(data []byte, cfg *Config) error {
	var legacy legacySettings
	if err := toml.Unmarshal(data, &legacy); err != nil {
		return fmt.Errorf("parsing legacy settings: %w", err)
	}
	acc := legacy.Account
	if acc == nil {
		return nil
	}
	if acc.OwnerMode != nil {
		cfg.Owner.Enabled = *acc.OwnerMode
	}
	if len(acc.Owners) > 0 {
		cfg.Owner.Owners = acc.Owners
	}
	if acc.Debug {
		cfg.Logging.Level = "debug"
	}
	if len(acc.Preferences.Blocklist) > 0 {
		cfg.Party.Blocklist = acc.Preferences.Blocklist
	}
	return nil
}

func formatOf(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return "toml"
	}
	return "yaml"
}

// SaveConfigToFile writes cfg as YAML with owner-only permissions. A
// plaintext Discord token is replaced with an environment reference.
func SaveConfigToFile(cfg *Config, path string) error {
	sanitized := *cfg
	sanitized.Channels.Discord.Token = sanitizeSecret(cfg.Channels.Discord.Token, EnvPrefix+"DISCORD_TOKEN")

	data, err := yaml.Marshal(&sanitized)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// FindConfigFile searches the working directory for a config file.
func FindConfigFile() string {
	candidates := []string{
		"boat.yaml",
		"boat.yml",
		"config.yaml",
		"config.yml",
		"boat.toml",
		"settings.toml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		// Existing variables win.
		_ = godotenv.Load(f)
	}
}

// expandEnvVars replaces ${VAR} and $VAR with their values. Unset
// variables are left as written.
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := strings.TrimPrefix(match, "$")
		name = strings.TrimSuffix(strings.TrimPrefix(name, "{"), "}")
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

func sanitizeSecret(value, envVar string) string {
	if value == "" || IsEnvReference(value) {
		return value
	}
	return "${" + envVar + "}"
}

// IsEnvReference reports whether s is an unexpanded variable reference.
func IsEnvReference(s string) bool {
	return strings.HasPrefix(s, "$")
}

func checkFilePermissions(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if mode := info.Mode().Perm(); mode&0o044 != 0 {
		slog.Warn("config file is readable by others, consider restricting it",
			"path", path,
			"current", fmt.Sprintf("%04o", mode),
			"fix", fmt.Sprintf("chmod 600 %s", path),
		)
	}
}
