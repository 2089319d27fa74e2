package bot

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"github.com/charmbracelet/lipgloss"
)

// consoleTimeFormat is the timestamp shown by the pretty handler.
const consoleTimeFormat = "2006-Jan-02 | 03:04 PM"

// NewLogger builds the process logger. verbose forces debug level.
func NewLogger(cfg LoggingConfig, verbose bool, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case "text":
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	case "", "pretty":
		pretty := charmlog.NewWithOptions(w, charmlog.Options{
			ReportTimestamp: true,
			TimeFormat:      consoleTimeFormat,
			Level:           charmlog.Level(level),
		})
		handler = pretty
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return slog.New(handler), nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

const bannerArt = `
 _                 _
| |__   ___   __ _| |_
| '_ \ / _ \ / _` + "`" + ` | __|
| |_) | (_) | (_| | |_
|_.__/ \___/ \__,_|\__|`

// Banner renders the startup banner.
func Banner(version string, cfg *Config) string {
	info := fmt.Sprintf("%s %s | prefix %q | channels %s",
		cfg.Name, version, cfg.Prefix, strings.Join(cfg.Channels.Enabled, ", "))
	artStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39"))

	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245"))

	return artStyle.Render(bannerArt) + "\n" + infoStyle.Render(info) + "\n"
}
