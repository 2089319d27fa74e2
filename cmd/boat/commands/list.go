package commands

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/jholhewres/boat/pkg/boat/bot"
	"github.com/jholhewres/boat/pkg/boat/dispatch"
)

// newCommandsCmd creates `boat commands`, which lists the chat commands.
func newCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List the chat commands and their usage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger(cmd, cfg)
			if err != nil {
				return err
			}
			router, err := bot.NewRouter(cfg, nil, logger)
			if err != nil {
				return err
			}
			printCommands(cmd.OutOrStdout(), router.Commands())
			return nil
		},
	}
}

func printCommands(w io.Writer, cmds []*dispatch.Command) {
	keyStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39"))
	descStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245"))

	width := 0
	for _, c := range cmds {
		width = max(width, len(c.Usage()))
	}
	for _, c := range cmds {
		usage := fmt.Sprintf("%-*s", width, c.Usage())
		fmt.Fprintf(w, "  %s  %s\n", keyStyle.Render(usage), descStyle.Render(c.Description()))
	}
}
