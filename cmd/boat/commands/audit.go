package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jholhewres/boat/pkg/boat/audit"
)

// newAuditCmd creates `boat audit`, which prints recent dispatch runs.
func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent command runs from the dispatch journal",
		Long: `Prints the most recent rows of the dispatch journal: who ran
which command, where, and how it ended.

Examples:
  boat audit
  boat audit -n 100`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			if !cfg.Audit.Enabled {
				return fmt.Errorf("the dispatch journal is disabled (audit.enabled: false)")
			}
			n, _ := cmd.Flags().GetInt("limit")

			j, err := audit.Open(audit.Options{
				Path:        cfg.Audit.Path,
				HashSenders: cfg.Audit.HashSenders,
				Retention:   -1,
			})
			if err != nil {
				return err
			}
			defer j.Close()

			entries, err := j.Recent(cmd.Context(), n)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No commands recorded yet.")
				return nil
			}
			for _, e := range entries {
				who := e.SenderName
				if who == "" {
					who = e.SenderID
				}
				line := fmt.Sprintf("%s  %-8s %-7s %-14s %-16s %s",
					e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Channel, e.Kind, e.Command, who, e.Outcome)
				if e.Error != "" {
					line += "  " + e.Error
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", 20, "number of rows to show")
	return cmd
}
