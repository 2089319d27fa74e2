package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// newJobsCmd creates `boat jobs`, which lists scheduled commands.
func newJobsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List scheduled commands and their next run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(cfg.Scheduler.Jobs) == 0 {
				fmt.Fprintln(out, "No scheduled commands.")
				return nil
			}
			if !cfg.Scheduler.Enabled {
				fmt.Fprintln(out, "Scheduler is disabled; jobs below will not run.")
			}

			now := time.Now()
			for _, j := range cfg.Scheduler.Jobs {
				next := "disabled"
				if !j.Disabled {
					at, err := j.Next(now)
					if err != nil {
						return err
					}
					next = at.Format("2006-01-02 15:04")
				}
				target := j.ChatID
				if j.Direct {
					target = "direct"
				}
				fmt.Fprintf(out, "  %-16s %-14s %-18s %s/%s  %q\n", j.ID, j.Schedule, next, j.Channel, target, j.Command)
			}
			return nil
		},
	}
}
