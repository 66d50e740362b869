package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tnicklin/update_gate/store"
	"github.com/tnicklin/update_gate/timeutil"
)

var historyLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show when the last update check ran and recent results",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := build(ctx)
		if err != nil {
			return err
		}
		defer a.close(context.Background())

		st, err := a.Gate.Status(ctx, a.Clock.Now())
		if err != nil {
			return fmt.Errorf("read status: %w", err)
		}
		checks, err := a.Store.ListChecks(ctx, historyLimit)
		if err != nil {
			return fmt.Errorf("list checks: %w", err)
		}

		if jsonOutput {
			out := struct {
				LastCheckedAt string              `json:"last_checked_at,omitempty"`
				NextDueAt     string              `json:"next_due_at"`
				Due           bool                `json:"due"`
				History       []store.CheckRecord `json:"history"`
			}{
				NextDueAt: timeutil.FormatRFC3339(st.NextDueAt),
				Due:       st.Due,
				History:   checks,
			}
			if st.HasChecked {
				out.LastCheckedAt = timeutil.FormatRFC3339(st.LastCheckedAt)
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		if st.HasChecked {
			fmt.Printf("Last checked: %s\n", timeutil.FormatRFC3339(st.LastCheckedAt))
		} else {
			fmt.Println("Last checked: never")
		}
		fmt.Printf("Next due:     %s\n", timeutil.FormatRFC3339(st.NextDueAt))
		fmt.Printf("Due now:      %t\n", st.Due)

		if len(checks) == 0 {
			return nil
		}
		fmt.Println()
		fmt.Println("Recent checks:")
		for _, c := range checks {
			line := fmt.Sprintf("  %s  %-8s", timeutil.FormatRFC3339(c.CheckedAt), c.Classification)
			if c.StoreVersion != "" {
				line += fmt.Sprintf("  %s -> %s", c.InstalledVersion, c.StoreVersion)
			}
			if c.Error != "" {
				line += "  error: " + c.Error
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&historyLimit, "limit", 10, "number of history entries to show")
}
