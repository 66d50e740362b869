package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tnicklin/update_gate/timeutil"
	"github.com/tnicklin/update_gate/update"
)

var forceCheck bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate the update gate once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := build(ctx)
		if err != nil {
			return err
		}
		defer a.close(context.Background())

		now := a.Clock.Now()
		var decision update.Decision
		if forceCheck {
			decision = a.Gate.Force(ctx, now)
		} else {
			decision = a.Gate.Evaluate(ctx, now)
		}

		printDecision(decision)
		return nil
	},
}

func init() {
	checkCmd.Flags().BoolVar(&forceCheck, "force", false, "check even if the recheck interval has not elapsed")
}

type decisionOutput struct {
	Checked          bool   `json:"checked"`
	ShouldNotify     bool   `json:"should_notify"`
	Classification   string `json:"classification"`
	InstalledVersion string `json:"installed_version,omitempty"`
	StoreVersion     string `json:"store_version,omitempty"`
	ReleaseDate      string `json:"release_date,omitempty"`
	StoreURL         string `json:"store_url,omitempty"`
	Error            string `json:"error,omitempty"`
}

func printDecision(d update.Decision) {
	out := decisionOutput{
		Checked:        d.Checked,
		ShouldNotify:   d.ShouldNotify,
		Classification: d.Classification.String(),
		StoreURL:       d.StoreURL,
	}
	if d.Checked && d.Result.Err == nil {
		out.InstalledVersion = d.Result.Installed.String()
		out.StoreVersion = d.Result.Store.String()
		out.ReleaseDate = timeutil.FormatRFC3339(d.Result.ReleaseDate)
	}
	if d.Result.Err != nil {
		out.Error = d.Result.Err.Error()
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
		return
	}

	if !d.Checked {
		fmt.Println("Update check not due.")
		return
	}
	fmt.Printf("Classification: %s\n", out.Classification)
	if out.InstalledVersion != "" {
		fmt.Printf("Installed:      %s\n", out.InstalledVersion)
		fmt.Printf("Store:          %s (released %s)\n", out.StoreVersion, out.ReleaseDate)
	}
	if d.ShouldNotify {
		fmt.Printf("Update available: %s\n", out.StoreURL)
	}
	if out.Error != "" {
		fmt.Printf("Check failed: %s\n", out.Error)
	}
}
