package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tnicklin/update_gate/update"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate the update gate on start and on every poll interval until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		a, err := build(ctx)
		if err != nil {
			return err
		}

		poller := update.NewPoller(update.PollerParams{
			Config: a.Config.Update,
			Gate:   a.Gate,
			Clock:  a.Clock,
			Logger: a.Logger.Named("poller"),
		})
		if err := poller.Start(ctx); err != nil {
			_ = a.close(context.Background())
			return fmt.Errorf("start poller: %w", err)
		}
		a.Logger.InfoW("update gate running",
			"poll_interval", a.Config.Update.PollInterval,
			"recheck_interval", a.Config.Update.RecheckInterval,
		)

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-stop:
		case <-ctx.Done():
		}

		poller.Stop()
		cancel()

		return a.close(context.Background())
	},
}
