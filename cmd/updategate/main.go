package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tnicklin/update_gate/appstore"
	"github.com/tnicklin/update_gate/clock"
	"github.com/tnicklin/update_gate/config"
	"github.com/tnicklin/update_gate/logger"
	"github.com/tnicklin/update_gate/notify"
	"github.com/tnicklin/update_gate/store"
	"github.com/tnicklin/update_gate/update"
)

var (
	configFiles []string
	jsonOutput  bool
)

var rootCmd = &cobra.Command{
	Use:           "updategate <command>",
	Short:         "Check the app store for a newer release, at most once per interval",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&configFiles, "config",
		[]string{"config/config.yaml", "config/secrets.yaml"}, "YAML config files, later files override earlier ones")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddCommand(runCmd, checkCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app holds the wired components shared by every command.
type app struct {
	Config  *config.AppConfig
	Logger  *logger.DefaultLogger
	Store   *store.SQLiteStore
	Clock   clock.Clock
	Gate    *update.Gate
	closers []func() error
}

func build(ctx context.Context) (*app, error) {
	cfg, err := config.LoadWithDefaults(configFiles...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	a := &app{Config: cfg, Logger: appLogger}

	a.Store = store.NewSQLiteStore(store.Params{Config: cfg.Store, Logger: appLogger.Named("store")})
	if err := a.Store.Open(ctx); err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := a.Store.RestoreFromDisk(ctx, cfg.Store.Path); err != nil {
		appLogger.WarnW("restore from disk", "error", err)
	}

	a.Clock = clock.FromConfig(cfg.Clock, appLogger.Named("clock"))
	if ntpClock, ok := a.Clock.(*clock.NTPClock); ok {
		if err := ntpClock.Start(ctx); err != nil {
			appLogger.WarnW("start ntp clock", "error", err)
		}
		a.closers = append(a.closers, func() error { ntpClock.Stop(); return nil })
	}

	notifier, err := a.buildNotifier()
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	client := appstore.New(appstore.Params{Config: cfg.AppStore})
	checker := update.NewChecker(update.CheckerParams{
		Config: cfg.Update,
		Client: client,
		Logger: appLogger.Named("checker"),
	})

	a.Gate, err = update.NewGate(update.GateParams{
		Config:   cfg.Update,
		Checker:  checker,
		State:    a.Store,
		History:  a.Store,
		Notifier: notifier,
		Logger:   appLogger.Named("gate"),
	})
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("create gate: %w", err)
	}

	return a, nil
}

func (a *app) buildNotifier() (notify.Notifier, error) {
	notifiers := notify.Multi{
		notify.Func(func(storeURL string) {
			a.Logger.InfoW("update available", "store_url", storeURL)
		}),
	}

	if dc := a.Config.Notify.Discord; dc.Token != "" && dc.ChannelID != "" {
		d, err := notify.NewDiscord(notify.DiscordParams{Config: dc})
		if err != nil {
			return nil, fmt.Errorf("create discord notifier: %w", err)
		}
		if err := d.Open(); err != nil {
			return nil, err
		}
		a.closers = append(a.closers, d.Close)
		notifiers = append(notifiers, d)
	}

	if nc := a.Config.Notify.NATS; nc.URL != "" {
		n, err := notify.NewNATS(nc)
		if err != nil {
			return nil, fmt.Errorf("create nats notifier: %w", err)
		}
		a.closers = append(a.closers, n.Close)
		notifiers = append(notifiers, n)
	}

	return notifiers, nil
}

// close flushes the store and releases notifier connections.
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := a.Store.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown store: %w", err))
	}

	_ = a.Logger.Sync()
	return errors.Join(errs...)
}
