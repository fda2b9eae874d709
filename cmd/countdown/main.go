package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"countdown/internal/config"
	"countdown/internal/event"
	appLog "countdown/internal/log"
	"countdown/internal/store"
)

const version = "0.3.0"

// app holds what every subcommand needs once the config is loaded.
type app struct {
	configPath string
	cfg        *config.Config
	loc        *time.Location
	store      *store.SQLiteStore
	svc        *event.Service
	now        func() time.Time
}

func main() {
	a := &app{now: time.Now}
	err := newRootCmd(a).ExecuteContext(context.Background())
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "countdown",
		Short:         "Track the days left until the dates that matter",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to config file (default $XDG_CONFIG_HOME/countdown/config.yaml)")

	rootCmd.AddCommand(
		newServeCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newAddCmd(a),
		newEditCmd(a),
		newPinCmd(a),
		newDeleteCmd(a),
		newImportCmd(a),
		newExportCmd(a),
		newWidgetCmd(a),
	)
	return rootCmd
}

func (a *app) open(ctx context.Context) error {
	if a.configPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return fmt.Errorf("determine config path: %w", err)
		}
		a.configPath = p
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", a.configPath)
		return err
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	st, err := store.OpenSQLite(ctx, cfg.Database)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.loc = loc
	a.store = st
	a.svc = event.NewService(st)
	return nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

// today is now in the configured zone; its civil date is "today".
func (a *app) today() time.Time {
	return a.now().In(a.loc)
}
