package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sevigo/sourceqa/config"
)

type rootFlags struct {
	configPath string
	logLevel   string
}

type appState struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	var (
		flags rootFlags
		state appState
	)

	cmd := &cobra.Command{
		Use:           "sourceqa",
		Short:         "Answer questions over your documents and cite the sources",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			if flags.logLevel != "" {
				cfg.Log.Level = flags.logLevel
			}
			state.cfg = cfg
			state.logger = config.NewLogger(cfg.Log, os.Stderr)
			slog.SetDefault(state.logger)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override the log level (debug, info, warn, error)")

	cmd.AddCommand(
		newIngestCmd(&state),
		newAskCmd(&state),
		newServeCmd(&state),
		newCollectionsCmd(&state),
	)
	return cmd
}
