package main

import (
	"log/slog"
	"os"

	"github.com/ayouballali/mahali-pos/internal/config"
	"github.com/ayouballali/mahali-pos/internal/logger"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	envFiles []string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "pos",
		Short:         "Mahali point of sale backend",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "env files to load instead of .env")

	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newDecodeCmd(opts),
		newScanCmd(opts),
	)
	return cmd
}

// load reads the configuration and installs the process logger.
func (o *rootOptions) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.envFiles...)
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)
	return cfg, log, nil
}
