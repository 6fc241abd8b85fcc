package main

import (
	"fmt"

	"github.com/ayouballali/mahali-pos/internal/repository"
	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back the database schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			repo, err := repository.NewRepository(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer repo.Close()

			direction := "up"
			if len(args) == 1 {
				direction = args[0]
			}
			if direction == "down" {
				err = repo.MigrateDown(cfg.Database.MigrationsPath)
			} else {
				err = repo.RunMigrations(cfg.Database.MigrationsPath)
			}
			if err != nil {
				return fmt.Errorf("migrate %s: %w", direction, err)
			}
			log.Info("migrations done", "direction", direction, "db", cfg.Database.Path)
			return nil
		},
	}
}
