package cmd

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sergeevgit1/camoufox-automation/internal/config"
	"github.com/sergeevgit1/camoufox-automation/internal/infra/postgres"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		Run: func(cmd *cobra.Command, args []string) {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			ctx := context.Background()
			cfg := config.Load()

			store, err := postgres.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				log.Fatal().Err(err).Msg("postgres unavailable")
			}
			defer store.Close()

			if err := store.Migrate(ctx); err != nil {
				log.Fatal().Err(err).Msg("migration failed")
			}
		},
	}
}
