package cmd

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sergeevgit1/camoufox-automation/internal/api"
	"github.com/sergeevgit1/camoufox-automation/internal/config"
	"github.com/sergeevgit1/camoufox-automation/internal/infra/postgres"
	"github.com/sergeevgit1/camoufox-automation/internal/infra/redisq"
	"github.com/sergeevgit1/camoufox-automation/internal/usecase"
)

func apiCmd() *cobra.Command {
	var port int
	var command = &cobra.Command{
		Use:   "api",
		Short: "Start API server",
		Run: func(cmd *cobra.Command, args []string) {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			ctx := context.Background()
			cfg := config.Load()

			store, err := postgres.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				log.Fatal().Err(err).Msg("postgres unavailable")
			}
			defer store.Close()

			cli := redisq.New(cfg.Redis)
			if err := cli.Connect(ctx); err != nil {
				log.Fatal().Err(err).Msg("redis unavailable")
			}

			log.Info().Msgf("API server using stream: %s, group: %s", cfg.Redis.StreamKey, cfg.Redis.Group)

			submit := usecase.Submitter{Tasks: store, Sessions: store, Q: cli}
			server := api.NewServer(store, store, submit)
			server.Run(port)
		},
	}

	command.Flags().IntVarP(&port, "port", "p", 8080, "Port to run the server on")
	return command
}
