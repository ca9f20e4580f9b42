package cmd

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func Run() {
	// Contexts without an attached logger fall back to the global one.
	zerolog.DefaultContextLogger = &log.Logger

	var command = &cobra.Command{
		Use:   "camoufox-automation",
		Short: "Browser automation task engine backed by the camoufox worker",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	command.AddCommand(apiCmd())
	command.AddCommand(workerCmd())
	command.AddCommand(migrateCmd())

	if err := command.Execute(); err != nil {
		log.Fatal().Msgf("failed to execute command, err: %v", err.Error())
	}
}
