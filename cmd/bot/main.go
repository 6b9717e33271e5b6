// Command bot plays rounds against a running server through the same engine
// a player's client uses, answering with a configurable accuracy.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"neurotrainer/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("bot failed")
		stop()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		level  string
		pretty bool
	)
	cmd := &cobra.Command{
		Use:           "bot",
		Short:         "Scripted neurotrainer player",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return logging.Setup(level, pretty)
		},
	}
	cmd.PersistentFlags().StringVar(&level, "log-level", "info", "log level")
	cmd.PersistentFlags().BoolVar(&pretty, "log-pretty", true, "human readable logs")
	cmd.PersistentFlags().String("server", "http://localhost:8080", "server base URL")

	cmd.AddCommand(playCmd(), leaderboardCmd())
	return cmd
}
