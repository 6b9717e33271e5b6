package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"neurotrainer/internal/client"
	"neurotrainer/internal/gamedata"
)

func leaderboardCmd() *cobra.Command {
	var (
		mode  string
		count int
	)
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the leaderboard for a mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := gamedata.ParseMode(mode)
			if err != nil {
				return err
			}
			base, _ := cmd.Flags().GetString("server")
			entries, err := client.New(base).Leaderboard(cmd.Context(), m, count)
			if err != nil {
				return fmt.Errorf("loading leaderboard: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RANK\tNAME\tSCORE\tTIER")
			for _, e := range entries {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", e.Rank, e.Name, e.Score, e.Tier)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(gamedata.ModeStandard), "STANDARD, DAILY_CASUAL or DAILY_DEATH")
	cmd.Flags().IntVar(&count, "count", 20, "number of entries")
	return cmd
}
