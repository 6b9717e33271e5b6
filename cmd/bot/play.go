package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"neurotrainer/internal/client"
	"neurotrainer/internal/engine"
	"neurotrainer/internal/gamedata"
	"neurotrainer/internal/session"
	"neurotrainer/internal/snapshot"
	"neurotrainer/internal/store"
)

type playOptions struct {
	user     string
	mode     string
	rounds   int
	accuracy float64
	think    time.Duration
	vault    string
	pin      string
	seed     uint64
}

func playCmd() *cobra.Command {
	var opts playOptions
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play rounds against the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			base, _ := cmd.Flags().GetString("server")
			return play(cmd.Context(), base, opts)
		},
	}
	cmd.Flags().StringVar(&opts.user, "user", "", "user id (default: random bot-<uuid>)")
	cmd.Flags().StringVar(&opts.mode, "mode", string(gamedata.ModeStandard), "STANDARD, DAILY_CASUAL or DAILY_DEATH")
	cmd.Flags().IntVar(&opts.rounds, "rounds", 20, "maximum rounds to play")
	cmd.Flags().Float64Var(&opts.accuracy, "accuracy", 0.8, "probability of answering each question correctly")
	cmd.Flags().DurationVar(&opts.think, "think", 150*time.Millisecond, "delay before each answer")
	cmd.Flags().StringVar(&opts.vault, "vault", "bot.db", "SQLite file for the local snapshot")
	cmd.Flags().StringVar(&opts.pin, "pin", "", "set this pin on the profile before playing")
	cmd.Flags().Uint64Var(&opts.seed, "seed", uint64(time.Now().UnixNano()), "answerer random seed")
	return cmd
}

func play(ctx context.Context, base string, opts playOptions) error {
	mode, err := gamedata.ParseMode(opts.mode)
	if err != nil {
		return err
	}
	if opts.accuracy < 0 || opts.accuracy > 1 {
		return fmt.Errorf("accuracy %v out of range [0,1]", opts.accuracy)
	}
	if opts.user == "" {
		opts.user = "bot-" + uuid.NewString()[:8]
	}

	vault, err := snapshot.OpenVault(opts.vault)
	if err != nil {
		return err
	}
	defer vault.Close()
	app, err := vault.Load(ctx)
	if err != nil {
		return err
	}

	api := client.New(base)
	if opts.pin != "" {
		if err := api.SetPin(ctx, opts.user, opts.pin); err != nil {
			return fmt.Errorf("setting pin: %w", err)
		}
	}

	ans := newAnswerer(opts.accuracy, opts.think, opts.seed)
	eng := engine.New(app, engine.Config{API: api, Presenter: ans, Persister: vault})
	ans.attach(eng)
	if err := eng.SelectUser(opts.user); err != nil {
		return err
	}
	if err := eng.SetMode(mode); err != nil {
		return err
	}

	logger := log.With().Str("user", opts.user).Str("mode", string(mode)).Logger()
	logger.Info().Int("rounds", opts.rounds).Msg("starting")

loop:
	for i := 0; i < opts.rounds; i++ {
		if err := eng.Start(ctx); err != nil {
			if errors.Is(err, engine.ErrDailyPlayed) {
				logger.Warn().Msg("daily run already played today")
				break loop
			}
			return err
		}

		var o engine.Outcome
		select {
		case o = <-ans.outcomes:
		case <-ctx.Done():
			eng.Abandon()
			return ctx.Err()
		case <-time.After(engine.QuestionTimeout + engine.SubmitTimeout + 5*time.Second):
			eng.Abandon()
			return errors.New("round never completed")
		}
		logger.Info().
			Int("round", i+1).
			Bool("correct", o.Correct).
			Str("reason", o.Reason).
			Float64("reactionMs", o.ReactionMs).
			Int("score", o.Score).
			Str("tier", o.Tier.String()).
			Int("difficulty", o.DifficultyLevel).
			Msg("round judged")

		if mode == gamedata.ModeDailyDeath && !o.Correct {
			logger.Info().Msg("run over")
			break loop
		}
		select {
		case s := <-ans.ended:
			logger.Info().
				Int("rounds", s.RoundsPlayed).
				Int("accuracy", s.Accuracy).
				Int("bestReactionMs", s.BestReactionMs).
				Str("trend", string(s.SpeedTrend)).
				Msg("session ended")
			break loop
		default:
		}
	}

	stats := eng.SessionStats()
	logger.Info().
		Int("rounds", stats.RoundsPlayed).
		Int("accuracy", stats.Accuracy).
		Int("avgReactionMs", stats.AvgReactionMs).
		Str("trend", string(stats.SpeedTrend)).
		Msg("session stats")

	u := app.User(opts.user)
	if u == nil {
		return nil
	}
	progress := session.ProgressSummary(u.Sessions)
	booster := session.Booster(u.Sessions, u.LastBoosterDate, time.Now())
	logger.Info().
		Int("sessions", progress.TotalSessions).
		Float64("hours", progress.TotalHours).
		Bool("boosterDue", booster.IsDue).
		Int("blocks", booster.BlocksCompleted).
		Msg("progress")

	err = api.SyncProfile(ctx, opts.user, store.ProfileSync{
		DisplayName:   u.Name,
		TotalSessions: u.TotalSessions,
		TrainingBlock: u.TrainingBlock,
		DailyStreak:   u.DailyStreak,
	})
	if err != nil {
		return fmt.Errorf("syncing profile: %w", err)
	}
	return nil
}
