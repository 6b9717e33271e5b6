package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"neurotrainer/internal/config"
	"neurotrainer/internal/db"
	"neurotrainer/internal/events"
	"neurotrainer/internal/logging"
	"neurotrainer/internal/metrics"
	"neurotrainer/internal/rounds"
	"neurotrainer/internal/store"
	"neurotrainer/internal/telemetry"
	"neurotrainer/internal/wshub"
)

func Run() error {
	appCfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logging.Setup(appCfg.LogLevel, appCfg.LogPretty); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "neurotrainer", appCfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn().Str("component", "server").Err(err).Msg("tracing shutdown")
		}
	}()

	srv := &Server{}

	var st store.Store
	if appCfg.DatabaseURL != "" {
		database, err := db.Connect(appCfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer database.Close()
		if err := database.Migrate(); err != nil {
			return err
		}
		log.Info().Str("component", "db").Msg("database connected and migrations applied")
		st = database
		srv.DB = database
	} else {
		log.Info().Str("component", "db").Msg("DATABASE_URL not set, using in-memory store")
		st = store.NewMemory()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bus := events.NewBus()

	srv.Rounds = rounds.NewService(st, rounds.Options{
		Events:              bus,
		Metrics:             metrics.New(reg),
		StrictFields:        appCfg.StrictAnswerFields,
		LeaderboardMax:      appCfg.LeaderboardMax,
		DailyLeaderboardMax: appCfg.DailyLeaderboardMax,
	})
	srv.Hub = wshub.NewHub()
	srv.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	go srv.Hub.Pump(ctx, bus)

	httpSrv := &http.Server{
		Addr:              "0.0.0.0:" + appCfg.Port,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("component", "server").Str("port", appCfg.Port).Msg("listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Str("component", "server").Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(sctx)
}

// Routes builds the HTTP mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/rounds", s.handleGenerate)
	mux.HandleFunc("POST /api/rounds/submit", s.handleSubmit)
	mux.HandleFunc("POST /api/pin", s.handleSetPin)
	mux.HandleFunc("POST /api/profile/sync", s.handleSyncProfile)
	mux.HandleFunc("GET /api/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("GET /api/feed", s.handleFeed)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics)
	}
	return traced(mux)
}
