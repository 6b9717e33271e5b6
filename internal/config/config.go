package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty   bool   `env:"LOG_PRETTY" envDefault:"true"`
	// OTelEndpoint enables trace export when set.
	OTelEndpoint string `env:"OTEL_ENDPOINT"`
	// StrictAnswerFields makes the judge require every answer field the
	// player's stored tier always asks for.
	StrictAnswerFields  bool `env:"STRICT_ANSWER_FIELDS" envDefault:"false"`
	LeaderboardMax      int  `env:"LEADERBOARD_MAX" envDefault:"100"`
	DailyLeaderboardMax int  `env:"DAILY_LEADERBOARD_MAX" envDefault:"50"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.LeaderboardMax <= 0 || cfg.DailyLeaderboardMax <= 0 {
		return Config{}, fmt.Errorf("leaderboard limits must be positive")
	}
	return cfg, nil
}
