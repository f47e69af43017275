package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"jobtick/internal/config"
	"jobtick/internal/history"
	"jobtick/internal/repository"
	"jobtick/internal/repository/postgres"
	"jobtick/internal/repository/sqlite"
)

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var w io.Writer = os.Stderr
	if cfg.Console {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// openStore opens the job repository and the run-history recorder on one
// shared database handle.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (repository.JobRepository, history.Recorder, error) {
	switch cfg.Driver {
	case "postgres":
		repo, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		rec, err := history.NewPostgresRecorder(ctx, repo.DB())
		if err != nil {
			_ = repo.Close()
			return nil, nil, err
		}
		return repo, rec, nil
	case "sqlite":
		repo, err := sqlite.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		rec, err := history.NewSQLiteRecorder(ctx, repo.DB())
		if err != nil {
			_ = repo.Close()
			return nil, nil, err
		}
		return repo, rec, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
