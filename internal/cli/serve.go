package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"jobtick/internal/app"
	"jobtick/internal/handlers"
	"jobtick/internal/lock"
	"jobtick/internal/registry"
)

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run scheduler ticks periodically until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := newLogger(cfg.Logging)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			repo, rec, err := openStore(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer repo.Close()

			reg := registry.NewRegistry()
			if err := handlers.RegisterBuiltin(reg, log); err != nil {
				return err
			}

			sched := app.NewScheduler(repo, lock.NewStoreLeaseManager(repo), reg, rec, log, app.Options{
				LeaseDuration: time.Duration(cfg.Scheduler.LeaseDurationSec) * time.Second,
				BatchSize:     cfg.Scheduler.BatchSize,
			})
			runner := app.NewRunner(sched, time.Duration(cfg.Scheduler.TickIntervalSec)*time.Second, log)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return runner.Run(ctx)
			})
			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	return cmd
}
