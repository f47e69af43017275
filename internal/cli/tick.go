package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"jobtick/internal/app"
	"jobtick/internal/handlers"
	"jobtick/internal/lock"
	"jobtick/internal/registry"
)

func NewTickCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run exactly one scheduler tick and print the stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := newLogger(cfg.Logging)

			ctx := context.Background()
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

			stats, err := sched.RunDueScheduledJobs(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Printf("due=%d executed=%d skipped=%d failed=%d\n",
				stats.Due, stats.Executed, stats.Skipped, stats.Failed)
			return nil
		},
	}
	return cmd
}
