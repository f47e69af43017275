package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"jobtick/internal/models"
	"jobtick/internal/schedule"
)

func NewJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage job definitions",
	}
	cmd.AddCommand(newJobsAddCmd())
	cmd.AddCommand(newJobsListCmd())
	cmd.AddCommand(newJobsEnableCmd(true))
	cmd.AddCommand(newJobsEnableCmd(false))
	return cmd
}

func newJobsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or update a job definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			taskID, _ := cmd.Flags().GetString("task")
			handlerID, _ := cmd.Flags().GetString("handler")
			cronExpr, _ := cmd.Flags().GetString("cron")
			intervalSec, _ := cmd.Flags().GetInt64("interval")
			configJSON, _ := cmd.Flags().GetString("job-config")
			disabled, _ := cmd.Flags().GetBool("disabled")

			if taskID == "" || handlerID == "" {
				return fmt.Errorf("--task and --handler are required")
			}
			if (cronExpr == "") == (intervalSec == 0) {
				return fmt.Errorf("exactly one of --cron or --interval is required")
			}
			if configJSON != "" && !json.Valid([]byte(configJSON)) {
				return fmt.Errorf("--job-config must be valid JSON")
			}

			job := models.Job{
				TaskID:    taskID,
				HandlerID: handlerID,
				Enabled:   !disabled,
				Config:    json.RawMessage(configJSON),
			}
			if cronExpr != "" {
				job.ScheduleKind = models.KindCron
				job.CronExpr = cronExpr
			} else {
				job.ScheduleKind = models.KindInterval
				job.IntervalSec = intervalSec
			}
			if err := schedule.Validate(job, time.Now().UTC()); err != nil {
				return err
			}

			ctx := context.Background()
			repo, _, err := openStore(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer repo.Close()

			id, err := repo.AddOrUpdate(ctx, job)
			if err != nil {
				return err
			}
			fmt.Printf("job %s saved (id=%d)\n", taskID, id)
			return nil
		},
	}
	cmd.Flags().String("task", "", "unique task identifier")
	cmd.Flags().String("handler", "", "handler ID to execute")
	cmd.Flags().String("cron", "", "five-field cron expression")
	cmd.Flags().Int64("interval", 0, "run interval in seconds")
	cmd.Flags().String("job-config", "", "JSON config passed to the handler")
	cmd.Flags().Bool("disabled", false, "create the job disabled")
	return cmd
}

func newJobsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			page, _ := cmd.Flags().GetInt("page")

			ctx := context.Background()
			repo, _, err := openStore(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer repo.Close()

			result, err := repo.GetAll(ctx, page, 50)
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			fmt.Printf("%-24s %-12s %-20s %-9s %6s %6s  %s\n",
				"TASK", "HANDLER", "SCHEDULE", "PHASE", "RUNS", "FAILS", "NEXT RUN")
			for _, job := range result.Items {
				fmt.Printf("%-24s %-12s %-20s %-9s %6d %6d  %s\n",
					job.TaskID, job.HandlerID, describeSchedule(job),
					job.Phase(now), job.RunCount, job.FailureCount,
					describeNextRun(job))
			}
			fmt.Printf("page %d/%d (%d jobs)\n", result.Page, result.TotalPages, result.TotalItems)
			return nil
		},
	}
	cmd.Flags().Int("page", 1, "result page")
	return cmd
}

func newJobsEnableCmd(enable bool) *cobra.Command {
	use, short := "enable <task>", "Re-enable a job"
	if !enable {
		use, short = "disable <task>", "Disable a job"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx := context.Background()
			repo, _, err := openStore(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer repo.Close()

			if enable {
				err = repo.Activate(ctx, args[0])
			} else {
				err = repo.DeActivate(ctx, args[0])
			}
			if err != nil {
				return err
			}
			fmt.Printf("job %s %sd\n", args[0], cmd.Name())
			return nil
		},
	}
	return cmd
}

func describeSchedule(job models.Job) string {
	switch job.ScheduleKind {
	case models.KindInterval:
		return fmt.Sprintf("every %ds", job.IntervalSec)
	case models.KindCron:
		return job.CronExpr
	default:
		return string(job.ScheduleKind)
	}
}

func describeNextRun(job models.Job) string {
	if job.NextRunAfter == nil {
		return "-"
	}
	return job.NextRunAfter.UTC().Format(time.RFC3339)
}
