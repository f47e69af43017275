package cli

import (
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobtick",
		Short: "Recurring job scheduler with store-backed leases",
	}
	cmd.PersistentFlags().String("config", "jobtick.yaml", "path to config file")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewTickCmd())
	cmd.AddCommand(NewJobsCmd())
	return cmd
}
