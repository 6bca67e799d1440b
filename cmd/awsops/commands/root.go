package commands

import (
	"github.com/spf13/cobra"
	"github.com/systmms/awsops/internal/config"
	"github.com/systmms/awsops/internal/logging"
)

// NewRootCommand builds the awsops command tree. The configuration is read
// from the environment once, after flags are parsed, and shared by every
// subcommand.
func NewRootCommand(deps *Deps) *cobra.Command {
	var (
		noColor bool
		debug   bool
	)

	// Filled in by PersistentPreRunE
	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "awsops",
		Short: "AWS operations for CI - access key rotation and ECS metrics",
		Long: `awsops rotates the access key of a CI IAM user and hands the new pair to
GitHub Actions, and exports the latest CloudWatch metrics of an ECS service
to CSV.

All settings are read from environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewWithWriter(deps.stderr(), debug, noColor)

			loaded, err := config.FromEnv(deps.lookup(), logger)
			if err != nil {
				return err
			}
			*cfg = *loaded
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		NewRotateCommand(cfg, deps),
		NewMetricsCommand(cfg, deps),
		NewWhoamiCommand(cfg, deps),
		NewHistoryCommand(cfg, deps),
		NewCompletionCommand(),
	)

	return rootCmd
}
