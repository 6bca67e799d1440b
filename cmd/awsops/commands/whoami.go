package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/systmms/awsops/internal/awsclient"
	"github.com/systmms/awsops/internal/config"
	"github.com/systmms/awsops/internal/logging"
)

func NewWhoamiCommand(cfg *config.Config, deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the AWS identity behind the configured credentials",
		Long: `Call STS GetCallerIdentity with the configured credentials. Use it as a
preflight before rotate to confirm which principal the keys belong to.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := deps.STS(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			id, err := awsclient.CallerIdentity(cmd.Context(), client)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "ACCOUNT\t%s\n", id.Account)
			_, _ = fmt.Fprintf(w, "ARN\t%s\n", id.Arn)
			_, _ = fmt.Fprintf(w, "USER ID\t%s\n", id.UserID)
			_, _ = fmt.Fprintf(w, "REGION\t%s\n", cfg.AWS.Region)
			if err := w.Flush(); err != nil {
				return err
			}

			if cfg.AWS.HasStaticCredentials() {
				cfg.Logger.Debug("Using explicit credentials %s / %s", cfg.AWS.AccessKeyID, logging.Secret(cfg.AWS.SecretAccessKey))
			}
			return nil
		},
	}

	return cmd
}
