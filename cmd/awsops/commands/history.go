package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/systmms/awsops/internal/config"
	dserrors "github.com/systmms/awsops/internal/errors"
	"github.com/systmms/awsops/internal/rotation/history"
)

func NewHistoryCommand(cfg *config.Config, deps *Deps) *cobra.Command {
	var (
		limit    int
		allUsers bool
		prune    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded rotation runs",
		Long: `List the rotation runs recorded in AWSOPS_HISTORY_DIR, newest first.

By default only runs for IAM_USER_NAME are shown; use --all for every user.
--prune removes records older than the given age before listing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Audit.HistoryDir == "" {
				return dserrors.MissingEnv(config.EnvHistoryDir)
			}
			store := history.NewFileStore(cfg.Audit.HistoryDir)

			if prune > 0 {
				removed, err := store.Prune(prune, deps.now())
				if err != nil {
					return err
				}
				cfg.Logger.Info("Pruned %d rotation records older than %s", removed, prune)
			}

			user := cfg.Rotation.UserName
			if allUsers {
				user = ""
			} else if user == "" {
				return dserrors.ConfigError{
					Field:      config.EnvIAMUserName,
					Message:    "required unless --all is given",
					Suggestion: "Export IAM_USER_NAME or pass --all",
				}
			}

			entries, err := store.List(user, limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				cfg.Logger.Info("No rotation history recorded")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "TIME\tUSER\tSTATUS\tDEACTIVATED\tNEW KEY\tERROR")
			for _, e := range entries {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.Timestamp.UTC().Format(time.RFC3339),
					e.User,
					e.Status,
					orDash(e.Deactivated),
					orDash(e.NewKeyID),
					orDash(firstLine(e.Error)),
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of runs to show (0 for all)")
	cmd.Flags().BoolVar(&allUsers, "all", false, "Show runs for every user")
	cmd.Flags().DurationVar(&prune, "prune", 0, "Delete records older than this age first (e.g. 2160h)")

	return cmd
}
