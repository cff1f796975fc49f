package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResetCmd() *cobra.Command {
	var (
		userID  int64
		confirm bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every transaction of a user",
		Long: `Irreversibly delete the user's ledger. When AMQP is configured the
reset is announced so the spreadsheet mirror drops the user's rows too.
A running bot keeps its cached summaries, so it may show pre-reset totals
for up to REPORT_CACHE_TTL.

Example:
  finbot-admin reset --user 42 --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(userID); err != nil {
				return err
			}
			if !confirm {
				return fmt.Errorf("refusing to reset user %d without --yes", userID)
			}

			res, err := openBackend(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer closeBackend(res)

			n, err := res.Service.Reset(cmd.Context(), userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d transactions of user %d\n", n, userID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "Telegram user id")
	cmd.Flags().BoolVar(&confirm, "yes", false, "confirm the reset")
	return cmd
}
