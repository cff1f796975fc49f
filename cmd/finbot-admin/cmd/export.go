package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"finbot/internal/export"
)

func newExportCmd() *cobra.Command {
	var (
		userID int64
		out    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a user's transactions as CSV",
		Long: `Write every transaction of the user, newest first, in the same CSV
format the bot sends. Without --out the document goes to stdout.

Example:
  finbot-admin export --user 42 --out finance_export.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(userID); err != nil {
				return err
			}

			res, err := openBackend(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeBackend(res)

			rows, err := res.Service.Export(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "Nothing to export.")
				return nil
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				defer f.Close()
				w = f
			}

			if err := export.WriteCSV(w, rows); err != nil {
				return err
			}
			if out != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d transactions to %s\n", len(rows), out)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "Telegram user id")
	cmd.Flags().StringVar(&out, "out", "", "output file (default stdout)")
	return cmd
}
