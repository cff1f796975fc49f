package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"finbot/internal/core"
	"finbot/internal/report"
)

func newStatsCmd() *cobra.Command {
	var (
		userID int64
		days   int
		kind   string
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Display a user's summary",
		Long: `Display income, expense and balance over a trailing window, followed
by the per-category breakdown the bot charts.

Windows: 1, 7, 30, 90, 180 or 365 days. --kind limits the breakdown to
income or expense.

Example:
  finbot-admin stats --user 42 --days 30 --kind expense`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(userID); err != nil {
				return err
			}
			if _, ok := report.PeriodFor(days); !ok {
				return fmt.Errorf("%w: %d", report.ErrInvalidWindow, days)
			}
			var only core.Kind
			if kind != "" {
				k, err := core.ParseKind(kind)
				if err != nil {
					return err
				}
				only = k
			}

			res, err := openBackend(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeBackend(res)

			engine := report.NewEngine(res.Store, report.WithCache(1, 0))
			summary, err := engine.Summarize(cmd.Context(), userID, days)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, report.FormatSummary(summary))
			for _, d := range report.Distributions(summary) {
				if only != "" && d.Kind != only {
					continue
				}
				fmt.Fprintf(w, "\n%s\n", d.Title())
				for _, s := range d.Slices {
					fmt.Fprintf(w, "  %s\n", s.Label())
				}
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "Telegram user id")
	cmd.Flags().IntVar(&days, "days", 30, "trailing window in days")
	cmd.Flags().StringVar(&kind, "kind", "", "breakdown for income or expense only")
	return cmd
}
