// cmd/lending/reports.go
package main

import (
	"time"

	"github.com/spf13/cobra"

	"lendingdesk/internal/client"
)

func newReportsCmd(connect func() *client.Client) *cobra.Command {
	cmd := &cobra.Command{Use: "reports", Short: "Circulation and fine reports"}

	overdue := &cobra.Command{
		Use:   "overdue",
		Short: "List unreturned loans past their due date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows, err := connect().OverdueLoans(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rows)
		},
	}

	var start, end string
	financial := &cobra.Command{
		Use:   "financial",
		Short: "Total fines over an optional return-date window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, err := parseDate(start)
			if err != nil {
				return err
			}
			to, err := parseDate(end)
			if err != nil {
				return err
			}
			report, err := connect().FinancialReport(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	financial.Flags().StringVar(&start, "start", "", "window start (YYYY-MM-DD or RFC 3339)")
	financial.Flags().StringVar(&end, "end", "", "window end (YYYY-MM-DD or RFC 3339)")

	var n int
	mostBorrowed := &cobra.Command{
		Use:   "most-borrowed",
		Short: "Rank items by loans issued",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ranking, err := connect().MostBorrowedItems(cmd.Context(), n)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ranking)
		},
	}
	mostBorrowed.Flags().IntVarP(&n, "top", "n", 10, "number of rows")

	mostActive := &cobra.Command{
		Use:   "most-active",
		Short: "Rank members by loans taken",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ranking, err := connect().MostActiveMembers(cmd.Context(), n)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ranking)
		},
	}
	mostActive.Flags().IntVarP(&n, "top", "n", 10, "number of rows")

	category := &cobra.Command{
		Use:   "category <name>",
		Short: "Copies, loans and loan rate for one category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := connect().CategoryStatistics(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}

	reconcile := &cobra.Command{
		Use:   "reconcile",
		Short: "Check lent-out copies against active loans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			discrepancies, err := connect().Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), discrepancies)
		},
	}

	cmd.AddCommand(overdue, financial, mostBorrowed, mostActive, category, reconcile)
	return cmd
}

// parseDate accepts a calendar date (start of day, UTC) or an RFC 3339
// timestamp. An empty string means no bound.
func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
