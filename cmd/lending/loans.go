// cmd/lending/loans.go
package main

import (
	"github.com/spf13/cobra"

	"lendingdesk/internal/client"
	"lendingdesk/internal/server"
)

func newLoansCmd(connect func() *client.Client) *cobra.Command {
	cmd := &cobra.Command{Use: "loans", Short: "Issue, return, renew and settle loans"}

	issue := &cobra.Command{
		Use:   "issue <item-id> <member-id>",
		Short: "Lend one copy of an item to a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			loan, err := connect().IssueLoan(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), loan)
		},
	}

	ret := &cobra.Command{
		Use:   "return <loan-id>",
		Short: "Return a loan and assess its fine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := connect().ReturnLoan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	renew := &cobra.Command{
		Use:   "renew <loan-id>",
		Short: "Extend a loan by one loan period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			due, err := connect().RenewLoan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), server.RenewLoanResponse{LoanID: args[0], DueAt: due})
		},
	}

	pay := &cobra.Command{
		Use:   "pay <loan-id>",
		Short: "Settle the fine of a returned loan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loan, err := connect().PayFine(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), loan)
		},
	}

	get := &cobra.Command{
		Use:   "get <loan-id>",
		Short: "Show one loan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loan, err := connect().GetLoan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), loan)
		},
	}

	cmd.AddCommand(issue, ret, renew, pay, get)
	return cmd
}
