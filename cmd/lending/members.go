// cmd/lending/members.go
package main

import (
	"github.com/spf13/cobra"

	"lendingdesk/internal/client"
)

func newMembersCmd(connect func() *client.Client) *cobra.Command {
	cmd := &cobra.Command{Use: "members", Short: "Register and inspect members"}

	register := &cobra.Command{
		Use:   "register <member-id> <name> <contact>",
		Short: "Register a new member",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			member, err := connect().RegisterMember(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), member)
		},
	}

	status := &cobra.Command{
		Use:   "status <member-id>",
		Short: "Show active loans, amount owed and borrowing eligibility",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := connect().MemberStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}

	get := &cobra.Command{
		Use:   "get <member-id>",
		Short: "Show a member with loan history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			member, err := connect().GetMember(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), member)
		},
	}

	cmd.AddCommand(register, status, get)
	return cmd
}
