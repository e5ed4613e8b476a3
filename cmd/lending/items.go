// cmd/lending/items.go
package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"lendingdesk/internal/client"
	"lendingdesk/internal/server"
)

func newItemsCmd(connect func() *client.Client) *cobra.Command {
	cmd := &cobra.Command{Use: "items", Short: "Manage catalog items"}

	var req server.AddItemRequest
	add := &cobra.Command{
		Use:   "add",
		Short: "Add an item to the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			item, err := connect().AddItem(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), item)
		},
	}
	add.Flags().StringVar(&req.ID, "id", "", "13-digit item id")
	add.Flags().StringVar(&req.Title, "title", "", "title")
	add.Flags().StringVar(&req.Author, "author", "", "author")
	add.Flags().IntVar(&req.Year, "year", 0, "publication year")
	add.Flags().StringVar(&req.Category, "category", "", "category")
	add.Flags().IntVar(&req.Copies, "copies", 1, "number of copies")
	_ = add.MarkFlagRequired("id")
	_ = add.MarkFlagRequired("title")
	_ = add.MarkFlagRequired("author")
	_ = add.MarkFlagRequired("year")

	adjust := &cobra.Command{
		Use:   "adjust <item-id> <delta>",
		Short: "Add or withdraw copies of an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := strconv.Atoi(args[1])
			if err != nil {
				return err
			}
			item, err := connect().AdjustCopies(cmd.Context(), args[0], delta)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), item)
		},
	}

	var by, category string
	search := &cobra.Command{
		Use:   "search [value]",
		Short: "Search the catalog by title, author or year",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := ""
			if len(args) == 1 {
				value = args[0]
			}
			items, err := connect().SearchItems(cmd.Context(), by, value, category)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), items)
		},
	}
	search.Flags().StringVar(&by, "by", "title", "field to match: title, author or year (empty lists everything)")
	search.Flags().StringVar(&category, "category", "", "restrict to one category")

	get := &cobra.Command{
		Use:   "get <item-id>",
		Short: "Show one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := connect().GetItem(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), item)
		},
	}

	cmd.AddCommand(add, adjust, search, get)
	return cmd
}
