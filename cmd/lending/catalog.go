// cmd/lending/catalog.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lendingdesk/internal/client"
)

func newCatalogCmd(connect func() *client.Client) *cobra.Command {
	cmd := &cobra.Command{Use: "catalog", Short: "Import and export the pipe-delimited catalog file"}

	imp := &cobra.Command{
		Use:   "import <file>",
		Short: "Load items from a file of id|title|author|year|category|copies lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			result, err := connect().ImportCatalog(cmd.Context(), f)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	var output string
	exp := &cobra.Command{
		Use:   "export",
		Short: "Write the catalog in import format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" {
				return connect().ExportCatalog(cmd.Context(), cmd.OutOrStdout())
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := connect().ExportCatalog(cmd.Context(), f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %s: %w", output, err)
			}
			return nil
		},
	}
	exp.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")

	cmd.AddCommand(imp, exp)
	return cmd
}
