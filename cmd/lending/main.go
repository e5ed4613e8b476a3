// cmd/lending/main.go
package main

import (
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"lendingdesk/internal/client"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var serverURL string

	root := &cobra.Command{
		Use:           "lending",
		Short:         "Lending desk: catalog, members, loans and fines",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", getEnv("LENDING_SERVER_URL", "http://localhost:8080"),
		"lending desk server URL")

	connect := func() *client.Client { return client.New(serverURL) }

	root.AddCommand(
		newServeCmd(),
		newItemsCmd(connect),
		newMembersCmd(connect),
		newLoansCmd(connect),
		newReportsCmd(connect),
		newCatalogCmd(connect),
	)
	return root
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func printJSON(w io.Writer, v any) error {
	out, err := codec.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
