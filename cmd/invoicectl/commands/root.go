// Package commands implements the invoicectl CLI.
package commands

import (
	"time"

	"github.com/spf13/cobra"

	"invoiceflow/internal/client"
)

var (
	serverURL string
	api       *client.Client

	pollInterval time.Duration
	tickInterval time.Duration
)

func Execute() error {
	root := &cobra.Command{
		Use:   "invoicectl",
		Short: "Upload and correct invoice documents from the command line",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			api = client.New(serverURL)
		},
	}

	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "document API base URL")

	root.AddCommand(processCmd(), showCmd(), editCmd(), productsCmd(), suggestCmd())
	return root.Execute()
}
