package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"invoiceflow/internal/product"
)

func productsCmd() *cobra.Command {
	var documentType string

	cmd := &cobra.Command{
		Use:   "products [documentID]",
		Short: "List the line items stored for a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := product.NewManager(args[0], documentType, api, api)
			if err := mgr.Load(cmd.Context()); err != nil {
				return err
			}

			items := mgr.Items()
			if len(items) == 0 {
				fmt.Println("no products")
				return nil
			}

			fields := mgr.Fields(cmd.Context())
			for i, item := range items {
				fmt.Printf("product #%d\n", i+1)
				for _, f := range fields {
					if value, ok := item[f.Name]; ok {
						fmt.Printf("  %-16s %v\n", f.Name, value)
					}
				}
			}
			if summary := mgr.Summary(); summary != "" {
				fmt.Println(summary)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&documentType, "type", "invoice", "document type for the field schema")
	return cmd
}
