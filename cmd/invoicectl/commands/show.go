package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func showCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [documentID]",
		Short: "Show the processing state and extracted fields of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := api.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("document: %s (%s)\n", status.DocumentID, status.Filename)
			fmt.Printf("status:   %s\n", status.Status)
			if status.ErrorMessage != "" {
				fmt.Printf("error:    %s\n", status.ErrorMessage)
			}
			if len(status.Fields) > 0 {
				fmt.Println("fields:")
				printFields(status.Fields)
			}
			return nil
		},
	}
	return cmd
}
