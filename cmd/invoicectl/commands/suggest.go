package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"invoiceflow/internal/suggest"
)

func suggestCmd() *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "suggest [fieldName]",
		Short: "Show previously used values for a field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" {
				values, err := api.Suggestions(cmd.Context(), args[0], suggest.CacheLimit)
				if err != nil {
					return err
				}
				for _, v := range values {
					fmt.Println(v)
				}
				return nil
			}

			box := suggest.NewBox(args[0], api, nil)
			if err := box.Load(cmd.Context()); err != nil {
				return err
			}
			box.SetInput(input)
			for _, v := range box.Suggestions() {
				fmt.Println(v)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "filter suggestions against this partial value")
	return cmd
}
