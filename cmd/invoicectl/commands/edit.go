package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"invoiceflow/internal/editor"
)

func editCmd() *cobra.Command {
	var sets []string

	cmd := &cobra.Command{
		Use:   "edit [documentID]",
		Short: "Correct extracted field values on a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			documentID := args[0]

			status, err := api.Status(cmd.Context(), documentID)
			if err != nil {
				return err
			}

			ed := editor.NewEditor(documentID, status.Fields, api)
			ed.EnterEdit()
			for _, set := range sets {
				key, value, ok := strings.Cut(set, "=")
				if !ok {
					return fmt.Errorf("invalid --set %q, want key=value", set)
				}
				ed.SetField(key, value)
			}

			if missing := ed.MissingRequired(); len(missing) > 0 {
				fmt.Printf("note: required fields still empty: %s\n", strings.Join(missing, ", "))
			}
			if !ed.Dirty() {
				fmt.Println("nothing changed")
				return nil
			}

			result, err := ed.Save(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("saved %d field(s): %s\n",
				len(result.UpdatedFields), strings.Join(result.UpdatedFields, ", "))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "field assignment key=value (repeatable)")
	return cmd
}
