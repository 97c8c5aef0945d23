package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"invoiceflow/internal/session"
)

func processCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process [file]",
		Short: "Upload a document and follow it until processing finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			ctrl := session.NewController(api, api, api, session.Config{
				PollInterval: pollInterval,
				TickInterval: tickInterval,
			}, session.Callbacks{
				OnTick: func(elapsed time.Duration) {
					fmt.Printf("\rprocessing... %ds", int(elapsed.Seconds()))
				},
				OnCompleted: func(status session.StatusResponse) {
					fmt.Printf("\rcompleted in document %s\n", status.DocumentID)
					printFields(status.Fields)
				},
				OnError: func(message string) {
					fmt.Printf("\rprocessing failed: %s\n", message)
				},
			})

			if err := ctrl.Run(cmd.Context(), filepath.Base(path), data); err != nil {
				return err
			}

			snap := ctrl.Snapshot()
			fmt.Printf("state: %s (progress %d%%)\n", snap.State, snap.State.Progress())
			return nil
		},
	}

	cmd.Flags().DurationVar(&pollInterval, "poll-interval", session.DefaultPollInterval, "status poll interval")
	cmd.Flags().DurationVar(&tickInterval, "tick-interval", session.DefaultTickInterval, "elapsed display interval")
	return cmd
}

func printFields(fields map[string]any) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-24s %v\n", k, fields[k])
	}
}
