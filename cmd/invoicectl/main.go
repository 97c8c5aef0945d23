package main

import (
	"os"

	"invoiceflow/cmd/invoicectl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
