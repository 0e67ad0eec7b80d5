// Command toolrc evaluates a tool plugin once, either in a private local
// sandbox or on a running toolrc server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "toolrc",
		Short:         "Evaluate sandboxed tool plugins",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newEvalCmd(), newVersionCmd())
	return root
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "toolrc: %v\n", err)
		os.Exit(1)
	}
}
