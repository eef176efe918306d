package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tasktwin",
		Short: "A two-person task list with gated access",
		Long: `TaskTwin serves a shared task list for exactly two collaborators.

Sign-in establishes who you are; a separate authorization step decides
whether you are one of the current pair (or the admin who picks them).
Authorization results are cached so a flaky backend does not lock the
pair out of their own list.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		initCmd(),
		checkCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}
