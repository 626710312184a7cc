package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "appdeck",
		Short: "Session and preview orchestration service",
		Long: `appdeck keeps AI-driven chat sessions, their git branches and their
live preview instances consistent. The serve command runs the HTTP API with
scheduled idle reclamation; sweep runs one reclaim pass and exits.`,
	}

	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewSweepCommand())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
