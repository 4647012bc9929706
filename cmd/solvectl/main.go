// Package main implements the solvectl CLI for manual operations
// against the solverd HTTP server.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the solverd HTTP server
	serverURL string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "solvectl",
	Short: "CLI for solverd HTTP server operations",
	Long: `solvectl is a command-line interface for interacting with the solverd HTTP server.
It provides commands for submitting solve tasks, watching their progress, and checking server health.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8000", "solverd server URL")
	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(healthCmd)
}
