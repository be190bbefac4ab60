package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "marky",
	Short: "Self-hosted bookmark manager",
	Long: `Marky keeps tagged bookmark collections in a local file, sqlite or
Redis, and serves them over HTTP with live updates.

Configuration is read from MARKY_* environment variables.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ marky: %v\n", err)
		os.Exit(1)
	}
}
