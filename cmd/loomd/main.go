// Package main implements the loomd CLI: a host wiring configuration,
// providers and the workflow engine. It adds no coordination semantics
// of its own.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "loomd",
	Short:   "Durable snippet workflow engine",
	Long:    "loomd hosts the snippet processing workflows: embedding generation,\nmulti-agent code review, snippet persistence and grounded answering.",
	Version: version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(askCmd)
}
