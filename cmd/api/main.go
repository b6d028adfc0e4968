package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "api",
	Short:        "api serves resume uploads and bridges generation requests to the backend",
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	addServeFlags(rootCmd)
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
