package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "client-billing",
	Short: "Client plan and billing lifecycle service",
	Long:  "Plan catalog, enrollments, billing periods, payment intents and payment reconciliation for the auction platform.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
