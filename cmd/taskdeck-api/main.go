package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "taskdeck-api",
	Short: "TaskDeck API - Multi-tenant task tracking API",
	Long:  `A production-ready Go API with JWT auth, team-based permissions, rate limiting, and observability.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
