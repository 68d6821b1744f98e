package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	baseURL   string
	timeout   time.Duration
	token     string
	actorID   string
	actorRole string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tontiflex-cli",
		Short:         "TontiFlex CLI tool",
		Long:          `A command line interface for the TontiFlex API and loan calculations.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the TontiFlex API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("TONTIFLEX_TOKEN"), "Bearer token (when the server runs with AUTH_ENABLED)")
	rootCmd.PersistentFlags().StringVar(&actorID, "actor-id", "cli", "Actor id sent in X-Actor-ID when no token is given")
	rootCmd.PersistentFlags().StringVar(&actorRole, "actor-role", "admin", "Actor role sent in X-Actor-Role when no token is given")

	rootCmd.AddCommand(
		newScheduleCmd(),
		newBalanceCmd(),
		newTransactionCmd(),
		newReconcileCmd(),
		newTokenCmd(),
		newMigrateCmd(),
	)

	return rootCmd
}
