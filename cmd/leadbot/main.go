package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/leadbot/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "leadbot",
		Short: "Leadbot CLI - chat with the sales assistant",
		Long: `Leadbot CLI talks to a running leadbotd server.

Environment variables:
  LEADBOT_API_URL       API base URL (default: http://localhost:8080)
  LEADBOT_ADMIN_TOKEN   Admin token, required for listing leads`,
		Version: version,
	}

	client.AddGlobalFlags(rootCmd)

	rootCmd.AddCommand(client.ChatCmd())
	rootCmd.AddCommand(client.HistoryCmd())
	rootCmd.AddCommand(client.LeadsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
