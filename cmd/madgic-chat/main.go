package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	loadEnvFiles()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "madgic-chat",
	Short: "Chat with the task agent backend from a terminal or over HTTP",
	Long: `madgic-chat talks to the task agent backend in two modes: agent, which
streams the steps of a multi-step task before its final answer, and chatbot,
which streams a plain answer.

Examples:
  # Interactive chat
  madgic-chat chat
  madgic-chat chat --mode chatbot --stream-mode normal

  # One question, answer on stdout
  madgic-chat ask "Plan a trip to Italy"

  # HTTP API for browser clients
  madgic-chat serve

  # Inspect the effective configuration
  madgic-chat config show`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log at the configured LOG_LEVEL instead of warn in interactive commands")
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
