package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/madgic/madgic-chat/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
	Long:  `Inspect and validate the configuration read from the environment, .env files and CONFIG_FILE.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE:  runConfigShow,
}

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema of the configuration",
	RunE:  runConfigSchema,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSchemaCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	out, err := cfg.YAML()
	if err != nil {
		return fmt.Errorf("render config: %w", err)
	}
	_, err = os.Stdout.Write(out)
	return err
}

func runConfigSchema(_ *cobra.Command, _ []string) error {
	out, err := json.MarshalIndent(config.Schema(), "", "  ")
	if err != nil {
		return fmt.Errorf("render schema: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func runConfigValidate(_ *cobra.Command, _ []string) error {
	if _, err := config.Load(); err != nil {
		return err
	}
	fmt.Println("✓ configuration is valid")
	return nil
}
