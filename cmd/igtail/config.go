package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"igtail/pkg/config"
	"igtail/pkg/ui"
)

var forceInit bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage igtail configuration files.

Configuration is merged from, highest priority first:
  - Command line flags
  - Environment variables (IGTAIL_*, also read from .env and ~/.igtail.env)
  - Configuration file
  - Default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with every option at its default",
	Long: `Write the default configuration as YAML.

The file is created as '.igtail.yaml' in the current directory unless a
different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging all sources. The account store
passphrase is never printed.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(nil); err != nil {
			return err
		}
		ui.PrintSuccess("Configuration is valid")
		ui.PrintInfo("Variant", cfg.Instagram.ClientVariant)
		ui.PrintInfo("Account store", fmt.Sprintf("%s (%s)", cfg.Accounts.Store, cfg.Accounts.Path))
		ui.PrintInfo("Proxies", fmt.Sprintf("%d", len(cfg.Proxy.Addresses)))
		ui.PrintInfo("Output", cfg.Output.Directory)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configValidateCmd)

	configInitCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = ".igtail.yaml"
	}

	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("configuration file %s already exists, use --force to overwrite", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Add proxy addresses under proxy.addresses")
	fmt.Println("2. Add host accounts with 'igtail accounts add <login>'")
	fmt.Println("3. Start collecting with 'igtail collect <username>'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if err := loadConfig(nil); err != nil {
		return err
	}

	display := *cfg
	if display.Accounts.Passphrase != "" {
		display.Accounts.Passphrase = "***"
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	if configFile != "" {
		fmt.Printf("\nConfiguration file: %s\n", configFile)
	}
	return nil
}
