package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"igtail/pkg/config"
	"igtail/pkg/logger"
	"igtail/pkg/ui"
)

var (
	// Version information
	version   = "0.3.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool

	// cfg is loaded once per invocation by loadConfig.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "igtail",
	Short: "Collect account and post metadata through rotating proxies and accounts",
	Long: `igtail collects profile summaries and recent post metadata for Instagram accounts.

Requests are spread over a pool of egress proxies and a pool of host accounts.
Failing proxies are quarantined, challenged accounts are taken out of rotation,
and every target ends with either a complete result or a typed failure.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			logLevel = "error"
		}
		if !quiet && cmd.Name() == "collect" {
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .igtail.yaml or ~/.config/igtail/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress everything except errors")

	rootCmd.SetVersionTemplate(`igtail {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig merges file, environment and flags, then initializes logging.
func loadConfig(flags map[string]interface{}) error {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	loaded, err := config.Load(configFile, flags)
	if err != nil {
		return err
	}
	if err := logger.Initialize(&loaded.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	cfg = loaded
	return nil
}
