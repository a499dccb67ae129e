package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ArtsyMacaw/kaprica/pkg/errors"
	"github.com/ArtsyMacaw/kaprica/pkg/logger"

	"github.com/spf13/cobra"
)

const (
	unknownValue = "unknown"
)

var (
	Version   string
	BuildTime string
	GitCommit string
)

var defaultTimeout = 10 * time.Second
var globalTimeout time.Duration
var outputFormat string
var dryRunFlag bool
var assumeYesFlag bool
var databaseOverride string
var configOverride string
var logLevel string

var rootCmd = &cobra.Command{
	Use:   "kapc",
	Short: "Clipboard history tool for kaprica",
	Long: `kapc is the command-line companion to kapricad, kaprica's Wayland
clipboard manager daemon. It copies, pastes, searches, and deletes entries
from the shared history database kapricad maintains.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if globalTimeout <= 0 {
			globalTimeout = defaultTimeout
		}
		level := logLevel
		if !cmd.Flags().Changed("log-level") {
			if envLevel := os.Getenv("KAPRICA_LOG_LEVEL"); envLevel != "" {
				level = envLevel
			}
		}
		logger.SetLevel(level)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		ver := Version
		if ver == "" {
			ver = "dev"
		}
		bt := BuildTime
		if bt == "" {
			bt = unknownValue
		}
		gc := GitCommit
		if gc == "" {
			gc = unknownValue
		}

		fmt.Printf("kapc version %s\n", ver)
		fmt.Printf("Built: %s\n", bt)
		fmt.Printf("Git commit: %s\n", gc)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		exitCode := errors.HandleReturn(err)
		os.Exit(int(exitCode))
	}
}

func GetContext() (context.Context, context.CancelFunc) {
	timeout := globalTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return context.WithTimeout(context.Background(), timeout)
}

func init() {
	RegisterCommands(rootCmd)

	rootCmd.PersistentFlags().DurationVar(&globalTimeout, "timeout", defaultTimeout, "Timeout for the context returned by GetContext (e.g., 10s, 1m); store operations do not use it")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table", "Output format (table, modern, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&dryRunFlag, "dry-run", false, "Show what would be done without making changes")
	rootCmd.PersistentFlags().BoolVarP(&assumeYesFlag, "yes", "y", false, "Skip confirmation prompts")
	rootCmd.PersistentFlags().StringVar(&databaseOverride, "database", "", "History database path (default: XDG data dir)")
	rootCmd.PersistentFlags().StringVar(&configOverride, "config", "", "Config file path override")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error, fatal, panic)")
}
