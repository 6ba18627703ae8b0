package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "batchmender",
	Short: "Autonomous batch remediation orchestrator for BSS problem tickets",
	Long: `batchmender drives stuck order-management and order-enrichment records
back to a healthy state: it discovers problem tickets flagged against a
telco BSS runtime, runs each one through the matching remediation engine
(Solution or OE), and reports the outcome back onto the ticket.

Get started:
  batchmender serve       Start the persistent gateway daemon (scheduler + REST API)
  batchmender scheduler   List, add, remove, export or import recurring schedules
  batchmender remediate   Run one item through a remediation engine directly
  batchmender status      Watch the scheduler's live cycle status
  batchmender config      View or edit configuration`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ~/.batchmender/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose/debug output")

	rootCmd.Version = Version
	rootCmd.AddCommand(
		serveCmd,
		schedulerCmd,
		remediateCmd,
		statusCmd,
		configCmd,
	)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	if verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
		slog.Debug("verbose logging enabled")
	}
}
