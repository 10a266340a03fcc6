package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/holysaw/holysaw/internal/config"
	"github.com/holysaw/holysaw/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "holysaw",
	Short: "Holysaw is an expression driven grid sequencer",
	Long: `Holysaw renders songs whose every sample is computed by expressions:
a preamble defines the instruments, a grid of timed cells sequences them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		var err error
		if cfg, err = config.Load(path); err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
		}
		if cmd.Flags().Changed("log-format") {
			cfg.Log.Format, _ = cmd.Flags().GetString("log-format")
		}
		level, err := logging.ParseLevel(cfg.Log.Level)
		if err != nil {
			return err
		}
		logger = logging.New(level, cfg.Log.Format)
		return nil
	},
}

// Execute runs the command named on the command line.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file; defaults to holysaw/config.yml in the user config directory")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")
}
