// Package cmd wires the sanitization engine into a cobra CLI so every entry
// point can be exercised from the shell: input validation, command-argument
// sanitization, stack-trace redaction, and object sanitization.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/caedonai/lord-commander-sub003/internal/config"
	"github.com/caedonai/lord-commander-sub003/internal/log"
)

var (
	cfg    *config.Config
	logger log.Logger

	flagStrict bool
	flagLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "guard",
	Short: "Sanitize and validate untrusted runtime data",
	Long: `guard takes untrusted input - CLI arguments, arbitrary objects, error
payloads, stack traces - and produces a version safe to log, persist, or
forward, with a quantified security analysis attached.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		if cmd.Flags().Changed("strict") {
			cfg.Strict = flagStrict
		}
		if cmd.Flags().Changed("level") {
			cfg.Level = flagLevel
		}

		level := slog.LevelInfo
		if cfg.LogLevel == "debug" {
			level = slog.LevelDebug
		}
		logger = log.New(log.Config{Level: level, JSON: cfg.LogJSON})
		slog.SetDefault(logger)
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagStrict, "strict", false,
		"reject dangerous input instead of sanitizing it")
	rootCmd.PersistentFlags().StringVar(&flagLevel, "level", "standard",
		"sanitization level: minimal, standard, strict, paranoid")
}
