package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caedonai/lord-commander-sub003/internal/security"
)

var argsCmd = &cobra.Command{
	Use:   "args [--] <argv...>",
	Short: "Sanitize a command argument vector",
	Long: `Sanitize arguments before they reach a process-execution wrapper.

In strict mode (--strict) any injection-pattern match fails the command.
Otherwise dangerous tokens are removed best-effort and the surviving
arguments are printed one per line.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sanitized, err := security.SanitizeCommandArgs(args, &security.Options{Strict: cfg.Strict})
		if err != nil {
			if errors.Is(err, security.ErrInjection) {
				return fmt.Errorf("rejected: %w", err)
			}
			return err
		}
		for _, arg := range sanitized {
			fmt.Println(arg)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(argsCmd)
}
