package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/caedonai/lord-commander-sub003/internal/security"
)

var flagAnalyze bool

var traceCmd = &cobra.Command{
	Use:   "trace [file]",
	Short: "Sanitize a stack trace from a file or stdin",
	Long: `Redact filesystem paths, usernames, and home directories from a stack
trace. With --analyze, report the sensitive patterns found instead of
rewriting the trace.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		trace, err := readInput(args)
		if err != nil {
			return err
		}

		if flagAnalyze {
			report := security.AnalyzeStackTrace(trace)
			fmt.Printf("risk: %s\n", report.RiskLevel)
			for _, f := range report.Findings {
				fmt.Printf("line %d: %s: %s\n", f.Line, f.Pattern, f.Excerpt)
			}
			return nil
		}

		fmt.Println(security.SanitizeStackTrace(trace, security.DefaultTraceConfig()))
		return nil
	},
}

// readInput returns the content of the named file, or stdin when no file is
// given.
func readInput(args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", args[0], err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}

func init() {
	traceCmd.Flags().BoolVar(&flagAnalyze, "analyze", false,
		"report sensitive patterns instead of sanitizing")
	rootCmd.AddCommand(traceCmd)
}
