package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caedonai/lord-commander-sub003/internal/security"
)

var flagKind string

var validateCmd = &cobra.Command{
	Use:   "validate <value>",
	Short: "Validate one untrusted input value",
	Long: `Validate a single value against the rules for its kind:

  name             user-chosen identifier (project name)
  package-manager  whitelist-checked manager identifier
  path             file path resolved under the working directory
  shell-arg        single command argument

Exit status is non-zero when the value is invalid.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKind(flagKind)
		if err != nil {
			return err
		}

		result := security.ValidateInput(args[0], kind, &security.Options{Strict: cfg.Strict})

		fmt.Printf("valid:      %v\n", result.Valid)
		fmt.Printf("risk score: %d\n", result.RiskScore)
		if result.Sanitized != "" {
			fmt.Printf("sanitized:  %s\n", result.Sanitized)
		}
		for _, v := range result.Violations {
			fmt.Printf("violation:  [%s] %s: %s\n", v.Severity, v.Kind, v.Description)
			if v.Remediation != "" {
				fmt.Printf("            fix: %s\n", v.Remediation)
			}
		}
		for _, s := range result.Suggestions {
			fmt.Printf("suggestion: %s\n", s)
		}
		for _, w := range result.Warnings {
			fmt.Printf("warning:    %s\n", w)
		}

		if !result.Valid {
			return fmt.Errorf("input is invalid (%d violations)", len(result.Violations))
		}
		return nil
	},
}

func parseKind(s string) (security.InputKind, error) {
	switch s {
	case "name":
		return security.KindName, nil
	case "package-manager":
		return security.KindPackageManager, nil
	case "path":
		return security.KindPath, nil
	case "shell-arg":
		return security.KindShellArg, nil
	default:
		return 0, fmt.Errorf("unknown kind %q: use name, package-manager, path, or shell-arg", s)
	}
}

func init() {
	validateCmd.Flags().StringVar(&flagKind, "kind", "name", "input kind to validate against")
	rootCmd.AddCommand(validateCmd)
}
