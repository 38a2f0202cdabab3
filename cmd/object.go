package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caedonai/lord-commander-sub003/internal/security"
)

var objectCmd = &cobra.Command{
	Use:   "object [file]",
	Short: "Sanitize a JSON document from a file or stdin",
	Long: `Decode a JSON document, run it through the object sanitizer at the
configured level, and print the sanitized JSON plus the security analysis.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readInput(args)
		if err != nil {
			return err
		}

		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return fmt.Errorf("decoding JSON: %w", err)
		}

		objCfg := security.DefaultObjectConfig()
		objCfg.Level = security.ParseLevel(cfg.Level)
		objCfg.MaxDepth = cfg.MaxDepth
		objCfg.MaxProperties = cfg.MaxProperties
		objCfg.MaxStringLength = cfg.MaxStringLength
		objCfg.CacheEnabled = cfg.CacheEnabled
		objCfg.CacheTTL = cfg.CacheTTL()
		objCfg.CacheMaxEntries = cfg.CacheMaxEntries
		objCfg.MaxProcessingTime = cfg.MaxProcessingTime()
		objCfg.RedactPatterns = cfg.CompiledRedactPatterns()

		result := security.SanitizeObject(value, "", objCfg)

		out, err := json.MarshalIndent(result.Sanitized, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding sanitized value: %w", err)
		}
		fmt.Println(string(out))

		fmt.Printf("valid:    %v\n", result.Valid)
		fmt.Printf("class:    %s\n", result.OriginalClass)
		fmt.Printf("strategy: %s\n", result.StrategyApplied)
		for _, v := range result.Violations {
			fmt.Printf("violation: [%s] %s at %q: %s\n", v.Severity, v.Kind, v.Path, v.Description)
		}
		for _, w := range result.Warnings {
			fmt.Printf("warning:   %s\n", w)
		}
		if !result.Valid {
			return fmt.Errorf("object carries critical violations")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(objectCmd)
}
