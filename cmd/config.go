package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/coco/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect coco configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the coco configuration including all resolved values.

This shows the final configuration after:
- Loading from the configuration file
- Applying environment variable overrides
- Setting default values
- Processing command-line flags

Examples:
  coco config show                  # Show all configuration as YAML
  coco config show --format json    # Show as JSON`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configFormat string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)

	configShowCmd.Flags().StringVar(&configFormat, "format", "yaml", "Output format (yaml, json)")
	AddFlagValidation(configShowCmd, "format", ValidateChoice("yaml", "yml", "json"))
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	switch configFormat {
	case "yaml", "yml":
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		if err := encoder.Encode(cfg); err != nil {
			return err
		}
		return encoder.Close()
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cfg)
	default:
		return fmt.Errorf("unsupported format: %s (supported: yaml, json)", configFormat)
	}
}
