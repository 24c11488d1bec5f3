package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/haskel/cubetime/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	Long: `Display the effective configuration: the config file merged over the
defaults, with --data-dir and --verbose applied.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

var validateOnly bool

func init() {
	configCmd.Flags().BoolVar(&validateOnly, "validate", false, "only validate config, don't print")
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		if jsonOut {
			_ = printJSON(out, map[string]any{"valid": false, "error": err.Error()})
		} else {
			fmt.Fprintf(out, "Configuration invalid: %v\n", err)
		}
		return err
	}

	if validateOnly {
		if jsonOut {
			return printJSON(out, map[string]any{"valid": true})
		}
		fmt.Fprintln(out, "Configuration is valid")
		return nil
	}

	if jsonOut {
		return printJSON(out, cfg)
	}
	return printYAML(cmd, cfg)
}

func printYAML(cmd *cobra.Command, cfg *config.Config) error {
	masked := *cfg
	if masked.Auth.Password != "" {
		masked.Auth.Password = "****"
	}
	data, err := yaml.Marshal(&masked)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
