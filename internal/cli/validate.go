package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid         bool     `json:"valid"`
	Error         string   `json:"error,omitempty"`
	URL           string   `json:"url,omitempty"`
	Transports    []string `json:"transports,omitempty"`
	Dialect       string   `json:"dialect,omitempty"`
	Subscriptions int      `json:"subscriptions"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration without connecting",
		Long: `Load the configuration file, apply defaults and flag overrides, and report
the first problem found. Exits non-zero when the configuration is invalid.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // The result is the output
		RunE: func(cmd *cobra.Command, args []string) error {
			result := ValidationResult{Valid: true}

			cfg, err := loadConfig(rootOpts)
			if err != nil {
				result = ValidationResult{Error: err.Error()}
			} else {
				result.URL = cfg.Transport.URL
				result.Transports = cfg.Transport.Transports
				result.Dialect = cfg.Transport.Dialect
				result.Subscriptions = len(cfg.Subscriptions)
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				if encErr := json.NewEncoder(out).Encode(result); encErr != nil {
					return encErr
				}
			} else if result.Valid {
				fmt.Fprintf(out, "✓ config valid: %s via %v (%s dialect, %d subscriptions)\n",
					result.URL, result.Transports, result.Dialect, result.Subscriptions)
			} else {
				fmt.Fprintf(out, "✗ %s\n", result.Error)
			}

			return err
		},
	}

	return cmd
}
