// Package main provides the KPI engine CLI entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/spherical-ai/kpi-engine/internal/config"
	"github.com/spherical-ai/kpi-engine/internal/observability"
)

var (
	cfgFile    string
	outputJSON bool
	verbose    bool

	cfg    *config.Config
	logger *observability.Logger
)

var rootCmd = &cobra.Command{
	Use:   "kpi-engine",
	Short: "Answer free-text questions against a tabular KPI knowledge base",
	Long: `kpi-engine retrieves the KPI row most relevant to a question and uses it
to ground a generated natural-language answer.

Typical flow:
  kpi-engine ingest --csv kpi_data.csv   # load rows, embed once, persist
  kpi-engine ask "what is gross production"
  kpi-engine chat                        # interactive session
  kpi-engine serve                       # HTTP API`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real deployments set env vars directly.
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := cfg.Observability.LogLevel
		if verbose {
			level = "debug"
		}
		format := cfg.Observability.LogFormat
		if outputJSON {
			format = "json"
		}
		logger = observability.NewLogger(observability.LogConfig{
			Level:       level,
			Format:      format,
			ServiceName: "kpi-engine",
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: env vars only)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "log in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
