// Command capacity runs the capacity pipeline from the terminal: a live
// fetch, an offline summary of saved records, snapshot inspection and the
// kettle calculator.
package main

import (
	"fmt"
	"os"

	"scotland-capacity/internal/config"
	"scotland-capacity/internal/logging"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "capacity",
	Short: "Regional grid capacity summaries from the CKAN datastore",
	Long: `Fetches embedded capacity register records, keeps the ones in the
configured region and reports accepted, connected, export and import
capacity totals.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load(".env")
		logger = logging.Must()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CAPACITY_CONFIG"), "Path to YAML config (optional)")

	rootCmd.AddCommand(fetchCmd, summarizeCmd, snapshotCmd, kettleCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
