package main

import (
	"fmt"
	"os"

	"SignalBot/pkg/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	envFile    string
	jsonOutput bool
)

// rootCmd is the base command for the scan control CLI
var rootCmd = &cobra.Command{
	Use:   "scanctl",
	Short: "Run SignalBot scans and helpers from the command line",
	Long: `scanctl runs the signal pipeline locally without the HTTP server,
Kafka, ClickHouse or Telegram. Market data is fetched live.

Examples:
  scanctl scan --class short
  scanctl pick --class long --consumer 42 --priority vip
  scanctl expiration 4H
  scanctl stake --strategy dalembert --balance 1000 --current 30 --won=false`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "optional dotenv file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of a table")
}

// loadConfig reads the config file when present, falling back to defaults.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return config.Parse(nil)
	}
	return config.LoadWithEnv(configPath)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
