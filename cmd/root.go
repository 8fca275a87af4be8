package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/msedata/msesync/config"
	"github.com/msedata/msesync/logger"
)

var configPath string

var rootCMD = &cobra.Command{
	Use:   "msesync",
	Short: "Macedonian Stock Exchange issuer data service",
	Long: `msesync keeps a store of daily trading records per issuer and serves
them over a REST API. New data arrives by triggering the external scraper,
which fetches only the days missing since each issuer's last synced date.`,
}

func Execute() {
	if err := rootCMD.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCMD.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")
}

// loadConfig reads the config file and sets up logging. Shared by all
// subcommands.
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Setup(cfg.Logging)
	return cfg, nil
}
