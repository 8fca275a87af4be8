package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/msedata/msesync/api"
	"github.com/msedata/msesync/database"
	"github.com/msedata/msesync/scrape"
	"github.com/msedata/msesync/store"
)

var serverCMD = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	Long:  `Start the HTTP API server serving issuer data, watermarks and the sync trigger.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			logrus.Fatalf("Failed to load config: %v", err)
		}

		logrus.Info("Connecting to database...")
		db, err := database.Connect(cfg.Database)
		if err != nil {
			logrus.Fatalf("Failed to initialize database: %v", err)
		}

		trigger, err := scrape.NewTrigger(cfg.Scraper)
		if err != nil {
			logrus.Fatalf("Failed to build sync trigger: %v", err)
		}
		runner := scrape.NewRunner(trigger, cfg.Scraper.Timeout.Std())

		handler := api.NewHandler(store.NewRecords(db), store.NewWatermarks(db), runner)
		r := api.SetupRoutes(cfg.Server, handler)

		logrus.Infof("Starting server on %s (scraper mode: %s)", cfg.Server.Listen, cfg.Scraper.Mode)
		if err := r.Run(cfg.Server.Listen); err != nil {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	},
}

func init() {
	rootCMD.AddCommand(serverCMD)
}
