package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/msedata/msesync/database"
	"github.com/msedata/msesync/ingest"
	"github.com/msedata/msesync/store"
)

var importCMD = &cobra.Command{
	Use:   "import [data-directory]",
	Short: "Bulk-import scraper CSV dumps from the specified directory",
	Long: `Import issuer data from CSV files produced by the scraper pipeline.
Rows are upserted on the (issuer, date) key, so re-running an import is
safe, and each issuer's last-synced date is advanced afterwards.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dataDir := args[0]

		cfg, err := loadConfig()
		if err != nil {
			logrus.Fatalf("Failed to load config: %v", err)
		}

		logrus.Info("Connecting to database...")
		db, err := database.Connect(cfg.Database)
		if err != nil {
			logrus.Fatalf("Failed to initialize database: %v", err)
		}

		processor := ingest.NewProcessor(store.NewRecords(db), store.NewWatermarks(db))

		logrus.Infof("Starting import from directory: %s", dataDir)
		if err := processor.ProcessDirectory(dataDir); err != nil {
			logrus.Fatalf("Failed to import data: %v", err)
		}

		fmt.Println("Data import completed successfully")
	},
}

func init() {
	rootCMD.AddCommand(importCMD)
}
