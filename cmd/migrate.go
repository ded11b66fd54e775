package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/podforge/digest-api/internal/database"
	"github.com/podforge/digest-api/internal/logging"
	"github.com/podforge/digest-api/pkg/config"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migration",
	Long: `Open the configured store and bring its schema up to date.

The serve and run commands migrate on startup as well; this command
exists for provisioning a fresh database or upgrading one in place
without starting anything else.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.GetConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logging.Configure(cfg.Logging)

	db, err := database.Initialize(cfg.Database.Path, cfg.Database.Verbose)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("[WARN] Closing database: %v", err)
		}
	}()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Schema is up to date at %s\n", cfg.Database.Path)
	return nil
}
