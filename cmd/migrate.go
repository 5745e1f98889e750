package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Add the face column to the users table if it is missing",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer store.Close()

	ctx, cancel := commandContext()
	defer cancel()

	created, err := store.EnsureFaceColumn(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if created {
		fmt.Fprintf(out, "Added column %s.%s\n", cfg.Database.Table, cfg.Database.FaceColumn)
	} else {
		fmt.Fprintf(out, "Column %s.%s already exists\n", cfg.Database.Table, cfg.Database.FaceColumn)
	}
	return nil
}
