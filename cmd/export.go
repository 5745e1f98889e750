package cmd

import (
	"fmt"
	"os"

	"github.com/kozaktomas/faceid/internal/npy"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <user-id> <file.npy>",
	Short: "Write a user's stored face encodings to a .npy file",
	Long: `Copy the face column of a user's row to a file. The file loads with
numpy.load and can be passed to "faceid match --known".`,
	Args: cobra.ExactArgs(2),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	userID, err := parseUserID(args[0])
	if err != nil {
		return err
	}
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

	data, err := store.LoadFaceData(ctx, userID)
	if err != nil {
		return err
	}
	rows, err := npy.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("user %d face data: %w", userID, err)
	}

	if err := os.WriteFile(args[1], data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", args[1], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d encodings (%d values each) to %s\n", len(rows), len(rows[0]), args[1])
	return nil
}
