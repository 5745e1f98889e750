package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kozaktomas/faceid/internal/config"
	"github.com/kozaktomas/faceid/internal/database"
	_ "github.com/kozaktomas/faceid/internal/database/mariadb"
	_ "github.com/kozaktomas/faceid/internal/database/postgres"
	"github.com/kozaktomas/faceid/internal/faceembed"
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "faceid",
	Short: "Store and match face encodings for user accounts",
	Long: `faceid turns a user's uploaded photos into face encodings stored in the
user's database row, and checks new photos against stored encodings.

Images are read from <input-dir>/<user-id>.txt, one image per line, each line
a comma-separated list of the image file's byte values.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Injection points for tests.
var (
	openStore    = database.Open
	newExtractor = faceembed.New
)

// exitCodeError ends the process with a specific exit code. A nil err prints nothing.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitCodeError) Unwrap() error {
	return e.err
}

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ec *exitCodeError
	if errors.As(err, &ec) {
		return ec.code
	}
	return 1
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		var ec *exitCodeError
		if !errors.As(err, &ec) || ec.err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	os.Exit(exitCode(err))
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file overriding environment settings (env: FACEID_CONFIG)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
	if configFile == "" {
		configFile = os.Getenv("FACEID_CONFIG")
	}
}

// loadConfig reads environment settings and the optional config file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}

// commandContext is cancelled on Ctrl+C. Per-call limits come from the
// embedding and database timeouts.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openBackends connects to the database and creates the face extractor.
// The returned func releases both.
func openBackends(cfg *config.Config) (database.Store, faceembed.Extractor, func(), error) {
	store, err := openStore(&cfg.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	extractor, err := newExtractor(&cfg.Embedding)
	if err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("creating face extractor: %w", err)
	}
	release := func() {
		if err := extractor.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: closing face extractor: %v\n", err)
		}
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	return store, extractor, release, nil
}
