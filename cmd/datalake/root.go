package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adamwoolhether/datalake"
	"github.com/adamwoolhether/datalake/internal/logging"
)

var (
	logger    *zap.Logger
	slogger   *slog.Logger
	envFile   string
	rootFlags clientConfig
)

var rootCmd = &cobra.Command{
	Use:   "datalake",
	Short: "Query the Datalake threat intelligence API",
	Long: `datalake classifies atoms, runs bulk lookups and exports bulk searches
from the Datalake threat intelligence API.

Credentials are read from flags, then from DATALAKE_USERNAME,
DATALAKE_PASSWORD and DATALAKE_LONG_TERM_TOKEN. A .env file in the
working directory is loaded first when present.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}

		var err error
		logger, err = logging.New(logging.FromEnv())
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		slogger = logging.Slog(logger)

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logging.Sync(logger)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with DATALAKE_* variables")
	addClientFlags(rootCmd, &rootFlags)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", describe(err))
		os.Exit(1)
	}
}

// describe renders API failures with the details a user needs to act on them.
func describe(err error) string {
	dErr, ok := datalake.GetError(err)
	if !ok {
		return err.Error()
	}

	msg := dErr.Error()
	if dErr.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", dErr.StatusCode)
	}
	if dErr.URL != "" {
		msg += " url=" + dErr.URL
	}
	if dErr.Err != nil {
		msg += ": " + dErr.Err.Error()
	}

	return msg
}
