// Package cmd provides the finbot-admin commands.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"finbot/internal/backend"
	"finbot/internal/config"
	applog "finbot/internal/log"
)

type rootOptions struct {
	envFile string
	debug   bool
}

// NewRootCmd builds the command tree. Each call returns fresh flag state.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "finbot-admin",
		Short: "Administer the finbot ledger",
		Long: `finbot-admin operates on the same store the bot uses.

It supports:
- Exporting a user's history as CSV
- Printing a user's summary for a trailing window
- Resetting a user's ledger
- Applying schema migrations

Example:
  finbot-admin export --user 42 --out history.csv
  finbot-admin stats --user 42 --days 30`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.envFile != "" {
				if err := godotenv.Load(opts.envFile); err != nil {
					return fmt.Errorf("load env file: %w", err)
				}
			} else {
				_ = godotenv.Load()
			}

			level := slog.LevelWarn
			if opts.debug {
				level = slog.LevelDebug
			}
			logger := applog.New(applog.Config{
				Level:     level,
				Component: applog.ComponentAdmin,
				Handler:   slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
			})
			applog.SetDefault(logger)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.envFile, "env", "", "env file (default is .env)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(newExportCmd())
	root.AddCommand(newStatsCmd())
	root.AddCommand(newResetCmd())
	root.AddCommand(newMigrateCmd())
	return root
}

// Execute runs the CLI with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// openBackend loads the environment config and opens the configured store.
// withEvents keeps AMQP so writes are announced to the mirror worker.
func openBackend(ctx context.Context, withEvents bool) (*backend.BackendResult, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	if !withEvents {
		backendCfg.AMQPURL = ""
	}
	return backend.NewFactory(slog.Default()).CreateBackend(ctx, backendCfg)
}

func closeBackend(res *backend.BackendResult) {
	if err := res.Cleanup(); err != nil {
		slog.Error("Backend cleanup error", "error", err)
	}
}

func requireUser(userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("--user must be a positive Telegram user id")
	}
	return nil
}
