package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	api "ema-backend/cmd/api"
	agentdomain "ema-backend/internal/agent/domain"
	authdomain "ema-backend/internal/auth/domain"
	cachedomain "ema-backend/internal/cache/domain"
	calendardomain "ema-backend/internal/calendar/domain"
	emaildomain "ema-backend/internal/email/domain"
	"ema-backend/pkg/config"
	"ema-backend/pkg/database"
	"ema-backend/pkg/logger"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app is what every subcommand runs against.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	handler *api.Handler
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "ema-backend",
		Short:        "Email management assistant backend",
		Long:         "ema-backend serves the browser extension's API, runs the chat agent and keeps mail and calendar caches in sync.",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(newServeCmd(), newSyncCmd(), newCleanupCmd())
	return rootCmd
}

func wireApp(ctx context.Context) (*app, error) {
	cfg := config.Load()
	log := logger.New("ema-backend", cfg.LogLevel)

	db, err := database.NewConnection(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect database")
	}
	if err := migrate(db); err != nil {
		return nil, errors.Wrap(err, "migrate database")
	}

	handler, err := api.NewHandler(ctx, cfg, db, log)
	if err != nil {
		return nil, errors.Wrap(err, "wire handler")
	}
	return &app{cfg: cfg, log: log, handler: handler}, nil
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&authdomain.Account{},
		&cachedomain.CachedEntry{},
		&emaildomain.Email{},
		&emaildomain.Contact{},
		&emaildomain.EmailSummary{},
		&emaildomain.EmailSyncHistory{},
		&calendardomain.CalendarEvent{},
		&agentdomain.ChatTurn{},
		&agentdomain.SessionState{},
	)
}

func newServeCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with background maintenance and push notifications",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := wireApp(ctx)
			if err != nil {
				return err
			}
			defer a.handler.Close()

			a.handler.RunBackground(ctx)
			if port == "" {
				port = a.cfg.Port
			}
			return a.handler.Start(ctx, ":"+port)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (defaults to PORT)")
	return cmd
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile cached calendar events of every account once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wireApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.handler.Close()

			n := a.handler.Coordinator().SyncAll(cmd.Context())
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "synced %d event(s)\n", n)
			return err
		},
	}
}

func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired cache, summary, event and history records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wireApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.handler.Close()

			n := a.handler.Coordinator().Sweep(cmd.Context())
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired record(s)\n", n)
			return err
		},
	}
}
