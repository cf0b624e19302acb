package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rationable/api/internal/app"
	"github.com/rationable/api/internal/config"
	"github.com/rationable/api/internal/database"
	"github.com/rationable/api/internal/pkg/jwt"
	"github.com/rationable/api/internal/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "rationable",
		Short:         "Rationable decision API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "path to YAML config file")

	load := func() (*config.AppConfig, error) { return config.Load(configPath) }
	root.AddCommand(newServeCmd(load), newMigrateCmd(load), newCacheCmd(load), newTokenCmd(load))
	return root
}

type loader func() (*config.AppConfig, error)

func newLogger(cfg *config.AppConfig) *zap.Logger {
	log, err := logger.New(cfg.LogDir(), cfg.IsDev())
	if err != nil {
		log, _ = zap.NewProduction()
		log.Warn("file log pipeline unavailable, fallback to zap production logger", zap.Error(err))
	}
	return log
}

func newServeCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			defer log.Sync()

			application, err := app.New(log, cfg)
			if err != nil {
				return fmt.Errorf("initialize app: %w", err)
			}

			srv := &http.Server{
				Addr:              application.Addr(),
				Handler:           application.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errc := make(chan error, 1)
			go func() {
				log.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)
			select {
			case <-quit:
			case err := <-errc:
				application.Shutdown()
				return fmt.Errorf("server error: %w", err)
			}

			log.Info("shutting down server...")
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				log.Warn("forced shutdown", zap.Error(err))
			}
			application.Shutdown()
			log.Info("server exited")
			return nil
		},
	}
}

func newMigrateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if err := database.EnsureSchema(cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func newCacheCmd(load loader) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the generation caches",
	}
	cacheCmd.AddCommand(&cobra.Command{
		Use:       "purge [namespace...]",
		Short:     "Clear cached decisions, enrichments and geo lookups",
		ValidArgs: app.CacheNamespaces,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.Cache.Backend == "memory" {
				fmt.Fprintln(cmd.OutOrStdout(), "cache backend is memory, nothing persisted to purge")
				return nil
			}
			n, err := app.PurgeCaches(cmd.Context(), cfg, args...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "caches cleared, %d public responses removed\n", n)
			return nil
		},
	})
	return cacheCmd
}

func newTokenCmd(load loader) *cobra.Command {
	var (
		email string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Sign an access token for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			token, err := jwt.NewVerifier(cfg.Auth.JWTSecret).Sign(args[0], email, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
