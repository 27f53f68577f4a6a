// Copyright 2025 WanderPlan Authors
// SPDX-License-Identifier: Apache-2.0

// tripsyncd runs the WanderPlan document server: the Postgres-backed remote
// store the trip-planning clients synchronize against.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/Perth00/WanderPlan-sub001/docserver"
	"github.com/Perth00/WanderPlan-sub001/internal/config"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tripsyncd",
		Short: "WanderPlan sync server",
		Long:  "Document server for WanderPlan trip synchronization: per-user document store, change feed and asset storage.",
	}
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newMigrateCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sync server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger := newLogger(cfg.LogLevel)

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			pool, err := pgxpool.New(ctx, cfg.PostgresURL)
			if err != nil {
				return fmt.Errorf("failed to connect to postgres: %w", err)
			}
			defer pool.Close()
			if err := docserver.InitSchema(ctx, pool); err != nil {
				return err
			}

			redisClient := redis.NewClient(&redis.Options{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
			})
			defer redisClient.Close()

			hub := docserver.NewHub(redisClient, logger)
			srv := docserver.NewServer(
				docserver.NewAuthService(cfg.JWTSecret, pool),
				docserver.NewService(pool, hub, logger),
				docserver.NewAssetService(pool, cfg.PublicBaseURL),
				hub,
			)

			go func() {
				quit := make(chan os.Signal, 1)
				signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
				<-quit
				logger.Info("shutting down")
				_ = srv.App.Shutdown()
			}()

			logger.Info("sync server listening", "addr", cfg.ServerPort)
			return srv.App.Listen(cfg.ServerPort)
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			pool, err := pgxpool.New(ctx, cfg.PostgresURL)
			if err != nil {
				return fmt.Errorf("failed to connect to postgres: %w", err)
			}
			defer pool.Close()
			return docserver.InitSchema(ctx, pool)
		},
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
