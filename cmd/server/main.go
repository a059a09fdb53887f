// Package main is the GlicoFlow API server.
//
// main stays minimal: read configuration, build the logger, hand both to
// internal/server. All real work lives in the internal packages.
//
// Configuration comes from defaults, then an optional YAML file
// (-config flag or GLICOFLOW_CONFIG), then environment variables such as
// PORT, DB_DRIVER, DB_PATH, DATABASE_URL and JWT_SECRET. See
// internal/config for the full list.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sakif/glicoflow/internal/config"
	"github.com/sakif/glicoflow/internal/server"
)

func main() {
	configPath := flag.String("config", os.Getenv("GLICOFLOW_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	// Opening Postgres pings and migrates; don't hang forever on a dead host.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	srv, err := server.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
