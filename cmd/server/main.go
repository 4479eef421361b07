// Command server runs the marketplace catalog API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/utafrali/marketplace/internal/app"
	"github.com/utafrali/marketplace/internal/config"
	pkgconfig "github.com/utafrali/marketplace/pkg/config"
	"github.com/utafrali/marketplace/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("catalog service exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments set the environment directly.
	if err := pkgconfig.LoadDotEnv(); err != nil {
		slog.Warn("ignoring unreadable .env", slog.String("error", err.Error()))
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(config.ServiceName, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog, err := app.NewApp(cfg, log)
	if err != nil {
		return fmt.Errorf("init catalog: %w", err)
	}

	log.Info("catalog service starting",
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
	)
	if err := catalog.Run(ctx); err != nil {
		return err
	}
	log.Info("catalog service stopped")
	return nil
}
