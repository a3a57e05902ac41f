package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"tesouraria/internal/admin"
	"tesouraria/internal/backend"
	"tesouraria/internal/cli"
	"tesouraria/internal/config"
	"tesouraria/internal/log"
)

func main() {
	admin.Execute(open)
}

// open loads the configuration and the ledger on the first command that
// needs them. Logs go to stderr and stay quiet below warn unless LOG_LEVEL
// asks for debug.
func open(ctx context.Context) (*admin.Env, func(), error) {
	config.LoadDotEnv()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	level := slog.LevelWarn
	if log.ParseLevel(cfg.LogLevel) == slog.LevelDebug {
		level = slog.LevelDebug
	}
	logger := log.NewText(os.Stderr, level, "tesouraria-admin")

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	be, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open ledger store: %w", err)
	}

	env := &admin.Env{
		Ledger:    be.Ledger,
		Location:  cfg.Location(),
		Logger:    logger,
		Publisher: be.Publisher(),
		Backend:   cfg.DataBackend,
	}
	sheetsClient, err := cli.NewSheetsClient(ctx, logger, cfg)
	if err != nil {
		_ = be.Cleanup()
		return nil, nil, fmt.Errorf("google sheets: %w", err)
	}
	if sheetsClient != nil {
		env.Exporter = sheetsClient
	}

	return env, func() {
		if err := be.Cleanup(); err != nil {
			logger.Warn("Backend cleanup failed", log.FieldError, err)
		}
	}, nil
}
