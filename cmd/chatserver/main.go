package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/MosinFAM/graphql-channels/internal/app"
	"github.com/MosinFAM/graphql-channels/internal/config"
	"github.com/MosinFAM/graphql-channels/internal/logging"

	"github.com/charmbracelet/log"
)

func main() {
	// .env подгружается до чтения конфигурации
	if err := config.LoadEnv(); err != nil {
		log.Fatal("failed to load .env", "err", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration", "err", err)
	}

	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal("failed to create logger", "err", err)
	}

	// Ожидание SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to start", "err", err)
	}

	runErr := a.Run(ctx)
	if err := a.Close(); err != nil {
		logger.Error("failed to release resources", "err", err)
	}
	if runErr != nil {
		logger.Fatal("server error", "err", runErr)
	}
}
