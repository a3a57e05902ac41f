package main

import (
	"context"
	"errors"
	"os"
	"time"

	"tesouraria/internal/amqp"
	"tesouraria/internal/cli"
	"tesouraria/internal/log"
	"tesouraria/internal/worker"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig("tesouraria-worker")
	logger.Info("Starting tesouraria-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the journal worker")
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, nil)

	sheetsClient, err := cli.NewSheetsClient(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	if sheetsClient == nil {
		logger.Error("GOOGLE_SPREADSHEET_ID is required by the journal worker")
		os.Exit(1)
	}

	bus, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer bus.Close()

	journal := worker.NewJournalWorker(sheetsClient, logger)

	// Consume returns when the channel drops; the client reconnects on the
	// next attempt.
	for attempt := 0; ; attempt++ {
		err := bus.Consume(ctx, journal.HandleEvent)
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			break
		}
		wait := time.Duration(min(attempt+1, 30)) * time.Second
		logger.Warn("Event consumption stopped, retrying", log.FieldError, err, "retry_in", wait.String())
		select {
		case <-ctx.Done():
		case <-time.After(wait):
		}
	}

	<-done
	logger.Info("Worker stopped gracefully")
}
