package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"tesouraria/internal/cli"
	"tesouraria/internal/gateway"
	apphttp "tesouraria/internal/http"
	"tesouraria/internal/intake"
	"tesouraria/internal/log"
	"tesouraria/internal/services"
	"tesouraria/internal/sheets"
	"tesouraria/internal/statement"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig("tesouraria")
	loc := cfg.Location()

	ctx := context.Background()
	be := cli.OpenBackend(ctx, logger, cfg)
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	ledger := services.NewLedgerService(be.Ledger, be.Publisher(), loc, logger)
	aggregator := services.NewAggregator(be.Ledger, loc, logger)
	reports := services.NewReportService(aggregator, statement.NewCompiler(loc), logger)

	var fetcher intake.PaymentFetcher
	if cfg.IntakeConfigured() {
		client, err := gateway.NewClient(cfg.MPAPIURL, cfg.MPAccessToken, cfg.GatewayTimeout)
		if err != nil {
			logger.Error("Failed to initialize payment gateway client", log.FieldError, err)
			os.Exit(1)
		}
		fetcher = client
	} else {
		logger.Warn("MP_ACCESS_TOKEN not set; webhook deliveries will be rejected")
	}
	var publisher intake.EventPublisher
	if be.Bus != nil {
		publisher = be.Bus
	}
	guard := intake.NewGuard(fetcher, be.Ledger, publisher, logger, cfg.GatewayTimeout)

	var exporter sheets.StatementWriter
	sheetsClient, err := cli.NewSheetsClient(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	if sheetsClient != nil {
		exporter = sheetsClient
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:     ledger,
		Aggregator: aggregator,
		Reports:    reports,
		Guard:      guard,
		Store:      be.Ledger,
		Exporter:   exporter,
		Logger:     logger,
	}, apphttp.Options{
		APIRateLimit:    cfg.APIRateLimit,
		SummaryCacheTTL: cfg.SummaryCacheTTL,
	})

	_, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting tesouraria server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"timezone", loc.String(),
		"intake", cfg.IntakeConfigured(),
		"events", be.Bus != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
