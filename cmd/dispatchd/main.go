package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/medidispatch/dispatch-ocr/internal/batch"
	"github.com/medidispatch/dispatch-ocr/internal/common"
	"github.com/medidispatch/dispatch-ocr/internal/export"
	"github.com/medidispatch/dispatch-ocr/internal/match"
	"github.com/medidispatch/dispatch-ocr/internal/metrics"
	"github.com/medidispatch/dispatch-ocr/internal/ocr"
	repo "github.com/medidispatch/dispatch-ocr/internal/repository"
	"github.com/medidispatch/dispatch-ocr/internal/server"
)

func main() {
	cfg := common.LoadConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.Server.LogLevel),
	})).With("service", "dispatchd")
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, pool, err := repo.Open(ctx, repo.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer repo.Close(db, pool, logger)

	if err := repo.HealthCheck(ctx, db, 5*time.Second, logger); err != nil {
		logger.Error("database health check failed", "error", err)
		os.Exit(1)
	}

	dispatches := repo.NewDispatchRepository(db, cfg.Batch.Operator, logger)
	if err := dispatches.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	extractor := ocr.NewExtractor(ocr.Config{
		Engine:              cfg.OCR.Engine,
		Tesseract:           cfg.OCR.Tesseract,
		TesseractLang:       cfg.OCR.TesseractLang,
		TessdataDir:         cfg.OCR.TessdataDir,
		PSM:                 cfg.OCR.PSM,
		OEM:                 cfg.OCR.OEM,
		EnableTSVConfidence: cfg.OCR.EnableTSVConfidence,
	}, logger)
	evaluator := match.NewEvaluator(dispatches, logger)
	batchMetrics := metrics.NewBatchMetrics()

	factory := func() *batch.Orchestrator {
		return batch.NewOrchestrator(extractor, evaluator, dispatches, logger,
			batch.WithMetrics(batchMetrics))
	}

	svc := server.NewService(factory, export.NewService(logger), batchMetrics, cfg.Batch.UploadDir, logger)
	svc.StartQueue(
		batch.WithWorkers(cfg.Batch.Workers),
		batch.WithProcessTimeout(cfg.Batch.ProcessTimeout),
	)

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.Server.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	svc.Shutdown(shutdownCtx)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
