package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medidispatch/dispatch-ocr/constants"
	"github.com/medidispatch/dispatch-ocr/internal/batch"
	"github.com/medidispatch/dispatch-ocr/internal/common"
	"github.com/medidispatch/dispatch-ocr/internal/export"
	"github.com/medidispatch/dispatch-ocr/internal/match"
	"github.com/medidispatch/dispatch-ocr/internal/ocr"
	repo "github.com/medidispatch/dispatch-ocr/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		inmem  = flag.Bool("inmem", false, "use an in-memory SQLite dispatch store")
		dir    = flag.String("dir", "", "directory of report images to process (required)")
		out    = flag.String("out", "", "output XLSX report path (optional)")
		engine = flag.String("engine", "", "recognition engine: cli or native (default from OCR_ENGINE)")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()
	cfg := common.LoadConfig()
	if *engine != "" {
		cfg.OCR.Engine = *engine
	}

	// Open the dispatch store
	db, pool, err := openStore(ctx, cfg, *inmem, logger)
	if err != nil {
		logger.Error("failed to open dispatch store", "error", err)
		os.Exit(1)
	}
	defer repo.Close(db, pool, logger)

	dispatches := repo.NewDispatchRepository(db, cfg.Batch.Operator, logger)
	if err := dispatches.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	// Wire the pipeline
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
	orch := batch.NewOrchestrator(extractor, evaluator, dispatches, logger)

	// Collect report files
	accepted, rejected := 0, 0
	walkErr := filepath.WalkDir(*dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("walk error", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if constants.MapExtToFormat(filepath.Ext(path)) == "" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			logger.Warn("stat failed", "path", path, "error", err)
			return nil
		}
		if _, err := orch.Add(path, d.Name(), info.Size()); err != nil {
			logger.Warn("file rejected", "path", path, "error", err)
			rejected++
			return nil
		}
		accepted++
		return nil
	})
	if walkErr != nil {
		logger.Error("failed to scan directory", "dir", *dir, "error", walkErr)
		os.Exit(1)
	}
	logger.Info("batch assembled", "dir", *dir, "accepted", accepted, "rejected", rejected)

	// Process sequentially
	orch.ProcessAll(ctx)
	summary := orch.Summary()

	// Optional XLSX report
	if *out != "" {
		exporter := export.NewService(logger)
		data, err := exporter.BuildReportXLSX(orch.Jobs(), summary)
		if err != nil {
			logger.Error("failed to build report", "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			logger.Error("failed to write report", "path", *out, "error", err)
			os.Exit(1)
		}
		logger.Info("report written", "path", *out)
	}

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files accepted: %d\n", accepted)
	fmt.Printf("- Processed: %d\n", summary.TotalProcessed)
	fmt.Printf("- Auto-applied: %d\n", summary.AutoApplied)
	fmt.Printf("- Needs review: %d (high confidence: %d)\n", summary.NeedsReview, summary.HighConfidenceNeedsReview)
	fmt.Printf("- Errors: %d\n", summary.Errors)
}

func openStore(ctx context.Context, cfg *common.Config, inmem bool, logger *slog.Logger) (*sql.DB, *pgxpool.Pool, error) {
	if inmem {
		db, err := repo.OpenSQLite("", logger)
		return db, nil, err
	}
	if cfg.Database.DSN == "" {
		return nil, nil, common.NewAppError("CONFIG_ERROR", "DB_URL is required unless --inmem is set", common.ErrInvalidInput)
	}
	return repo.Open(ctx, repo.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
}
