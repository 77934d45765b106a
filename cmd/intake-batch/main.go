package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/docintake/constants"
	"github.com/joseph-ayodele/docintake/internal/common"
	"github.com/joseph-ayodele/docintake/internal/entity"
	"github.com/joseph-ayodele/docintake/internal/export"
	"github.com/joseph-ayodele/docintake/internal/jobs"
	"github.com/joseph-ayodele/docintake/internal/ocr"
	"github.com/joseph-ayodele/docintake/internal/pipeline"
	"github.com/joseph-ayodele/docintake/internal/repository"
	"github.com/joseph-ayodele/docintake/internal/storage"
	"github.com/joseph-ayodele/docintake/internal/telemetry"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir         = flag.String("dir", "", "directory to process documents from (required)")
		out         = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		owner       = flag.String("owner", "local", "owner id recorded on the job")
		sequential  = flag.Bool("sequential", false, "process files one at a time")
		threshold   = flag.Int("threshold", 0, "review confidence threshold override (1-100)")
		cleanup     = flag.Bool("cleanup", false, "delete jobs older than the retention window before starting")
		metricsAddr = flag.String("metrics", "", "address to serve /metrics on (optional, e.g. :9090)")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*dir), "documents.xlsx")
	}

	// .env is optional; environment wins.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open job store", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer closeRepo()

	store, err := openStorage(ctx, cfg)
	if err != nil {
		logger.Error("failed to open object store", "backend", cfg.Storage.Backend, "error", err)
		os.Exit(1)
	}

	adapter := ocr.NewAdapter(cfg.OCR, logger)
	if err := adapter.Init(ctx); err != nil {
		logger.Error("ocr backend unavailable", "engine", cfg.OCR.Engine, "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := adapter.Close(); cerr != nil {
			logger.Error("close ocr adapter", "error", cerr)
		}
	}()

	processor := pipeline.NewProcessor(logger, adapter, pipeline.WithObjectStore(store))
	orchestrator := jobs.NewOrchestrator(repo, processor, logger)

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", telemetry.Handler())
		go func() {
			logger.Info("metrics listening", "addr", *metricsAddr)
			if serr := http.ListenAndServe(*metricsAddr, mux); serr != nil {
				logger.Error("metrics server stopped", "error", serr)
			}
		}()
	}

	if *cleanup {
		deleted, cerr := orchestrator.CleanupOldJobs(ctx, cfg.Jobs.RetentionDays)
		if cerr != nil {
			logger.Error("cleanup failed", "error", cerr)
		} else {
			logger.Info("cleanup complete", "deleted", deleted, "retention_days", cfg.Jobs.RetentionDays)
		}
	}

	files, err := collectFiles(*dir)
	if err != nil {
		logger.Error("failed to scan directory", "dir", *dir, "error", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		printError("Error: no processable files under %s\n", *dir)
		os.Exit(1)
	}
	logger.Info("starting batch", "dir", *dir, "files", len(files))

	opts := entity.DefaultProcessingOptions()
	opts.MaxConcurrent = cfg.Jobs.MaxConcurrent
	opts.FileTimeout = cfg.Jobs.FileTimeout
	opts.ParallelProcessing = !*sequential
	if *threshold > 0 {
		opts.ConfidenceThreshold = *threshold
	}

	job, err := orchestrator.StartJob(ctx, files, *owner, opts)
	if err != nil {
		logger.Error("failed to start job", "error", err)
		os.Exit(1)
	}
	if err := orchestrator.Wait(ctx, job.ID); err != nil {
		logger.Error("job wait interrupted", "job_id", job.ID, "error", err)
		os.Exit(1)
	}

	result, err := orchestrator.GetBatchResult(ctx, job.ID)
	if err != nil {
		logger.Error("failed to read batch result", "job_id", job.ID, "error", err)
		os.Exit(1)
	}

	exportService := export.NewService(repo, logger)
	xlsxBytes, err := exportService.ExportJobXLSX(ctx, job.ID)
	if err != nil {
		logger.Error("failed to export results", "job_id", job.ID, "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsxBytes, 0644); err != nil {
		logger.Error("failed to write output file", "path", *out, "error", err)
		os.Exit(1)
	}

	logger.Info("batch complete",
		"job_id", job.ID,
		"succeeded", result.SuccessCount,
		"failed", result.FailedCount,
		"mean_confidence", result.MeanConfidence,
		"elapsed_ms", result.Elapsed.Milliseconds(),
		"output_file", *out)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files processed: %d\n", result.SuccessCount)
	fmt.Printf("- Failures: %d\n", result.FailedCount)
	for docType, n := range result.ByDocumentType {
		fmt.Printf("- %s: %d\n", docType, n)
	}
	fmt.Printf("- Output: %s\n", *out)
}

func openRepository(ctx context.Context, cfg *common.Config, logger *slog.Logger) (repository.JobRepository, func(), error) {
	switch cfg.Database.Driver {
	case "postgres":
		repo, err := repository.OpenPostgres(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	case "sqlite":
		repo, err := repository.OpenSQLite(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() {
			if cerr := repo.Close(); cerr != nil {
				logger.Error("close job store", "error", cerr)
			}
		}, nil
	case "", "memory":
		return repository.NewMemoryRepository(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func openStorage(ctx context.Context, cfg *common.Config) (storage.ObjectStore, error) {
	switch cfg.Storage.Backend {
	case "s3":
		return storage.NewS3Store(ctx, cfg.Storage)
	case "", "local":
		return storage.NewLocalStore(cfg.Storage.LocalDir), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// collectFiles walks the directory and loads every file with an allowed
// extension into memory.
func collectFiles(dir string) ([]entity.InputFile, error) {
	var files []entity.InputFile
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := constants.NormalizeExt(filepath.Ext(path))
		if _, ok := constants.AllowedExtensions[ext]; !ok {
			return nil
		}
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			return fmt.Errorf("read %s: %w", path, rerr)
		}
		files = append(files, entity.InputFile{Name: d.Name(), Data: data})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
