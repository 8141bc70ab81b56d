package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/surgidocs/opreport-tracker/internal/blob"
	"github.com/surgidocs/opreport-tracker/internal/common"
	"github.com/surgidocs/opreport-tracker/internal/export"
	"github.com/surgidocs/opreport-tracker/internal/normalize"
	"github.com/surgidocs/opreport-tracker/internal/ocr"
	"github.com/surgidocs/opreport-tracker/internal/pipeline"
	"github.com/surgidocs/opreport-tracker/internal/reconcile"
	"github.com/surgidocs/opreport-tracker/internal/repository"
	"github.com/surgidocs/opreport-tracker/internal/server"
	"github.com/surgidocs/opreport-tracker/internal/stats"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, cleanup, err := openRepository(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open record store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	media, err := blob.Open(ctx, blob.Config{
		Driver: blob.Driver(cfg.Blob.Driver),
		FSRoot: cfg.Blob.FSRoot,
		S3: blob.S3Config{
			Region:          cfg.Blob.S3Region,
			Bucket:          cfg.Blob.S3Bucket,
			Endpoint:        cfg.Blob.S3Endpoint,
			AccessKeyID:     cfg.Blob.S3AccessKeyID,
			SecretAccessKey: cfg.Blob.S3SecretAccessKey,
			PathStyle:       cfg.Blob.S3PathStyle,
		},
	})
	if err != nil {
		logger.Error("failed to open media store", "error", err)
		os.Exit(1)
	}

	ocrClient := ocr.NewClient(cfg.OCR.BaseURL, &http.Client{Timeout: cfg.OCR.Timeout}, logger)
	rec := reconcile.New(repo, logger)
	proc := pipeline.NewProcessor(
		pipeline.NewAggregator(ocrClient, logger,
			pipeline.WithWorkers(cfg.OCR.MaxConcurrency),
			pipeline.WithPageTimeout(cfg.OCR.Timeout),
		),
		normalize.New(nil),
		rec,
		media,
		logger,
	)

	srv := server.New(server.Deps{
		Auth:    cfg.Auth,
		Repo:    repo,
		Proc:    proc,
		Rec:     rec,
		Media:   media,
		Exports: export.NewService(repo, logger),
		Stats:   stats.NewService(repo, logger),
	}, logger)

	go func() {
		if err := srv.Start(cfg.Server.HTTPAddr); err != nil {
			logger.Error("http serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func openRepository(ctx context.Context, cfg *common.Config, logger *slog.Logger) (repository.OperationRepository, func(), error) {
	switch cfg.Database.Driver {
	case "postgres":
		db, pool, err := repository.Open(ctx, repository.PoolConfig{
			DSN:              cfg.Database.DSN,
			MaxConns:         cfg.Database.MaxConns,
			MinConns:         cfg.Database.MinConns,
			MaxConnLifetime:  cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
			DialTimeout:      cfg.Database.DialTimeout,
			StatementTimeout: cfg.Database.StatementTimeout,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := repository.HealthCheck(ctx, pool, 5*time.Second, logger); err != nil {
			repository.Close(db, pool, logger)
			return nil, nil, err
		}
		repo, err := repository.NewPostgresRepository(ctx, db, logger)
		if err != nil {
			repository.Close(db, pool, logger)
			return nil, nil, err
		}
		return repo, func() { repository.Close(db, pool, logger) }, nil
	default:
		repo, db, err := repository.NewSQLiteRepository(cfg.Database.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = db.Close() }, nil
	}
}
