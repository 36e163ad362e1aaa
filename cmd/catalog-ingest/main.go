package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-voice/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		databaseURL string
		cfg         ingestConfig
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.jsonl.gz catalog dumps")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&cfg.expected, "expected", defaultExpected, "expected number of products per dump")
	flag.IntVar(&cfg.batchSize, "batch-size", defaultBatchSize, "products per upsert batch")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, cfg); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, cfg ingestConfig) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "list dumps")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.jsonl.gz dumps in %s", dataDir)
	}
	slices.Sort(files)

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	stats, err := ingest(ctx, files, postgres.NewProductRepository(pool), cfg)
	if err != nil {
		return err
	}

	slog.Info("ingest summary",
		slog.Int("written", stats.written),
		slog.Int("duplicates", stats.duplicates),
		slog.Int("skipped", stats.skipped),
	)
	return nil
}
