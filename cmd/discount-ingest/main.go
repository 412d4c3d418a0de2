// Command discount-ingest bulk-loads discount definitions from gzipped JSONL
// files. Codes defined in more than one file are ambiguous and skipped.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/go-faster/errors"

	"github.com/xenking/promo-engine/internal/repository"
)

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
		dryRun      bool
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing discount files")
	flag.StringVar(&pattern, "pattern", "*.jsonl.gz", "glob of discount files inside data-dir")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.BoolVar(&dryRun, "dry-run", false, "parse and deduplicate without writing")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, pattern, databaseURL, dryRun); err != nil {
		slog.Error("discount ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("discount ingest completed successfully")
}

func run(ctx context.Context, dataDir, pattern, databaseURL string, dryRun bool) error {
	files, err := filepath.Glob(filepath.Join(dataDir, pattern))
	if err != nil {
		return errors.Wrap(err, "match discount files")
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %s in %s", pattern, dataDir)
	}
	if len(files) > maxFiles {
		return errors.Errorf("at most %d files are supported, got %d", maxFiles, len(files))
	}
	sort.Strings(files)

	slog.Info("reading discount files", slog.Int("files", len(files)))

	parsed, err := readFiles(ctx, files)
	if err != nil {
		return errors.Wrap(err, "read files")
	}

	survivors, duplicates := dedupe(parsed)
	slog.Info("deduplicated discounts",
		slog.Int("unique", len(survivors)),
		slog.Int("duplicated", len(duplicates)),
	)
	for _, code := range duplicates {
		slog.Warn("skipping code defined in several files", slog.String("code", code))
	}

	if dryRun || len(survivors) == 0 {
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	repo := repository.NewDiscountRepository(pool)
	for start := 0; start < len(survivors); start += writeBatch {
		end := min(start+writeBatch, len(survivors))
		if err := repo.Upsert(ctx, survivors[start:end]); err != nil {
			return errors.Wrapf(err, "upsert discounts %d-%d", start, end)
		}
		slog.Info("write progress", slog.Int("written", end), slog.Int("total", len(survivors)))
	}

	return nil
}
