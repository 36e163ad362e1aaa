package main

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"math/bits"
	"os"
	"slices"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-voice/internal/catalog"
	"github.com/xenking/kart-voice/internal/domain/product"
	"github.com/xenking/kart-voice/internal/vendure"
)

const (
	defaultExpected  = 1_000_000
	defaultBatchSize = 500
	bloomFPR         = 0.001
	progressEvery    = 100_000
	maxFiles         = bits.UintSize
	maxLineSize      = 4 << 20
)

type ingestConfig struct {
	expected  uint
	batchSize int
}

func (c *ingestConfig) setDefaults() {
	if c.expected == 0 {
		c.expected = defaultExpected
	}
	if c.batchSize <= 0 {
		c.batchSize = defaultBatchSize
	}
}

// upserter is implemented by *postgres.ProductRepository.
type upserter interface {
	Upsert(ctx context.Context, products []product.Product) error
}

type ingestStats struct {
	written    int
	duplicates int
	skipped    int
}

// candidate is a product whose id may also occur in another dump.
type candidate struct {
	product product.Product
	file    int
}

// fileResult holds what pass 2 found in a single dump.
type fileResult struct {
	written    int
	skipped    int
	candidates map[string]candidate
}

// ingest loads products from gzip JSON-lines dumps into db. Unique ids are
// written while streaming. Ids that appear in several dumps are resolved
// afterwards: the record from the last dump in files order wins.
func ingest(ctx context.Context, files []string, db upserter, cfg ingestConfig) (ingestStats, error) {
	cfg.setDefaults()
	if len(files) > maxFiles {
		return ingestStats{}, errors.Errorf("too many dumps: %d, max %d", len(files), maxFiles)
	}

	// Pass 1: Build bloom filters of product ids concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files, cfg.expected)
	if err != nil {
		return ingestStats{}, errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: Write products unique to one dump, hold back possible duplicates.
	slog.Info("pass 2: writing products")

	results, err := writeUnique(ctx, files, filters, db, cfg.batchSize)
	if err != nil {
		return ingestStats{}, errors.Wrap(err, "write products")
	}

	var stats ingestStats
	merged := make(map[string]uint)
	winners := make(map[string]candidate)
	for _, r := range results {
		stats.written += r.written
		stats.skipped += r.skipped
		for id, c := range r.candidates {
			merged[id] |= 1 << uint(c.file)
			if prev, ok := winners[id]; !ok || c.file > prev.file {
				winners[id] = c
			}
		}
	}

	resolved := make([]product.Product, 0, len(winners))
	for id, c := range winners {
		if n := bits.OnesCount(merged[id]); n > 1 {
			stats.duplicates += n - 1
		}
		resolved = append(resolved, c.product)
	}

	slog.Info("resolving shared ids",
		slog.Int("candidates", len(resolved)),
		slog.Int("duplicates", stats.duplicates),
	)

	for batch := range slices.Chunk(resolved, cfg.batchSize) {
		if err := db.Upsert(ctx, batch); err != nil {
			return stats, errors.Wrap(err, "write resolved products")
		}
		stats.written += len(batch)
	}
	return stats, nil
}

// buildBloomFilters creates one bloom filter per file, concurrently.
func buildBloomFilters(ctx context.Context, files []string, expected uint) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(expected, bloomFPR)
			var count uint64

			if _, err := streamRecords(ctx, path, func(r catalog.Record) {
				filter.AddString(r.ID)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.Int("file", i+1), slog.Uint64("records", count))
				}
			}); err != nil {
				return errors.Wrapf(err, "build filter for file %d", i+1)
			}

			slog.Info("pass 1 complete", slog.Int("file", i+1), slog.Uint64("total_records", count))
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// writeUnique re-streams each file and upserts records whose id is absent
// from every other file's filter.
func writeUnique(
	ctx context.Context,
	files []string,
	filters []*bloom.BloomFilter,
	db upserter,
	batchSize int,
) ([]fileResult, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			r := fileResult{candidates: make(map[string]candidate)}
			batch := make([]product.Product, 0, batchSize)
			var writeErr error

			flush := func() {
				if len(batch) == 0 || writeErr != nil {
					return
				}
				if err := db.Upsert(ctx, batch); err != nil {
					writeErr = err
					return
				}
				r.written += len(batch)
				batch = batch[:0]
			}

			skipped, err := streamRecords(ctx, path, func(rec catalog.Record) {
				p := toFallback(rec)
				if sharedID(filters, i, p.ID) {
					r.candidates[p.ID] = candidate{product: p, file: i}
					return
				}
				batch = append(batch, p)
				if len(batch) == batchSize {
					flush()
				}
			})
			flush()
			r.skipped = skipped
			if err == nil {
				err = writeErr
			}
			if err != nil {
				return errors.Wrapf(err, "ingest file %d", i+1)
			}

			slog.Info("pass 2 complete",
				slog.Int("file", i+1),
				slog.Int("written", r.written),
				slog.Int("candidates", len(r.candidates)),
				slog.Int("skipped", r.skipped),
			)
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// sharedID reports whether id may occur in a file other than idx.
func sharedID(filters []*bloom.BloomFilter, idx int, id string) bool {
	for j, f := range filters {
		if j != idx && f.TestString(id) {
			return true
		}
	}
	return false
}

// toFallback normalizes a dumped record into a stored catalog product.
func toFallback(r catalog.Record) product.Product {
	p := catalog.Normalize(r)
	p.Source = product.SourceFallback
	return p
}

// streamRecords opens a gzip-compressed JSON-lines dump and calls fn for
// each record with an id. Blank lines are ignored; malformed lines and
// records without an id are counted and skipped.
func streamRecords(ctx context.Context, path string, fn func(r catalog.Record)) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineSize)
	var skipped int
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return skipped, err
		}
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		r, err := vendure.DecodeRecord(data)
		if err != nil || r.ID == "" {
			skipped++
			continue
		}
		fn(r)
	}

	if err := scanner.Err(); err != nil {
		return skipped, errors.Wrapf(err, "scan %s", path)
	}
	return skipped, nil
}
