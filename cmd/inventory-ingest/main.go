// Command inventory-ingest imports supplier price lists into a store's
// inventory. Suppliers publish large gzip-compressed catalogs with one
// entry per line:
//
//	name|category|unit|cost_per_unit
//
// Feeds are noisy; an entry counts as confirmed only when at least two
// independent feeds agree on it. The tool streams every feed twice: pass
// one builds a bloom filter per feed, pass two collects entries whose
// line appears in another feed's filter, then confirmed entries are
// upserted with zero opening stock, ready for a first restock.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/pizza-ops/internal/domain/inventory"
	"github.com/xenking/pizza-ops/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
	fieldCount    = 4
)

// entry is one parsed supplier catalog line.
type entry struct {
	name     string
	category inventory.Category
	unit     string
	cost     decimal.Decimal
}

// fileResult holds candidate lines found in a single feed during pass 2.
type fileResult struct {
	candidates map[string]uint
}

func main() {
	var (
		databaseURL string
		storeID     string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&storeID, "store-id", "", "store to import inventory into")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if storeID == "" {
		slog.Error("store id is required: set --store-id")
		os.Exit(1)
	}
	files := flag.Args()
	if len(files) < 2 {
		slog.Error("at least two supplier feed files are required")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, storeID, files); err != nil {
		slog.Error("inventory ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("inventory ingest completed successfully")
}

func run(ctx context.Context, databaseURL, storeID string, files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	// Pass 1: build bloom filters concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: find entries appearing in 2+ feeds.
	slog.Info("pass 2: finding confirmed entries")

	confirmed, err := findConfirmedEntries(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "find confirmed entries")
	}

	slog.Info("confirmed entries found", slog.Int("count", len(confirmed)))

	if len(confirmed) == 0 {
		slog.Info("nothing to import")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeItems(ctx, pool, storeID, confirmed); err != nil {
		return errors.Wrap(err, "write inventory items")
	}

	return nil
}

// buildBloomFilters creates one bloom filter per feed, concurrently.
func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFile(ctx, i, f, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func buildFilterForFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamGzFile(ctx, path, func(line string) {
			if _, err := parseLine(line); err != nil {
				return
			}
			filter.AddString(line)
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 1 progress",
					slog.Int("file", idx+1),
					slog.Uint64("entries", count),
				)
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for file %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_entries", count),
		)

		filters[idx] = filter
		return nil
	}
}

// findConfirmedEntries re-streams each feed and checks lines against OTHER
// feeds' bloom filters. An entry is confirmed when it appears in 2 or more
// feeds.
func findConfirmedEntries(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]entry, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(findCandidatesInFile(ctx, i, f, filters, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge per-file bitmasks and keep lines seen in 2+ feeds.
	merged := make(map[string]uint)
	for _, r := range results {
		for line, mask := range r.candidates {
			merged[line] |= mask
		}
	}

	var confirmed []entry
	for line, mask := range merged {
		if bits.OnesCount(mask) < 2 {
			continue
		}
		e, err := parseLine(line)
		if err != nil {
			continue
		}
		confirmed = append(confirmed, e)
	}

	return confirmed, nil
}

func findCandidatesInFile(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []fileResult,
) func() error {
	return func() error {
		candidates := make(map[string]uint)
		fileBit := uint(1) << uint(idx)
		var count uint64

		if err := streamGzFile(ctx, path, func(line string) {
			if _, err := parseLine(line); err != nil {
				return
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress",
					slog.Int("file", idx+1),
					slog.Uint64("entries", count),
				)
			}

			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(line) {
					candidates[line] |= fileBit
					break
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan file %d for candidates", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_entries", count),
			slog.Int("candidates", len(candidates)),
		)

		results[idx] = fileResult{candidates: candidates}
		return nil
	}
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// parseLine splits and validates one catalog line.
func parseLine(line string) (entry, error) {
	parts := strings.Split(line, "|")
	if len(parts) != fieldCount {
		return entry{}, errors.Errorf("expected %d fields, got %d", fieldCount, len(parts))
	}

	name := strings.TrimSpace(parts[0])
	if name == "" {
		return entry{}, errors.New("empty name")
	}
	category := inventory.Category(strings.TrimSpace(parts[1]))
	if !category.Valid() {
		return entry{}, fmt.Errorf("unknown category %q", parts[1])
	}
	cost, err := decimal.NewFromString(strings.TrimSpace(parts[3]))
	if err != nil || cost.IsNegative() {
		return entry{}, errors.Errorf("bad cost %q", parts[3])
	}

	return entry{
		name:     name,
		category: category,
		unit:     strings.TrimSpace(parts[2]),
		cost:     cost,
	}, nil
}

// writeItems upserts confirmed entries. Existing items keep their stock
// levels; only the unit cost and supplier-provided fields are refreshed.
func writeItems(ctx context.Context, pool *pgxpool.Pool, storeID string, entries []entry) error {
	slog.Info("writing inventory items", slog.Int("count", len(entries)))

	for i, e := range entries {
		_, err := pool.Exec(ctx, `
			INSERT INTO inventory_items (id, store_id, name, category, unit, cost_per_unit)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (store_id, name) DO UPDATE
			SET category = EXCLUDED.category, unit = EXCLUDED.unit,
			    cost_per_unit = EXCLUDED.cost_per_unit, updated_at = now()`,
			uuid.New().String(), storeID, e.name, e.category, e.unit, e.cost,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert item %s", e.name)
		}

		if (i+1)%100 == 0 || i+1 == len(entries) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(entries)))
		}
	}

	return nil
}
