// Command coupon-ingest bulk-loads promo codes for a site from gzipped code
// dumps. A code counts as issued only when at least two of the three dumps
// contain it. The cross-check runs in two streaming passes with one bloom
// filter per dump, so the dumps never have to fit in memory.
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
	"path/filepath"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/merchkit/storefront/internal/repository"
)

const (
	estimatedCodesPerDump = 120_000_000
	falsePositiveRate     = 0.001
	dumpCount             = 3
	logEvery              = 10_000_000
	codeLenMin            = 8
	codeLenMax            = 10
	insertBatchSize       = 500
)

// couponTerms is what gets attached to a recognized promo code on insert.
type couponTerms struct {
	kind        string
	value       string
	description string
}

var knownCodes = map[string]couponTerms{
	"FIFTYOFF": {kind: "percentage", value: "50", description: "50% off entire order"},
	"SIXTYOFF": {kind: "percentage", value: "60", description: "60% off entire order"},
	"GNULINUX": {kind: "percentage", value: "15", description: "Open source discount: 15% off"},
	"OVER9000": {kind: "fixed_amount", value: "9", description: "$9 off your order"},
	"HAPPYHRS": {kind: "percentage", value: "18", description: "Happy Hours: 18% off"},
	"SHIPFREE": {kind: "free_shipping", value: "0", description: "Free shipping"},
}

var fallbackTerms = couponTerms{
	kind:        "percentage",
	value:       "10",
	description: "Valid promo code: 10% off",
}

func main() {
	var (
		dataDir     string
		databaseURL string
		siteID      string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing couponbaseN.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&siteID, "site", "", "site ID to attach the imported coupons to")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if siteID == "" {
		slog.Error("site ID is required: set --site")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := ingest(ctx, dataDir, databaseURL, siteID); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed")
}

func ingest(ctx context.Context, dataDir, databaseURL, siteID string) error {
	dumps := make([]string, dumpCount)
	for i := range dumpCount {
		dumps[i] = filepath.Join(dataDir, fmt.Sprintf("couponbase%d.gz", i+1))
		if _, err := os.Stat(dumps[i]); err != nil {
			return errors.Wrapf(err, "check dump %s", dumps[i])
		}
	}

	slog.Info("pass 1: indexing dumps", slog.Int("dumps", len(dumps)))
	index, err := indexDumps(ctx, dumps)
	if err != nil {
		return errors.Wrap(err, "index dumps")
	}

	slog.Info("pass 2: cross-checking codes")
	codes, err := crossCheck(ctx, dumps, index)
	if err != nil {
		return errors.Wrap(err, "cross-check codes")
	}
	slog.Info("issued codes found", slog.Int("count", len(codes)))

	if len(codes) == 0 {
		return nil
	}

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	return insertCoupons(ctx, pool, siteID, codes)
}

// indexDumps builds one bloom filter per dump, all dumps in parallel.
func indexDumps(ctx context.Context, dumps []string) ([]*bloom.BloomFilter, error) {
	index := make([]*bloom.BloomFilter, len(dumps))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range dumps {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(estimatedCodesPerDump, falsePositiveRate)
			var scanned uint64

			err := eachCode(ctx, path, func(code string) {
				filter.AddString(code)
				if scanned++; scanned%logEvery == 0 {
					slog.Info("pass 1 progress", slog.Int("dump", i+1), slog.Uint64("codes", scanned))
				}
			})
			if err != nil {
				return errors.Wrapf(err, "index dump %d", i+1)
			}

			slog.Info("pass 1 dump done", slog.Int("dump", i+1), slog.Uint64("codes", scanned))
			index[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return index, nil
}

// crossCheck re-streams each dump and tests its codes against the OTHER
// dumps' filters. Presence is tracked as a per-dump bitmask; a code is issued
// when its mask covers two or more dumps.
func crossCheck(ctx context.Context, dumps []string, index []*bloom.BloomFilter) ([]string, error) {
	perDump := make([]map[string]uint, len(dumps))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range dumps {
		g.Go(func() error {
			seen := make(map[string]uint)
			mask := uint(1) << uint(i)
			var scanned uint64

			err := eachCode(ctx, path, func(code string) {
				if scanned++; scanned%logEvery == 0 {
					slog.Info("pass 2 progress", slog.Int("dump", i+1), slog.Uint64("codes", scanned))
				}
				for j, filter := range index {
					if j == i {
						continue
					}
					if filter.TestString(code) {
						seen[code] |= mask
						break
					}
				}
			})
			if err != nil {
				return errors.Wrapf(err, "cross-check dump %d", i+1)
			}

			slog.Info("pass 2 dump done",
				slog.Int("dump", i+1),
				slog.Uint64("codes", scanned),
				slog.Int("candidates", len(seen)),
			)
			perDump[i] = seen
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, seen := range perDump {
		for code, mask := range seen {
			merged[code] |= mask
		}
	}

	var issued []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			issued = append(issued, code)
		}
	}
	return issued, nil
}

// eachCode streams a gzipped dump line by line, skipping codes outside the
// issued length range.
func eachCode(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		code := scanner.Text()
		if len(code) >= codeLenMin && len(code) <= codeLenMax {
			fn(code)
		}
	}
	return errors.Wrapf(scanner.Err(), "scan %s", path)
}

const upsertCouponSQL = `
	INSERT INTO coupons (id, site_id, code, type, value, description, active)
	VALUES ($1, $2, $3, $4, $5, $6, TRUE)
	ON CONFLICT (site_id, UPPER(code)) DO UPDATE SET
		type = EXCLUDED.type, value = EXCLUDED.value, description = EXCLUDED.description`

// insertCoupons upserts the issued codes in batches.
func insertCoupons(ctx context.Context, pool *pgxpool.Pool, siteID string, codes []string) error {
	slog.Info("writing coupons", slog.Int("count", len(codes)), slog.String("site", siteID))

	for start := 0; start < len(codes); start += insertBatchSize {
		end := min(start+insertBatchSize, len(codes))

		batch := &pgx.Batch{}
		for _, code := range codes[start:end] {
			terms, ok := knownCodes[code]
			if !ok {
				terms = fallbackTerms
			}
			value, err := decimal.NewFromString(terms.value)
			if err != nil {
				return errors.Wrapf(err, "parse value for code %s", code)
			}
			batch.Queue(upsertCouponSQL,
				siteID+"-"+code, siteID, code, terms.kind, value, terms.description)
		}

		if err := pool.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrapf(err, "upsert batch at offset %d", start)
		}
		slog.Info("write progress", slog.Int("written", end), slog.Int("total", len(codes)))
	}
	return nil
}
