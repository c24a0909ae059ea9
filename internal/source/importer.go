package source

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/exchangesim/internal/domain"
)

// sentinelKey marks a completed simulation import. Re-running the importer
// against a store that already carries the sentinel is a no-op.
const sentinelKey = "imported_simulation_data"

// BlobOpener fetches the order-book dump from object storage when the dump
// is not on the local filesystem.
type BlobOpener interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
}

// Importer materializes an order-book dump into the persistent store for the
// Simulator to read. The dump is newline-delimited JSON, one record per
// line: {"pair": ..., "timestamp": <ms>, "bids": [[rate, volume], ...],
// "asks": [...]}.
type Importer struct {
	kv              domain.KV
	books           domain.BookStore
	blobs           BlobOpener // optional, used for s3:// style paths
	refreshInterval int64      // seconds
	logger          *slog.Logger
}

// NewImporter creates an Importer. blobs may be nil when only local files
// are used.
func NewImporter(kv domain.KV, books domain.BookStore, blobs BlobOpener, refreshIntervalSec int64, logger *slog.Logger) *Importer {
	return &Importer{
		kv:              kv,
		books:           books,
		blobs:           blobs,
		refreshInterval: refreshIntervalSec,
		logger:          logger.With(slog.String("component", "importer")),
	}
}

// dumpRecord is one line of the order-book dump file.
type dumpRecord struct {
	Pair      string           `json:"pair"`
	Timestamp int64            `json:"timestamp"`
	Bids      [][2]json.Number `json:"bids"`
	Asks      [][2]json.Number `json:"asks"`
}

// Run imports the dump at path unless a previous import already completed.
// The sentinel is set only after the whole file has been written, so a
// partial import is retried from scratch on the next run. Returns the number
// of books imported (0 when skipped).
func (imp *Importer) Run(ctx context.Context, path string) (int, error) {
	if _, err := imp.kv.Get(ctx, sentinelKey); err == nil {
		imp.logger.InfoContext(ctx, "simulation data already imported, skipping")
		return 0, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return 0, fmt.Errorf("source: check import sentinel: %w", err)
	}

	rc, err := imp.open(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("source: open dump %s: %w", path, err)
	}
	defer rc.Close()

	count := 0
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 1<<20), 16<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec dumpRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return count, fmt.Errorf("source: decode dump line %d: %w", count+1, err)
		}

		book := domain.OrderBook{
			Pair:      rec.Pair,
			Timestamp: rec.Timestamp,
		}
		if book.Bids, err = parseLevels(rec.Bids); err != nil {
			return count, fmt.Errorf("source: dump line %d bids: %w", count+1, err)
		}
		if book.Asks, err = parseLevels(rec.Asks); err != nil {
			return count, fmt.Errorf("source: dump line %d asks: %w", count+1, err)
		}

		bucket := rec.Timestamp / (imp.refreshInterval * 1000)
		if err := imp.books.SaveBook(ctx, rec.Pair, bucket, book); err != nil {
			return count, err
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("source: read dump: %w", err)
	}

	if err := imp.kv.Set(ctx, sentinelKey, "1"); err != nil {
		return count, fmt.Errorf("source: set import sentinel: %w", err)
	}

	imp.logger.InfoContext(ctx, "simulation data imported", slog.Int("books", count))
	return count, nil
}

// open resolves the dump path against the local filesystem first and falls
// back to blob storage when configured.
func (imp *Importer) open(ctx context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err == nil {
		return f, nil
	}
	if imp.blobs != nil {
		return imp.blobs.Get(ctx, path)
	}
	return nil, err
}

func decimalFromNumber(n json.Number) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse %q: %w", n.String(), err)
	}
	return d, nil
}
