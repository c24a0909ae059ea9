// Package depth bounds the rate at which the order source is invoked while
// bounding staleness to one configured refresh interval.
package depth

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/alanyoungcy/exchangesim/internal/domain"
)

// entry is one cached snapshot for a (pair, bucket). Entries are replaced
// whole; the snapshot inside is never edited.
type entry struct {
	bucket int64
	book   domain.OrderBook
}

// Cache wraps a domain.OrderSource with a time-bucketed cache. Repeated
// depth queries within the same bucket reuse one snapshot; an expired entry
// is never served, not even when the source is down — the staleness bound is
// a hard contract.
type Cache struct {
	source          domain.OrderSource
	refreshInterval int64 // seconds

	mu      sync.RWMutex
	entries map[string]entry // pair -> latest entry

	group  singleflight.Group
	logger *slog.Logger
}

// NewCache creates a Cache over the given source. refreshIntervalSec is the
// bucket width in seconds; timestamps are milliseconds since epoch.
func NewCache(source domain.OrderSource, refreshIntervalSec int64, logger *slog.Logger) *Cache {
	return &Cache{
		source:          source,
		refreshInterval: refreshIntervalSec,
		entries:         make(map[string]entry),
		logger:          logger.With(slog.String("component", "depth_cache")),
	}
}

// Bucket maps a millisecond timestamp onto its refresh-interval bucket.
func (c *Cache) Bucket(timestamp int64) int64 {
	return timestamp / (c.refreshInterval * 1000)
}

// GetDepth returns the order book for pair at timestamp. A hit on the same
// (pair, bucket) returns the stored snapshot without touching the source.
// Concurrent misses for the same (pair, bucket) are collapsed into a single
// upstream fetch; every waiter shares its result.
func (c *Cache) GetDepth(ctx context.Context, pair domain.Pair, timestamp int64) (domain.OrderBook, error) {
	bucket := c.Bucket(timestamp)
	name := pair.String()

	c.mu.RLock()
	e, ok := c.entries[name]
	c.mu.RUnlock()
	if ok && e.bucket == bucket {
		return e.book, nil
	}

	key := name + "|" + strconv.FormatInt(bucket, 10)
	v, err, shared := c.group.Do(key, func() (any, error) {
		// Re-check under the flight: a concurrent caller may have populated
		// the bucket between our miss and this call.
		c.mu.RLock()
		e, ok := c.entries[name]
		c.mu.RUnlock()
		if ok && e.bucket == bucket {
			return e.book, nil
		}

		book, err := c.source.Fetch(ctx, pair, timestamp)
		if err != nil {
			return domain.OrderBook{}, fmt.Errorf("depth: fetch %s bucket %d: %w", name, bucket, err)
		}

		c.mu.Lock()
		c.entries[name] = entry{bucket: bucket, book: book}
		c.mu.Unlock()

		return book, nil
	})
	if err != nil {
		return domain.OrderBook{}, err
	}

	if shared {
		c.logger.DebugContext(ctx, "shared in-flight fetch",
			slog.String("pair", name),
			slog.Int64("bucket", bucket),
		)
	}
	return v.(domain.OrderBook), nil
}
