// Package source provides the two order-book source variants behind one
// contract: a replayable simulator backed by pre-seeded store data and a
// live loader that queries an upstream exchange feed.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/alanyoungcy/exchangesim/internal/domain"
)

// Simulator reads time-bucketed order books previously materialized into the
// persistent store by the Importer. Lookups are deterministic: the same
// (pair, bucket) returns the same snapshot every call, which makes depth
// queries reproducible for testing and backtesting.
type Simulator struct {
	books           domain.BookStore
	refreshInterval int64 // seconds, matches the importer's bucketing
}

// NewSimulator creates a Simulator over the given book store.
func NewSimulator(books domain.BookStore, refreshIntervalSec int64) *Simulator {
	return &Simulator{books: books, refreshInterval: refreshIntervalSec}
}

// Fetch returns the pre-seeded book for the pair at the timestamp's bucket.
// Missing data surfaces as ErrSourceUnavailable.
func (s *Simulator) Fetch(ctx context.Context, pair domain.Pair, timestamp int64) (domain.OrderBook, error) {
	bucket := timestamp / (s.refreshInterval * 1000)

	book, err := s.books.GetBook(ctx, pair.String(), bucket)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.OrderBook{}, fmt.Errorf("%w: no simulation data for %s at bucket %d",
			domain.ErrSourceUnavailable, pair.String(), bucket)
	}
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	return book, nil
}

// Compile-time interface check.
var _ domain.OrderSource = (*Simulator)(nil)
