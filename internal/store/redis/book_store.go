package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/exchangesim/internal/domain"
)

// BookStore implements domain.BookStore using plain Redis string values.
//
// Key schema:
//
//	simbook:{pair}:{bucket} - JSON-encoded domain.OrderBook
//
// Books are written once by the simulation importer and read back by the
// simulator order source; they are never mutated in place.
type BookStore struct {
	rdb *redis.Client
}

// NewBookStore creates a BookStore backed by the given Client.
func NewBookStore(c *Client) *BookStore {
	return &BookStore{rdb: c.Underlying()}
}

func bookKey(pair string, bucket int64) string {
	return "simbook:" + pair + ":" + strconv.FormatInt(bucket, 10)
}

// SaveBook stores the order book for (pair, bucket).
func (bs *BookStore) SaveBook(ctx context.Context, pair string, bucket int64, book domain.OrderBook) error {
	data, err := json.Marshal(book)
	if err != nil {
		return fmt.Errorf("redis: encode book %s/%d: %w", pair, bucket, err)
	}
	if err := bs.rdb.Set(ctx, bookKey(pair, bucket), data, 0).Err(); err != nil {
		return fmt.Errorf("redis: save book %s/%d: %w", pair, bucket, err)
	}
	return nil
}

// GetBook returns the order book for (pair, bucket), or domain.ErrNotFound.
func (bs *BookStore) GetBook(ctx context.Context, pair string, bucket int64) (domain.OrderBook, error) {
	data, err := bs.rdb.Get(ctx, bookKey(pair, bucket)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.OrderBook{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("redis: get book %s/%d: %w", pair, bucket, err)
	}

	var book domain.OrderBook
	if err := json.Unmarshal(data, &book); err != nil {
		return domain.OrderBook{}, fmt.Errorf("redis: decode book %s/%d: %w", pair, bucket, err)
	}
	return book, nil
}

// Compile-time interface check.
var _ domain.BookStore = (*BookStore)(nil)
