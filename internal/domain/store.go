package domain

import "context"

// KV is the persistent store contract the ledger and simulator are built on.
// The production implementation is Redis; tests substitute an in-memory fake.
// Every ledger mutation maps to exactly one atomic KV operation.
type KV interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// MGet returns the values for keys in order; missing keys yield nil.
	MGet(ctx context.Context, keys ...string) ([]*string, error)
	// Set unconditionally stores value under key.
	Set(ctx context.Context, key, value string) error
	// SetNX stores value only if key is absent; reports whether it was set.
	SetNX(ctx context.Context, key, value string) (bool, error)
	// IncrBy atomically adds delta to the integer at key (absent = 0) and
	// returns the new value.
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	// DecrIfGreaterEqual atomically subtracts amount from the integer at key
	// only if the current value is >= amount. It reports whether the
	// decrement was applied; on false the value is unchanged.
	DecrIfGreaterEqual(ctx context.Context, key string, amount int64) (bool, error)
}

// OrderSource supplies raw order-book snapshots for a pair at or near a
// timestamp (ms since epoch). Implementations fail with ErrSourceUnavailable
// when no data can be produced and ErrInvalidPair for unconfigured pairs;
// they never retry internally.
type OrderSource interface {
	Fetch(ctx context.Context, pair Pair, timestamp int64) (OrderBook, error)
}

// BookStore holds pre-seeded, time-bucketed order books for the simulator.
type BookStore interface {
	SaveBook(ctx context.Context, pair string, bucket int64, book OrderBook) error
	// GetBook returns the book for (pair, bucket), or ErrNotFound.
	GetBook(ctx context.Context, pair string, bucket int64) (OrderBook, error)
}

// WithdrawalStore persists PendingWithdrawal records.
type WithdrawalStore interface {
	Insert(ctx context.Context, w PendingWithdrawal) error
	Get(ctx context.Context, id string) (PendingWithdrawal, error)
	ListByIdentity(ctx context.Context, identity string, limit int) ([]PendingWithdrawal, error)
	// UpdateStatus moves a record from pending to sent or failed. It returns
	// ErrNotFound if the record does not exist or is not pending.
	UpdateStatus(ctx context.Context, id string, status WithdrawalStatus) error
}
