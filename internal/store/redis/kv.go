package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/exchangesim/internal/domain"
)

// debitLua atomically decrements the integer at KEYS[1] by ARGV[1] only if
// the current value (absent = 0) is at least ARGV[1]. It returns the new
// value on success and -1 when the floor check fails. The new value is
// always >= 0 on success, so -1 is unambiguous.
const debitLua = `
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local amt = tonumber(ARGV[1])
if cur >= amt then
    return redis.call('DECRBY', KEYS[1], ARGV[1])
end
return -1
`

// KV implements domain.KV on a Redis client. The conditional decrement that
// backs ledger debits runs as a Lua script so check and write are one
// indivisible step on the server.
type KV struct {
	rdb     *redis.Client
	debitSc *redis.Script
}

// NewKV creates a KV backed by the given Client.
func NewKV(c *Client) *KV {
	return &KV{
		rdb:     c.Underlying(),
		debitSc: redis.NewScript(debitLua),
	}
}

// Get returns the value for key, or domain.ErrNotFound.
func (kv *KV) Get(ctx context.Context, key string) (string, error) {
	val, err := kv.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis: get %s: %w", key, err)
	}
	return val, nil
}

// MGet returns the values for keys in order; missing keys yield nil entries.
func (kv *KV) MGet(ctx context.Context, keys ...string) ([]*string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := kv.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: mget: %w", err)
	}
	out := make([]*string, len(vals))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[i] = &s
		}
	}
	return out, nil
}

// Set unconditionally stores value under key.
func (kv *KV) Set(ctx context.Context, key, value string) error {
	if err := kv.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

// SetNX stores value only if key is absent.
func (kv *KV) SetNX(ctx context.Context, key, value string) (bool, error) {
	ok, err := kv.rdb.SetNX(ctx, key, value, 0).Result()
	if err != nil {
		return false, fmt.Errorf("redis: setnx %s: %w", key, err)
	}
	return ok, nil
}

// IncrBy atomically adds delta to the integer at key and returns the new
// value.
func (kv *KV) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	val, err := kv.rdb.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: incrby %s: %w", key, err)
	}
	return val, nil
}

// DecrIfGreaterEqual atomically subtracts amount from the integer at key only
// if the current value is >= amount.
func (kv *KV) DecrIfGreaterEqual(ctx context.Context, key string, amount int64) (bool, error) {
	res, err := kv.debitSc.Run(ctx, kv.rdb, []string{key}, amount).Int64()
	if err != nil {
		return false, fmt.Errorf("redis: conditional decr %s: %w", key, err)
	}
	return res >= 0, nil
}

// Compile-time interface check.
var _ domain.KV = (*KV)(nil)
