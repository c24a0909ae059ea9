package source

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/exchangesim/internal/domain"
)

// memKV implements just enough of domain.KV for the importer.
type memKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string]string)}
}

func (m *memKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (m *memKV) MGet(_ context.Context, keys ...string) ([]*string, error) {
	out := make([]*string, len(keys))
	for i, k := range keys {
		if v, err := m.Get(context.Background(), k); err == nil {
			s := v
			out[i] = &s
		}
	}
	return out, nil
}

func (m *memKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memKV) SetNX(_ context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value
	return true, nil
}

func (m *memKV) IncrBy(_ context.Context, _ string, _ int64) (int64, error) {
	return 0, nil
}

func (m *memKV) DecrIfGreaterEqual(_ context.Context, _ string, _ int64) (bool, error) {
	return false, nil
}

type bookKey struct {
	pair   string
	bucket int64
}

// memBookStore records imported books keyed by (pair, bucket).
type memBookStore struct {
	mu    sync.Mutex
	books map[bookKey]domain.OrderBook
	saves int
}

func newMemBookStore() *memBookStore {
	return &memBookStore{books: make(map[bookKey]domain.OrderBook)}
}

func (m *memBookStore) SaveBook(_ context.Context, pair string, bucket int64, book domain.OrderBook) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books[bookKey{pair, bucket}] = book
	m.saves++
	return nil
}

func (m *memBookStore) GetBook(_ context.Context, pair string, bucket int64) (domain.OrderBook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.books[bookKey{pair, bucket}]
	if !ok {
		return domain.OrderBook{}, domain.ErrNotFound
	}
	return book, nil
}

func writeDump(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "full_ob.dat")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestImporterRun(t *testing.T) {
	ctx := context.Background()

	t.Run("imports records into their buckets", func(t *testing.T) {
		kv := newMemKV()
		books := newMemBookStore()
		imp := NewImporter(kv, books, nil, 300, slog.Default())

		path := writeDump(t,
			`{"pair":"knc_eth","timestamp":150000,"bids":[["0.005","120"]],"asks":[["0.0052","80"]]}`,
			`{"pair":"knc_eth","timestamp":450000,"bids":[["0.0051","100"]],"asks":[]}`,
			`{"pair":"omg_eth","timestamp":150000,"bids":[],"asks":[["0.02","30"]]}`,
		)

		count, err := imp.Run(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		// 150000ms at a 300s interval lands in bucket 0, 450000ms in bucket 1.
		book, err := books.GetBook(ctx, "knc_eth", 0)
		require.NoError(t, err)
		require.Len(t, book.Bids, 1)
		assert.Equal(t, "0.005", book.Bids[0].Rate.String())
		assert.Equal(t, "120", book.Bids[0].Volume.String())

		_, err = books.GetBook(ctx, "knc_eth", 1)
		require.NoError(t, err)
		_, err = books.GetBook(ctx, "omg_eth", 0)
		require.NoError(t, err)
	})

	t.Run("second run is a no-op", func(t *testing.T) {
		kv := newMemKV()
		books := newMemBookStore()
		imp := NewImporter(kv, books, nil, 300, slog.Default())

		path := writeDump(t,
			`{"pair":"knc_eth","timestamp":150000,"bids":[["0.005","120"]],"asks":[]}`,
		)

		count, err := imp.Run(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		count, err = imp.Run(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
		assert.Equal(t, 1, books.saves)
	})

	t.Run("sentinel is not set on a failed import", func(t *testing.T) {
		kv := newMemKV()
		books := newMemBookStore()
		imp := NewImporter(kv, books, nil, 300, slog.Default())

		path := writeDump(t,
			`{"pair":"knc_eth","timestamp":150000,"bids":[["0.005","120"]],"asks":[]}`,
			`{not json}`,
		)

		_, err := imp.Run(ctx, path)
		require.Error(t, err)
		_, err = kv.Get(ctx, sentinelKey)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		// The retry sees no sentinel and re-imports from scratch.
		good := writeDump(t,
			`{"pair":"knc_eth","timestamp":150000,"bids":[["0.005","120"]],"asks":[]}`,
		)
		count, err := imp.Run(ctx, good)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("blank lines are skipped", func(t *testing.T) {
		kv := newMemKV()
		books := newMemBookStore()
		imp := NewImporter(kv, books, nil, 300, slog.Default())

		path := writeDump(t,
			`{"pair":"knc_eth","timestamp":150000,"bids":[],"asks":[]}`,
			``,
			`{"pair":"omg_eth","timestamp":150000,"bids":[],"asks":[]}`,
		)

		count, err := imp.Run(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("missing file without blob fallback", func(t *testing.T) {
		imp := NewImporter(newMemKV(), newMemBookStore(), nil, 300, slog.Default())
		_, err := imp.Run(ctx, filepath.Join(t.TempDir(), "absent.dat"))
		require.Error(t, err)
	})

	t.Run("falls back to blob storage", func(t *testing.T) {
		kv := newMemKV()
		books := newMemBookStore()
		blobs := blobOpenerFunc(func(_ context.Context, path string) (io.ReadCloser, error) {
			assert.Equal(t, "dumps/full_ob.dat", path)
			return io.NopCloser(strings.NewReader(
				`{"pair":"knc_eth","timestamp":150000,"bids":[["0.005","120"]],"asks":[]}` + "\n",
			)), nil
		})
		imp := NewImporter(kv, books, blobs, 300, slog.Default())

		count, err := imp.Run(ctx, "dumps/full_ob.dat")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

type blobOpenerFunc func(ctx context.Context, path string) (io.ReadCloser, error)

func (f blobOpenerFunc) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	return f(ctx, path)
}
