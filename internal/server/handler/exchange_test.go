package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/exchangesim/internal/depth"
	"github.com/alanyoungcy/exchangesim/internal/domain"
	"github.com/alanyoungcy/exchangesim/internal/exchange"
	"github.com/alanyoungcy/exchangesim/internal/ledger"
)

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
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*string, len(keys))
	for i, k := range keys {
		if v, ok := m.data[k]; ok {
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

func (m *memKV) IncrBy(_ context.Context, key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, _ := strconv.ParseInt(m.data[key], 10, 64)
	cur += delta
	m.data[key] = strconv.FormatInt(cur, 10)
	return cur, nil
}

func (m *memKV) DecrIfGreaterEqual(_ context.Context, key string, amount int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, _ := strconv.ParseInt(m.data[key], 10, 64)
	if cur < amount {
		return false, nil
	}
	m.data[key] = strconv.FormatInt(cur-amount, 10)
	return true, nil
}

type memWithdrawals struct {
	mu      sync.Mutex
	records []domain.PendingWithdrawal
}

func (m *memWithdrawals) Insert(_ context.Context, w domain.PendingWithdrawal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, w)
	return nil
}

func (m *memWithdrawals) Get(_ context.Context, id string) (domain.PendingWithdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.records {
		if w.ID == id {
			return w, nil
		}
	}
	return domain.PendingWithdrawal{}, domain.ErrNotFound
}

func (m *memWithdrawals) ListByIdentity(_ context.Context, identity string, _ int) ([]domain.PendingWithdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PendingWithdrawal
	for _, w := range m.records {
		if w.Identity == identity {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *memWithdrawals) UpdateStatus(_ context.Context, id string, status domain.WithdrawalStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, w := range m.records {
		if w.ID == id && w.Status == domain.WithdrawalPending {
			m.records[i].Status = status
			return nil
		}
	}
	return domain.ErrNotFound
}

// fixedSource serves one static book for every configured pair, or fails when
// down is set.
type fixedSource struct {
	down bool
}

func (s *fixedSource) Fetch(_ context.Context, pair domain.Pair, timestamp int64) (domain.OrderBook, error) {
	if s.down {
		return domain.OrderBook{}, domain.ErrSourceUnavailable
	}
	return domain.OrderBook{
		Pair:      pair.String(),
		Timestamp: timestamp,
		Bids: []domain.BookLevel{
			{Rate: decimal.RequireFromString("0.005"), Volume: decimal.RequireFromString("120")},
		},
		Asks: []domain.BookLevel{
			{Rate: decimal.RequireFromString("0.0052"), Volume: decimal.RequireFromString("80")},
		},
	}, nil
}

func newTestHandler(t *testing.T) (*ExchangeHandler, *ledger.Ledger, *fixedSource) {
	t.Helper()
	tokens, err := domain.NewTokenSet([]domain.Token{
		{Symbol: "KNC", Decimals: 8},
		{Symbol: "ETH", Decimals: 8},
	})
	require.NoError(t, err)

	src := &fixedSource{}
	bl := ledger.New(newMemKV(), &memWithdrawals{}, tokens, slog.Default())
	engine := exchange.New(exchange.Config{
		Name:        "liqui",
		Tokens:      tokens,
		FeeFraction: decimal.Zero,
	}, depth.NewCache(src, 300, slog.Default()), bl, slog.Default())

	return NewExchangeHandler(engine, tokens, slog.Default()), bl, src
}

func postForm(h *ExchangeHandler, key string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if key != "" {
		req.Header.Set("Key", key)
	}
	rec := httptest.NewRecorder()
	h.Dispatch(rec, req)
	return rec
}

type envelope struct {
	Success int             `json:"success"`
	Error   string          `json:"error"`
	Return  json.RawMessage `json:"return"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("missing Key header fails", func(t *testing.T) {
		h, _, _ := newTestHandler(t)
		env := decodeEnvelope(t, postForm(h, "", url.Values{"method": {"getInfo"}}))
		assert.Equal(t, 0, env.Success)
		assert.Contains(t, env.Error, "Key")
	})

	t.Run("missing method fails", func(t *testing.T) {
		h, _, _ := newTestHandler(t)
		env := decodeEnvelope(t, postForm(h, "abc", url.Values{}))
		assert.Equal(t, 0, env.Success)
		assert.Equal(t, "method is missing in your request", env.Error)
	})

	t.Run("unknown method fails", func(t *testing.T) {
		h, _, _ := newTestHandler(t)
		env := decodeEnvelope(t, postForm(h, "abc", url.Values{"method": {"CancelOrder"}}))
		assert.Equal(t, 0, env.Success)
		assert.Equal(t, "invalid method requested", env.Error)
	})

	t.Run("getInfo returns funds for every token", func(t *testing.T) {
		h, bl, _ := newTestHandler(t)
		require.NoError(t, bl.Credit(ctx, "abc", "ETH", 150_000_000))

		env := decodeEnvelope(t, postForm(h, "ABC", url.Values{"method": {"getInfo"}}))
		require.Equal(t, 1, env.Success)

		var ret struct {
			Funds map[string]decimal.Decimal `json:"funds"`
		}
		require.NoError(t, json.Unmarshal(env.Return, &ret))
		assert.True(t, ret.Funds["ETH"].Equal(decimal.RequireFromString("1.5")))
		assert.True(t, ret.Funds["KNC"].IsZero())
	})

	t.Run("Trade executes and reports resulting funds", func(t *testing.T) {
		h, bl, _ := newTestHandler(t)
		require.NoError(t, bl.Credit(ctx, "abc", "ETH", 100*100_000_000))

		env := decodeEnvelope(t, postForm(h, "abc", url.Values{
			"method": {"Trade"},
			"pair":   {"knc_eth"},
			"type":   {"buy"},
			"rate":   {"2"},
			"amount": {"10"},
		}))
		require.Equal(t, 1, env.Success, "error: %s", env.Error)

		var receipt domain.TradeReceipt
		require.NoError(t, json.Unmarshal(env.Return, &receipt))
		assert.True(t, receipt.Balances["ETH"].Equal(decimal.NewFromInt(80)))
		assert.True(t, receipt.Balances["KNC"].Equal(decimal.NewFromInt(10)))
	})

	t.Run("Trade with insufficient funds fails in the envelope", func(t *testing.T) {
		h, _, _ := newTestHandler(t)
		env := decodeEnvelope(t, postForm(h, "abc", url.Values{
			"method": {"Trade"},
			"pair":   {"knc_eth"},
			"type":   {"buy"},
			"rate":   {"2"},
			"amount": {"10"},
		}))
		assert.Equal(t, 0, env.Success)
		assert.Contains(t, env.Error, "insufficient")
	})

	t.Run("Trade rejects bad form fields", func(t *testing.T) {
		h, _, _ := newTestHandler(t)
		for name, form := range map[string]url.Values{
			"bad pair":   {"method": {"Trade"}, "pair": {"btc_usd"}, "type": {"buy"}, "rate": {"2"}, "amount": {"1"}},
			"bad rate":   {"method": {"Trade"}, "pair": {"knc_eth"}, "type": {"buy"}, "rate": {"two"}, "amount": {"1"}},
			"bad amount": {"method": {"Trade"}, "pair": {"knc_eth"}, "type": {"buy"}, "rate": {"2"}, "amount": {""}},
		} {
			env := decodeEnvelope(t, postForm(h, "abc", form))
			assert.Equal(t, 0, env.Success, name)
		}
	})

	t.Run("WithdrawCoin records a pending withdrawal", func(t *testing.T) {
		h, bl, _ := newTestHandler(t)
		require.NoError(t, bl.Credit(ctx, "abc", "ETH", 100*100_000_000))

		env := decodeEnvelope(t, postForm(h, "abc", url.Values{
			"method":   {"WithdrawCoin"},
			"coinName": {"ETH"},
			"amount":   {"20"},
			"address":  {"0x4444444444444444444444444444444444444444"},
		}))
		require.Equal(t, 1, env.Success, "error: %s", env.Error)

		var pending domain.PendingWithdrawal
		require.NoError(t, json.Unmarshal(env.Return, &pending))
		assert.Equal(t, domain.WithdrawalPending, pending.Status)
		assert.NotEmpty(t, pending.ID)

		balances, err := bl.Balances(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, domain.Amount(80*100_000_000), balances["ETH"])
	})

	t.Run("WithdrawCoin with a bad address fails", func(t *testing.T) {
		h, bl, _ := newTestHandler(t)
		require.NoError(t, bl.Credit(ctx, "abc", "ETH", 100*100_000_000))

		env := decodeEnvelope(t, postForm(h, "abc", url.Values{
			"method":   {"WithdrawCoin"},
			"coinName": {"ETH"},
			"amount":   {"20"},
			"address":  {"not-an-address"},
		}))
		assert.Equal(t, 0, env.Success)
	})
}

func depthRequest(h *ExchangeHandler, pairs, timestamp string) *httptest.ResponseRecorder {
	target := "/depth/" + pairs
	if timestamp != "" {
		target += "?timestamp=" + timestamp
	}
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.SetPathValue("pairs", pairs)
	rec := httptest.NewRecorder()
	h.Depth(rec, req)
	return rec
}

func TestDepth(t *testing.T) {
	t.Run("serves the book in legacy array form", func(t *testing.T) {
		h, _, _ := newTestHandler(t)
		rec := depthRequest(h, "knc_eth", "1000000")
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]struct {
			Bids [][2]decimal.Decimal `json:"bids"`
			Asks [][2]decimal.Decimal `json:"asks"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		book, ok := body["knc_eth"]
		require.True(t, ok)
		require.Len(t, book.Bids, 1)
		assert.True(t, book.Bids[0][0].Equal(decimal.RequireFromString("0.005")))
		assert.True(t, book.Bids[0][1].Equal(decimal.RequireFromString("120")))
	})

	t.Run("unconfigured pair is a client error", func(t *testing.T) {
		h, _, _ := newTestHandler(t)
		rec := depthRequest(h, "btc_usd", "1000000")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("source outage maps to 503", func(t *testing.T) {
		h, _, src := newTestHandler(t)
		src.down = true
		rec := depthRequest(h, "knc_eth", "1000000")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("bad timestamp is a client error", func(t *testing.T) {
		h, _, _ := newTestHandler(t)
		rec := depthRequest(h, "knc_eth", "yesterday")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
