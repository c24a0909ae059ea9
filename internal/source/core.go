package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/alanyoungcy/exchangesim/internal/domain"
)

// Core fetches order books from a live upstream depth endpoint. Transport
// and decode failures, timeouts included, surface as ErrSourceUnavailable;
// retry policy, if any, belongs to the caller.
type Core struct {
	baseURL    string
	httpClient *http.Client
}

// NewCore creates a live order source against the given API root, e.g.
// "https://api.liqui.io/api/3". Requests that do not return within timeout
// are treated as unavailable.
func NewCore(baseURL string, timeout time.Duration) *Core {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Core{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// depthResponse is the upstream wire shape: pair -> {bids, asks} with each
// level a [rate, volume] array.
type depthResponse map[string]struct {
	Bids [][2]json.Number `json:"bids"`
	Asks [][2]json.Number `json:"asks"`
}

// Fetch queries the upstream depth endpoint for the pair. The upstream feed
// serves current depth only; the timestamp is recorded on the snapshot for
// the cache layer's bucketing.
func (c *Core) Fetch(ctx context.Context, pair domain.Pair, timestamp int64) (domain.OrderBook, error) {
	endpoint := fmt.Sprintf("%s/depth/%s", c.baseURL, url.PathEscape(pair.String()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("source: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("%w: read body: %v", domain.ErrSourceUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.OrderBook{}, fmt.Errorf("%w: upstream status %d", domain.ErrSourceUnavailable, resp.StatusCode)
	}

	var decoded depthResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return domain.OrderBook{}, fmt.Errorf("%w: decode depth: %v", domain.ErrSourceUnavailable, err)
	}

	raw, ok := decoded[pair.String()]
	if !ok {
		return domain.OrderBook{}, fmt.Errorf("%w: pair %s missing from upstream response",
			domain.ErrSourceUnavailable, pair.String())
	}

	book := domain.OrderBook{
		Pair:      pair.String(),
		Timestamp: timestamp,
		FetchedAt: time.Now(),
	}
	if book.Bids, err = parseLevels(raw.Bids); err != nil {
		return domain.OrderBook{}, fmt.Errorf("%w: bids: %v", domain.ErrSourceUnavailable, err)
	}
	if book.Asks, err = parseLevels(raw.Asks); err != nil {
		return domain.OrderBook{}, fmt.Errorf("%w: asks: %v", domain.ErrSourceUnavailable, err)
	}
	return book, nil
}

func parseLevels(raw [][2]json.Number) ([]domain.BookLevel, error) {
	levels := make([]domain.BookLevel, 0, len(raw))
	for _, lv := range raw {
		rate, err := decimalFromNumber(lv[0])
		if err != nil {
			return nil, err
		}
		volume, err := decimalFromNumber(lv[1])
		if err != nil {
			return nil, err
		}
		levels = append(levels, domain.BookLevel{Rate: rate, Volume: volume})
	}
	return levels, nil
}

// Compile-time interface check.
var _ domain.OrderSource = (*Core)(nil)
