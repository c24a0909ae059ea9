package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookLevel is a single (rate, volume) rung of the depth ladder. Volume is
// denominated in the base token, rate in quote per base.
type BookLevel struct {
	Rate   decimal.Decimal `json:"rate"`
	Volume decimal.Decimal `json:"volume"`
}

// OrderBook is a full snapshot of bids and asks for one pair at one point in
// time. Bids are sorted by rate descending, asks ascending. Snapshots are
// immutable after creation: the depth cache replaces them, never edits them.
type OrderBook struct {
	Pair      string      `json:"pair"`
	Bids      []BookLevel `json:"bids"`
	Asks      []BookLevel `json:"asks"`
	Timestamp int64       `json:"timestamp"` // ms since epoch, source time
	FetchedAt time.Time   `json:"-"`
}

// BestBid returns the highest bid rate, or zero if the bid side is empty.
func (ob OrderBook) BestBid() decimal.Decimal {
	if len(ob.Bids) == 0 {
		return decimal.Zero
	}
	return ob.Bids[0].Rate
}

// BestAsk returns the lowest ask rate, or zero if the ask side is empty.
func (ob OrderBook) BestAsk() decimal.Decimal {
	if len(ob.Asks) == 0 {
		return decimal.Zero
	}
	return ob.Asks[0].Rate
}
