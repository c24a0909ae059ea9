package domain

import "github.com/shopspring/decimal"

// TradeSide is the direction of a trade from the caller's perspective.
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// Valid reports whether the side is one of the two known values.
func (s TradeSide) Valid() bool {
	return s == SideBuy || s == SideSell
}

// TradeRequest is one simulated execution request. It is transient: nothing
// of it is persisted beyond the ledger mutation and the returned receipt.
type TradeRequest struct {
	Identity string
	Pair     Pair
	Side     TradeSide
	Rate     decimal.Decimal // quote per base
	Volume   decimal.Decimal // base token quantity
}

// TradeReceipt reports a completed simulated execution, including the fee
// charged (in the quote token) and the caller's balances after the trade.
type TradeReceipt struct {
	Pair     string                     `json:"pair"`
	Side     TradeSide                  `json:"side"`
	Rate     decimal.Decimal            `json:"rate"`
	Volume   decimal.Decimal            `json:"volume"`
	Fee      decimal.Decimal            `json:"fee"`
	Balances map[string]decimal.Decimal `json:"funds"`
}
