package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is an exact balance amount in the smallest unit of one token
// (10^-Decimals tokens). All ledger arithmetic is integer arithmetic over
// this type; binary floating point never touches a money path.
type Amount int64

// ToBaseUnits converts an external decimal token quantity into smallest
// units. The conversion must be exact: a quantity with more fractional
// digits than the token supports fails with ErrInvalidAmount, as does a
// quantity outside the int64 range.
func ToBaseUnits(d decimal.Decimal, tok Token) (Amount, error) {
	shifted := d.Shift(tok.Decimals)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("%w: %s has more than %d decimals for %s",
			ErrInvalidAmount, d.String(), tok.Decimals, tok.Symbol)
	}
	bi := shifted.BigInt()
	if !bi.IsInt64() {
		return 0, fmt.Errorf("%w: %s out of range for %s", ErrInvalidAmount, d.String(), tok.Symbol)
	}
	return Amount(bi.Int64()), nil
}

// CeilToBaseUnits is ToBaseUnits with round-up for inexact quantities. Used
// for charges, so the exchange never undercharges by a fraction of the
// smallest unit.
func CeilToBaseUnits(d decimal.Decimal, tok Token) (Amount, error) {
	shifted := d.Shift(tok.Decimals).Ceil()
	bi := shifted.BigInt()
	if !bi.IsInt64() {
		return 0, fmt.Errorf("%w: %s out of range for %s", ErrInvalidAmount, d.String(), tok.Symbol)
	}
	return Amount(bi.Int64()), nil
}

// FloorToBaseUnits is ToBaseUnits with round-down for inexact quantities.
// Used for proceeds credited to the caller.
func FloorToBaseUnits(d decimal.Decimal, tok Token) (Amount, error) {
	shifted := d.Shift(tok.Decimals).Floor()
	bi := shifted.BigInt()
	if !bi.IsInt64() {
		return 0, fmt.Errorf("%w: %s out of range for %s", ErrInvalidAmount, d.String(), tok.Symbol)
	}
	return Amount(bi.Int64()), nil
}

// Decimal renders the amount back as a token-denominated decimal.
func (a Amount) Decimal(tok Token) decimal.Decimal {
	return decimal.New(int64(a), -tok.Decimals)
}
