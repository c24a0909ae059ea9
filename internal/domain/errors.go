package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidPair         = errors.New("invalid trading pair")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSourceUnavailable   = errors.New("order source unavailable")
	ErrWithdrawalRecord    = errors.New("withdrawal record write failed")
	ErrLedgerInconsistent  = errors.New("ledger inconsistent: compensating credit failed")
)
