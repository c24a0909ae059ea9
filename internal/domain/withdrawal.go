package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// WithdrawalStatus is the settlement state of a withdrawal.
type WithdrawalStatus string

const (
	WithdrawalPending WithdrawalStatus = "pending"
	WithdrawalSent    WithdrawalStatus = "sent"
	WithdrawalFailed  WithdrawalStatus = "failed"
)

// WithdrawRequest asks to move funds from the caller's exchange balance to an
// external address. Transient input; produces a PendingWithdrawal.
type WithdrawRequest struct {
	Identity    string
	Token       Token
	Amount      decimal.Decimal
	Destination string
}

// PendingWithdrawal is a ledger-debited, not-yet-settled withdrawal awaiting
// confirmation from the external settlement process. The core creates it with
// status pending and reads it back; status transitions are driven externally.
type PendingWithdrawal struct {
	ID          string           `json:"tId"`
	Identity    string           `json:"-"`
	Token       string           `json:"token"`
	Amount      decimal.Decimal  `json:"amountSent"`
	Destination string           `json:"address"`
	Status      WithdrawalStatus `json:"status"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}
