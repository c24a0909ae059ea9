// Package ledger is the sole mutator of balance records. Every mutation is a
// single atomic operation against the persistent store, so concurrent
// debits and credits on the same (identity, token) key are linearizable
// without any in-process locking.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/exchangesim/internal/domain"
)

// Ledger maintains per-identity, per-token balances on a domain.KV and
// persists withdrawal records through a domain.WithdrawalStore. Identities
// are created implicitly on first credit or debit; reads of an unknown
// identity return zero balances.
type Ledger struct {
	kv          domain.KV
	withdrawals domain.WithdrawalStore
	tokens      *domain.TokenSet
	logger      *slog.Logger
}

// New creates a Ledger over the given store and configured token set.
func New(kv domain.KV, withdrawals domain.WithdrawalStore, tokens *domain.TokenSet, logger *slog.Logger) *Ledger {
	return &Ledger{
		kv:          kv,
		withdrawals: withdrawals,
		tokens:      tokens,
		logger:      logger.With(slog.String("component", "ledger")),
	}
}

func balanceKey(identity, token string) string {
	return "balance:" + identity + ":" + token
}

// Balances returns the caller's balance for every configured token. Unknown
// identities are not an error; they simply hold zero everywhere.
func (l *Ledger) Balances(ctx context.Context, identity string) (map[string]domain.Amount, error) {
	symbols := l.tokens.Symbols()
	keys := make([]string, len(symbols))
	for i, sym := range symbols {
		keys[i] = balanceKey(identity, sym)
	}

	vals, err := l.kv.MGet(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("ledger: balances %s: %w", identity, err)
	}

	out := make(map[string]domain.Amount, len(symbols))
	for i, sym := range symbols {
		var amt domain.Amount
		if vals[i] != nil {
			n, err := strconv.ParseInt(*vals[i], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("ledger: corrupt balance %s/%s: %w", identity, sym, err)
			}
			amt = domain.Amount(n)
		}
		out[sym] = amt
	}
	return out, nil
}

// Credit atomically adds amount smallest-units of token to the identity's
// balance. The amount must be positive.
func (l *Ledger) Credit(ctx context.Context, identity, token string, amount domain.Amount) error {
	if amount <= 0 {
		return fmt.Errorf("%w: credit %d", domain.ErrInvalidAmount, amount)
	}
	if _, err := l.kv.IncrBy(ctx, balanceKey(identity, token), int64(amount)); err != nil {
		return fmt.Errorf("ledger: credit %s/%s: %w", identity, token, err)
	}
	return nil
}

// Debit atomically checks the balance and subtracts amount in one indivisible
// step. It fails with ErrInsufficientBalance and leaves the balance unchanged
// if the identity does not hold at least amount; no read-then-write race
// window is observable.
func (l *Ledger) Debit(ctx context.Context, identity, token string, amount domain.Amount) error {
	if amount <= 0 {
		return fmt.Errorf("%w: debit %d", domain.ErrInvalidAmount, amount)
	}
	ok, err := l.kv.DecrIfGreaterEqual(ctx, balanceKey(identity, token), int64(amount))
	if err != nil {
		return fmt.Errorf("ledger: debit %s/%s: %w", identity, token, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s %s", domain.ErrInsufficientBalance, identity, token)
	}
	return nil
}

// RecordWithdrawal debits the requested amount and persists a pending
// withdrawal record. The two steps are not a transaction: if the record
// write fails after a successful debit, the ledger performs a compensating
// credit before reporting ErrWithdrawalRecord, so funds are never silently
// lost. A failure of the compensating credit itself is surfaced as
// ErrLedgerInconsistent for operator intervention.
func (l *Ledger) RecordWithdrawal(ctx context.Context, req domain.WithdrawRequest, amount domain.Amount) (domain.PendingWithdrawal, error) {
	if err := l.Debit(ctx, req.Identity, req.Token.Symbol, amount); err != nil {
		return domain.PendingWithdrawal{}, err
	}

	now := time.Now().UTC()
	w := domain.PendingWithdrawal{
		ID:          uuid.New().String(),
		Identity:    req.Identity,
		Token:       req.Token.Symbol,
		Amount:      amount.Decimal(req.Token),
		Destination: req.Destination,
		Status:      domain.WithdrawalPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := l.withdrawals.Insert(ctx, w); err != nil {
		l.logger.ErrorContext(ctx, "withdrawal record write failed, compensating",
			slog.String("identity", req.Identity),
			slog.String("token", req.Token.Symbol),
			slog.Int64("amount", int64(amount)),
			slog.String("error", err.Error()),
		)
		if cerr := l.Credit(ctx, req.Identity, req.Token.Symbol, amount); cerr != nil {
			l.logger.ErrorContext(ctx, "compensating credit failed",
				slog.String("identity", req.Identity),
				slog.String("token", req.Token.Symbol),
				slog.Int64("amount", int64(amount)),
				slog.String("error", cerr.Error()),
			)
			return domain.PendingWithdrawal{}, fmt.Errorf("%w: %s %s %d", domain.ErrLedgerInconsistent,
				req.Identity, req.Token.Symbol, amount)
		}
		return domain.PendingWithdrawal{}, fmt.Errorf("%w: %v", domain.ErrWithdrawalRecord, err)
	}

	return w, nil
}

// Withdrawal returns one withdrawal record by ID.
func (l *Ledger) Withdrawal(ctx context.Context, id string) (domain.PendingWithdrawal, error) {
	return l.withdrawals.Get(ctx, id)
}

// MarkWithdrawalSent records that the external settlement process confirmed
// the withdrawal.
func (l *Ledger) MarkWithdrawalSent(ctx context.Context, id string) error {
	return l.withdrawals.UpdateStatus(ctx, id, domain.WithdrawalSent)
}

// MarkWithdrawalFailed records a settlement failure and credits the debited
// amount back to the identity.
func (l *Ledger) MarkWithdrawalFailed(ctx context.Context, id string) error {
	w, err := l.withdrawals.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := l.withdrawals.UpdateStatus(ctx, id, domain.WithdrawalFailed); err != nil {
		return err
	}

	tok, ok := l.tokens.Get(w.Token)
	if !ok {
		return fmt.Errorf("%w: withdrawal %s references unknown token %s", domain.ErrLedgerInconsistent, id, w.Token)
	}
	amount, err := domain.ToBaseUnits(w.Amount, tok)
	if err != nil {
		return fmt.Errorf("ledger: settle %s: %w", id, err)
	}
	if err := l.Credit(ctx, w.Identity, w.Token, amount); err != nil {
		return fmt.Errorf("%w: refund for withdrawal %s: %v", domain.ErrLedgerInconsistent, id, err)
	}
	return nil
}
