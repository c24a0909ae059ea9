// Package exchange implements the engine that the API boundary calls: it
// validates requests, resolves depth through the cache, and executes trades
// and withdrawals against the balance ledger.
package exchange

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/exchangesim/internal/depth"
	"github.com/alanyoungcy/exchangesim/internal/domain"
	"github.com/alanyoungcy/exchangesim/internal/ledger"
)

// Engine orchestrates the depth cache and balance ledger behind the four
// exchange operations. It is constructed with one concrete order source
// (already wrapped by the depth cache) and never branches on its identity.
//
// The engine does not match against external liquidity: trades execute
// directly against the ledger at the requested rate, consistent with its
// role as a simulation surface.
type Engine struct {
	name          string
	tokens        *domain.TokenSet
	feeFraction   decimal.Decimal
	walletAddress string
	bankAddress   string

	depth  *depth.Cache
	ledger *ledger.Ledger
	logger *slog.Logger
}

// Config carries the engine's read-only configuration.
type Config struct {
	Name          string
	Tokens        *domain.TokenSet
	FeeFraction   decimal.Decimal
	WalletAddress string
	BankAddress   string
}

// New creates an Engine.
func New(cfg Config, depthCache *depth.Cache, bl *ledger.Ledger, logger *slog.Logger) *Engine {
	return &Engine{
		name:          cfg.Name,
		tokens:        cfg.Tokens,
		feeFraction:   cfg.FeeFraction,
		walletAddress: cfg.WalletAddress,
		bankAddress:   cfg.BankAddress,
		depth:         depthCache,
		ledger:        bl,
		logger:        logger.With(slog.String("component", "exchange"), slog.String("exchange", cfg.Name)),
	}
}

// Name returns the configured exchange name.
func (e *Engine) Name() string { return e.name }

// WalletAddress returns the exchange hot-wallet address.
func (e *Engine) WalletAddress() string { return e.walletAddress }

// BankAddress returns the configured reserve bank address.
func (e *Engine) BankAddress() string { return e.bankAddress }

// GetBalance returns the caller's balance for every configured token,
// denominated in whole tokens. No side effects; unknown identities read as
// all-zero.
func (e *Engine) GetBalance(ctx context.Context, identity string) (map[string]decimal.Decimal, error) {
	identity = domain.NormalizeIdentity(identity)

	raw, err := e.ledger.Balances(ctx, identity)
	if err != nil {
		return nil, err
	}

	out := make(map[string]decimal.Decimal, len(raw))
	for sym, amt := range raw {
		tok, _ := e.tokens.Get(sym)
		out[sym] = amt.Decimal(tok)
	}
	return out, nil
}

// GetDepth validates the pair string against the configured token set and
// delegates to the depth cache. The timestamp is milliseconds since epoch.
func (e *Engine) GetDepth(ctx context.Context, pairString string, timestamp int64) (domain.OrderBook, error) {
	pair, err := domain.ParsePair(pairString, e.tokens)
	if err != nil {
		return domain.OrderBook{}, err
	}
	return e.depth.GetDepth(ctx, pair, timestamp)
}

// Trade executes a simulated trade against the ledger at the requested rate.
// A buy debits the quote-token cost (rate*volume plus the fee) and credits
// the base volume; a sell debits the base volume and credits the proceeds
// net of fee. The debit runs first: if it fails no credit is attempted, so a
// trade either fully succeeds or leaves every balance untouched.
func (e *Engine) Trade(ctx context.Context, req domain.TradeRequest) (domain.TradeReceipt, error) {
	identity := domain.NormalizeIdentity(req.Identity)

	if _, ok := e.tokens.Get(req.Pair.Base.Symbol); !ok {
		return domain.TradeReceipt{}, fmt.Errorf("%w: %s", domain.ErrInvalidPair, req.Pair.String())
	}
	if _, ok := e.tokens.Get(req.Pair.Quote.Symbol); !ok {
		return domain.TradeReceipt{}, fmt.Errorf("%w: %s", domain.ErrInvalidPair, req.Pair.String())
	}
	if !req.Side.Valid() {
		return domain.TradeReceipt{}, fmt.Errorf("%w: side %q", domain.ErrInvalidAmount, req.Side)
	}
	if !req.Rate.IsPositive() {
		return domain.TradeReceipt{}, fmt.Errorf("%w: rate %s", domain.ErrInvalidAmount, req.Rate)
	}
	if !req.Volume.IsPositive() {
		return domain.TradeReceipt{}, fmt.Errorf("%w: volume %s", domain.ErrInvalidAmount, req.Volume)
	}

	base, quote := req.Pair.Base, req.Pair.Quote
	notional := req.Rate.Mul(req.Volume) // quote tokens
	fee := notional.Mul(e.feeFraction)

	var (
		debitTok, creditTok domain.Token
		debitAmt, creditAmt domain.Amount
		err                 error
	)
	switch req.Side {
	case domain.SideBuy:
		// Charge rounds up, fill rounds down: the exchange never
		// undercharges across repeated smallest-unit conversions.
		debitTok, creditTok = quote, base
		if debitAmt, err = domain.CeilToBaseUnits(notional.Add(fee), quote); err != nil {
			return domain.TradeReceipt{}, err
		}
		if creditAmt, err = domain.FloorToBaseUnits(req.Volume, base); err != nil {
			return domain.TradeReceipt{}, err
		}
	case domain.SideSell:
		debitTok, creditTok = base, quote
		if debitAmt, err = domain.CeilToBaseUnits(req.Volume, base); err != nil {
			return domain.TradeReceipt{}, err
		}
		if creditAmt, err = domain.FloorToBaseUnits(notional.Sub(fee), quote); err != nil {
			return domain.TradeReceipt{}, err
		}
	}
	if debitAmt <= 0 || creditAmt <= 0 {
		return domain.TradeReceipt{}, fmt.Errorf("%w: trade too small for smallest unit", domain.ErrInvalidAmount)
	}

	if err := e.ledger.Debit(ctx, identity, debitTok.Symbol, debitAmt); err != nil {
		return domain.TradeReceipt{}, err
	}
	if err := e.ledger.Credit(ctx, identity, creditTok.Symbol, creditAmt); err != nil {
		// The debit succeeded; put it back rather than leave the caller
		// short on both legs.
		if cerr := e.ledger.Credit(ctx, identity, debitTok.Symbol, debitAmt); cerr != nil {
			e.logger.ErrorContext(ctx, "trade compensation failed",
				slog.String("identity", identity),
				slog.String("token", debitTok.Symbol),
				slog.Int64("amount", int64(debitAmt)),
				slog.String("error", cerr.Error()),
			)
			return domain.TradeReceipt{}, fmt.Errorf("%w: %v", domain.ErrLedgerInconsistent, err)
		}
		return domain.TradeReceipt{}, err
	}

	balances, err := e.GetBalance(ctx, identity)
	if err != nil {
		return domain.TradeReceipt{}, err
	}

	e.logger.InfoContext(ctx, "trade executed",
		slog.String("identity", identity),
		slog.String("pair", req.Pair.String()),
		slog.String("side", string(req.Side)),
		slog.String("rate", req.Rate.String()),
		slog.String("volume", req.Volume.String()),
	)

	return domain.TradeReceipt{
		Pair:     req.Pair.String(),
		Side:     req.Side,
		Rate:     req.Rate,
		Volume:   req.Volume,
		Fee:      fee,
		Balances: balances,
	}, nil
}

// Withdraw validates the request and records a pending withdrawal through
// the ledger. ErrInsufficientBalance propagates unchanged.
func (e *Engine) Withdraw(ctx context.Context, req domain.WithdrawRequest) (domain.PendingWithdrawal, error) {
	req.Identity = domain.NormalizeIdentity(req.Identity)

	tok, ok := e.tokens.Get(req.Token.Symbol)
	if !ok {
		return domain.PendingWithdrawal{}, fmt.Errorf("%w: token %q not configured", domain.ErrInvalidPair, req.Token.Symbol)
	}
	req.Token = tok
	if !req.Amount.IsPositive() {
		return domain.PendingWithdrawal{}, fmt.Errorf("%w: amount %s", domain.ErrInvalidAmount, req.Amount)
	}
	if !common.IsHexAddress(req.Destination) {
		return domain.PendingWithdrawal{}, fmt.Errorf("%w: destination %q", domain.ErrInvalidAmount, req.Destination)
	}

	amount, err := domain.ToBaseUnits(req.Amount, tok)
	if err != nil {
		return domain.PendingWithdrawal{}, err
	}

	w, err := e.ledger.RecordWithdrawal(ctx, req, amount)
	if err != nil {
		return domain.PendingWithdrawal{}, err
	}

	e.logger.InfoContext(ctx, "withdrawal recorded",
		slog.String("identity", req.Identity),
		slog.String("token", tok.Symbol),
		slog.String("amount", req.Amount.String()),
		slog.String("id", w.ID),
	)
	return w, nil
}
