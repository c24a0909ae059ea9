package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/exchangesim/internal/domain"
	"github.com/alanyoungcy/exchangesim/internal/exchange"
)

// ExchangeHandler exposes the four engine operations over the legacy
// exchange API shape: a method-dispatched POST endpoint plus a public depth
// endpoint. It converts requests into engine calls and serializes results;
// nothing else.
type ExchangeHandler struct {
	engine *exchange.Engine
	tokens *domain.TokenSet
	logger *slog.Logger
}

// NewExchangeHandler creates an ExchangeHandler.
func NewExchangeHandler(engine *exchange.Engine, tokens *domain.TokenSet, logger *slog.Logger) *ExchangeHandler {
	return &ExchangeHandler{
		engine: engine,
		tokens: tokens,
		logger: logger.With(slog.String("handler", "exchange")),
	}
}

// Dispatch handles POST / with a form-encoded "method" field, the upstream
// trade-API convention: getInfo, Trade, WithdrawCoin. The caller identity
// comes from the Key header; its presence is required but it is not
// otherwise authenticated here.
func (h *ExchangeHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	identity := r.Header.Get("Key")
	if identity == "" {
		writeFailure(w, "missing 'Key' header")
		return
	}
	identity = domain.NormalizeIdentity(identity)

	if err := r.ParseForm(); err != nil {
		writeFailure(w, "malformed form body")
		return
	}

	method := r.PostFormValue("method")
	switch method {
	case "getInfo":
		h.getInfo(w, r, identity)
	case "Trade":
		h.trade(w, r, identity)
	case "WithdrawCoin":
		h.withdraw(w, r, identity)
	case "":
		writeFailure(w, "method is missing in your request")
	default:
		writeFailure(w, "invalid method requested")
	}
}

func (h *ExchangeHandler) getInfo(w http.ResponseWriter, r *http.Request, identity string) {
	balances, err := h.engine.GetBalance(r.Context(), identity)
	if err != nil {
		writeFailure(w, err.Error())
		return
	}
	writeReturn(w, map[string]any{"funds": balances})
}

func (h *ExchangeHandler) trade(w http.ResponseWriter, r *http.Request, identity string) {
	pair, err := domain.ParsePair(r.PostFormValue("pair"), h.tokens)
	if err != nil {
		writeFailure(w, err.Error())
		return
	}
	rate, err := decimal.NewFromString(r.PostFormValue("rate"))
	if err != nil {
		writeFailure(w, "invalid rate")
		return
	}
	volume, err := decimal.NewFromString(r.PostFormValue("amount"))
	if err != nil {
		writeFailure(w, "invalid amount")
		return
	}

	receipt, err := h.engine.Trade(r.Context(), domain.TradeRequest{
		Identity: identity,
		Pair:     pair,
		Side:     domain.TradeSide(r.PostFormValue("type")),
		Rate:     rate,
		Volume:   volume,
	})
	if err != nil {
		writeFailure(w, err.Error())
		return
	}
	writeReturn(w, receipt)
}

func (h *ExchangeHandler) withdraw(w http.ResponseWriter, r *http.Request, identity string) {
	amount, err := decimal.NewFromString(r.PostFormValue("amount"))
	if err != nil {
		writeFailure(w, "invalid amount")
		return
	}

	pending, err := h.engine.Withdraw(r.Context(), domain.WithdrawRequest{
		Identity:    identity,
		Token:       domain.Token{Symbol: r.PostFormValue("coinName")},
		Amount:      amount,
		Destination: r.PostFormValue("address"),
	})
	if err != nil {
		writeFailure(w, err.Error())
		return
	}
	writeReturn(w, pending)
}

// Depth handles GET /depth/{pairs}. Depth is public: no Key header needed.
// An unconfigured pair is a client error; a source outage maps to 503.
func (h *ExchangeHandler) Depth(w http.ResponseWriter, r *http.Request) {
	timestamp, err := requestTimestamp(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid timestamp"})
		return
	}

	pairString := r.PathValue("pairs")
	book, err := h.engine.GetDepth(r.Context(), pairString, timestamp)
	switch {
	case errors.Is(err, domain.ErrInvalidPair):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	case errors.Is(err, domain.ErrSourceUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	case err != nil:
		h.logger.ErrorContext(r.Context(), "depth failed",
			slog.String("pair", pairString),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		book.Pair: map[string]any{
			"bids": levelsToArrays(book.Bids),
			"asks": levelsToArrays(book.Asks),
		},
	})
}

// levelsToArrays renders book levels in the [rate, volume] array form the
// legacy depth API uses.
func levelsToArrays(levels []domain.BookLevel) [][2]decimal.Decimal {
	out := make([][2]decimal.Decimal, len(levels))
	for i, lv := range levels {
		out[i] = [2]decimal.Decimal{lv.Rate, lv.Volume}
	}
	return out
}
