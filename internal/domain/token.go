// Package domain defines the core types, errors, and collaborator interfaces
// shared by every layer of the exchange simulator.
package domain

import (
	"fmt"
	"strings"
)

// Token is one configured asset. Decimals is the scale of the smallest unit:
// all balances are kept as exact integers of 10^-Decimals tokens.
type Token struct {
	Symbol   string
	Decimals int32
}

// TokenSet is the fixed set of tokens the exchange is configured with,
// indexed by upper-case symbol.
type TokenSet struct {
	tokens map[string]Token
	order  []string
}

// NewTokenSet builds a TokenSet from the configured tokens. Symbols are
// normalized to upper case; duplicates are rejected.
func NewTokenSet(tokens []Token) (*TokenSet, error) {
	ts := &TokenSet{tokens: make(map[string]Token, len(tokens))}
	for _, tok := range tokens {
		sym := strings.ToUpper(strings.TrimSpace(tok.Symbol))
		if sym == "" {
			return nil, fmt.Errorf("domain: empty token symbol")
		}
		if _, dup := ts.tokens[sym]; dup {
			return nil, fmt.Errorf("domain: duplicate token %s", sym)
		}
		tok.Symbol = sym
		ts.tokens[sym] = tok
		ts.order = append(ts.order, sym)
	}
	return ts, nil
}

// Get returns the token for a symbol (case-insensitive).
func (ts *TokenSet) Get(symbol string) (Token, bool) {
	tok, ok := ts.tokens[strings.ToUpper(symbol)]
	return tok, ok
}

// Symbols returns the configured symbols in configuration order.
func (ts *TokenSet) Symbols() []string {
	out := make([]string, len(ts.order))
	copy(out, ts.order)
	return out
}

// Pair is an ordered (base, quote) trading pair drawn from the configured
// token set. Its wire identity is the lower-case "base_quote" string used by
// the depth endpoint, e.g. "eth_knc".
type Pair struct {
	Base  Token
	Quote Token
}

// String returns the wire form of the pair.
func (p Pair) String() string {
	return strings.ToLower(p.Base.Symbol) + "_" + strings.ToLower(p.Quote.Symbol)
}

// ParsePair parses a "base_quote" pair string and validates both legs against
// the token set. It returns ErrInvalidPair for malformed strings, unknown
// tokens, and degenerate pairs (base == quote).
func ParsePair(s string, tokens *TokenSet) (Pair, error) {
	parts := strings.Split(strings.TrimSpace(s), "_")
	if len(parts) != 2 {
		return Pair{}, fmt.Errorf("%w: %q", ErrInvalidPair, s)
	}
	base, ok := tokens.Get(parts[0])
	if !ok {
		return Pair{}, fmt.Errorf("%w: unknown token %q", ErrInvalidPair, parts[0])
	}
	quote, ok := tokens.Get(parts[1])
	if !ok {
		return Pair{}, fmt.Errorf("%w: unknown token %q", ErrInvalidPair, parts[1])
	}
	if base.Symbol == quote.Symbol {
		return Pair{}, fmt.Errorf("%w: %q", ErrInvalidPair, s)
	}
	return Pair{Base: base, Quote: quote}, nil
}

// NormalizeIdentity canonicalizes a caller API key. Identities are opaque and
// never validated here; an unknown identity simply has zero balances.
func NormalizeIdentity(apiKey string) string {
	return strings.ToLower(strings.TrimSpace(apiKey))
}
