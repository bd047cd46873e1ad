// Package ledger owns the persisted trading journal: the balance history,
// the latest asset snapshot and the recent trade log.
package ledger

import (
	"fmt"
	"math"
	"sort"
	"time"
)

const (
	// MaxBalancePoints caps the balance history. Oldest points are dropped
	// first, so insertion order stays chronological.
	MaxBalancePoints = 1000

	// MaxTradeEntries caps the trade log. The list is most-recent-first and
	// the tail is dropped.
	MaxTradeEntries = 100
)

// BalancePoint is one balance observation. Points are never mutated after
// creation.
type BalancePoint struct {
	Time    time.Time `json:"time"`
	Balance float64   `json:"balance"`
}

// TradeEntry is one human-readable trade record.
type TradeEntry struct {
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// Currency is a validated currency code, e.g. "BTC" or "USDT".
type Currency string

// ParseCurrency validates a raw currency code coming from an external
// response. Codes are 1-15 characters, uppercase letters and digits.
func ParseCurrency(raw string) (Currency, error) {
	if raw == "" || len(raw) > 15 {
		return "", fmt.Errorf("invalid currency code %q", raw)
	}
	for _, r := range raw {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("invalid currency code %q", raw)
		}
	}
	return Currency(raw), nil
}

// Ledger is the single persisted unit. Readers must tolerate missing keys,
// which JSON unmarshalling into zero values already gives us.
type Ledger struct {
	Balances []BalancePoint       `json:"balances"`
	Assets   map[Currency]float64 `json:"assets,omitempty"`
	Trades   []TradeEntry         `json:"trades,omitempty"`
}

// LatestBalance returns the newest balance point, or 0 when the history is
// empty.
func (l *Ledger) LatestBalance() float64 {
	if len(l.Balances) == 0 {
		return 0
	}
	return l.Balances[len(l.Balances)-1].Balance
}

// InitialBalance returns the oldest balance point still in the window. With
// fewer than two points it returns the latest balance, which forces a 0%
// profit rate instead of a division error.
func (l *Ledger) InitialBalance() float64 {
	if len(l.Balances) < 2 {
		return l.LatestBalance()
	}
	return l.Balances[0].Balance
}

// BalanceValues flattens the balance history into a value series for the
// chart encoder. When window > 0 only the most recent window points are
// returned; the encoder itself never truncates.
func (l *Ledger) BalanceValues(window int) []float64 {
	points := l.Balances
	if window > 0 && len(points) > window {
		points = points[len(points)-window:]
	}
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Balance
	}
	return values
}

// SortedCurrencies returns the snapshot's currency codes in lexical order.
// Go maps have no insertion order, so sorted order is the deterministic
// iteration every formatter uses.
func SortedCurrencies(assets map[Currency]float64) []Currency {
	codes := make([]Currency, 0, len(assets))
	for ccy := range assets {
		codes = append(codes, ccy)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// round1 rounds to one decimal, the precision every stored monetary value
// carries.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
