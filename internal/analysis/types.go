// Package analysis fans market-analysis requests out over the fixed trading
// pair set and collects structured recommendations.
package analysis

import (
	"fmt"
	"strings"
	"time"
)

// Action is the closed set of recommendation actions.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// ParseAction validates an action tag coming from an external response.
func ParseAction(raw string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(raw))) {
	case ActionBuy:
		return ActionBuy, nil
	case ActionSell:
		return ActionSell, nil
	case ActionHold, "":
		// Absent action defaults to hold, matching the recommendation
		// contract's safe default.
		return ActionHold, nil
	default:
		return "", fmt.Errorf("unknown action %q", raw)
	}
}

// Pair is a trading pair identifier, e.g. "BTC-USDT".
type Pair string

// SupportedPairs is the fixed pair set every cycle analyzes.
var SupportedPairs = []Pair{
	"BTC-USDT", "ETH-USDT", "SOL-USDT",
	"ETH-BTC", "SOL-BTC", "SOL-ETH",
}

// Validate checks the BASE-QUOTE shape.
func (p Pair) Validate() error {
	base, quote, ok := strings.Cut(string(p), "-")
	if !ok || base == "" || quote == "" {
		return fmt.Errorf("invalid pair %q", p)
	}
	return nil
}

// Recommendation is the structured result of one pair analysis.
type Recommendation struct {
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"`
	Summary    string  `json:"summary,omitempty"`
}

// PairResult carries either a recommendation or the error that replaced it.
// A per-pair failure never aborts the sibling analyses.
type PairResult struct {
	Pair           Pair           `json:"pair"`
	Recommendation Recommendation `json:"recommendation"`
	Err            string         `json:"error,omitempty"`
}

// Failed reports whether this pair's analysis errored.
func (r PairResult) Failed() bool { return r.Err != "" }

// Result aggregates one fan-out run. Pairs keeps request order, so report
// rendering is deterministic regardless of completion order.
type Result struct {
	Timestamp time.Time    `json:"timestamp"`
	Pairs     []PairResult `json:"pairs_analysis"`
}

// Errors counts failed pairs.
func (r *Result) Errors() int {
	n := 0
	for _, p := range r.Pairs {
		if p.Failed() {
			n++
		}
	}
	return n
}
