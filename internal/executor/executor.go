// Package executor dispatches confidence-gated recommendations to the
// trade-execution agent.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"crypto-trading-agent/internal/analysis"
	"crypto-trading-agent/internal/llm"

	"github.com/rs/zerolog"
)

// MinConfidence is the execution gate: only non-hold recommendations
// strictly above it are dispatched.
const MinConfidence = 0.7

// Completer dispatches a free-form instruction to the execution agent.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Request is one trade to execute.
type Request struct {
	Pair       analysis.Pair
	Action     analysis.Action
	Confidence float64
	Summary    string
}

// Eligible applies the execution gate to a recommendation.
func Eligible(rec analysis.Recommendation) bool {
	return rec.Action != analysis.ActionHold && rec.Confidence > MinConfidence
}

// Result records one execution attempt. A failed attempt carries Err and
// does not abort the remaining requests.
type Result struct {
	Pair       analysis.Pair   `json:"pair"`
	Action     analysis.Action `json:"action"`
	Confidence float64         `json:"confidence"`
	Detail     string          `json:"detail,omitempty"`
	Err        string          `json:"error,omitempty"`
	Time       time.Time       `json:"timestamp"`
}

// Failed reports whether the attempt errored or was rejected.
func (r Result) Failed() bool { return r.Err != "" }

// Description is the human-readable trade text recorded in the ledger, e.g.
// "BUY BTC-USDT".
func (r Result) Description() string {
	return fmt.Sprintf("%s %s", strings.ToUpper(string(r.Action)), r.Pair)
}

// Executor sends execution instructions sequentially. Order between pairs
// does not matter; sequential keeps account interactions simple to reason
// about.
type Executor struct {
	completer Completer
	logger    zerolog.Logger
	now       func() time.Time
}

// NewExecutor creates an executor over the given dispatch capability.
func NewExecutor(completer Completer, logger zerolog.Logger) *Executor {
	return &Executor{
		completer: completer,
		logger:    logger.With().Str("component", "executor").Logger(),
		now:       time.Now,
	}
}

// ExecuteAll dispatches every request and records per-request outcomes.
func (e *Executor) ExecuteAll(ctx context.Context, requests []Request) []Result {
	results := make([]Result, 0, len(requests))
	for _, req := range requests {
		results = append(results, e.execute(ctx, req))
	}
	return results
}

func (e *Executor) execute(ctx context.Context, req Request) Result {
	res := Result{
		Pair:       req.Pair,
		Action:     req.Action,
		Confidence: req.Confidence,
		Time:       e.now(),
	}

	e.logger.Info().
		Str("pair", string(req.Pair)).
		Str("action", string(req.Action)).
		Float64("confidence", req.Confidence).
		Msg("executing trade")

	raw, err := e.completer.Complete(ctx, llm.SystemPromptTradeExecution, executionPrompt(req))
	if err != nil {
		e.logger.Error().Err(err).Str("pair", string(req.Pair)).Msg("trade execution failed")
		res.Err = err.Error()
		return res
	}

	var decoded struct {
		Status string `json:"status"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		// A free-form confirmation still counts as an execution; keep the
		// raw text as the detail.
		res.Detail = raw
		return res
	}
	if decoded.Status == "rejected" {
		res.Err = decoded.Detail
		return res
	}
	res.Detail = decoded.Detail
	return res
}

func executionPrompt(req Request) string {
	return fmt.Sprintf(`基于以下市场分析，执行交易操作：

交易对: %s
建议: %s
置信度: %.2f
分析详情: %s

执行要求：
1. 这是模拟环境，请确保只进行小额测试交易
2. 交易数量与置信度成正比（仓位系数约为置信度的 %.0f%%）
3. 考虑当前账户余额和风险控制`,
		req.Pair, req.Action, req.Confidence, req.Summary, req.Confidence*100)
}
