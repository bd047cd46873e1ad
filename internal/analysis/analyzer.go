package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"crypto-trading-agent/internal/llm"

	"github.com/rs/zerolog"
)

// MaxWorkers bounds the analysis fan-out. The pair set has six entries, so a
// larger pool would never be exercised.
const MaxWorkers = 6

// Completer dispatches a free-form instruction to the analysis agent and
// returns its raw reply.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Analyzer runs concurrent per-pair market analysis with per-pair error
// isolation.
type Analyzer struct {
	completer Completer
	logger    zerolog.Logger
	workers   int
	now       func() time.Time
}

// NewAnalyzer creates an analyzer over the given dispatch capability.
func NewAnalyzer(completer Completer, workers int, logger zerolog.Logger) *Analyzer {
	if workers <= 0 || workers > MaxWorkers {
		workers = MaxWorkers
	}
	return &Analyzer{
		completer: completer,
		logger:    logger.With().Str("component", "analyzer").Logger(),
		workers:   workers,
		now:       time.Now,
	}
}

// AnalyzeAll requests a recommendation for every pair. Requests run
// concurrently on a bounded pool; results are keyed by request position, not
// completion order. A failing pair is recorded as an error entry and the
// other pairs proceed.
func (a *Analyzer) AnalyzeAll(ctx context.Context, pairs []Pair) *Result {
	result := &Result{
		Timestamp: a.now(),
		Pairs:     make([]PairResult, len(pairs)),
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, a.workers)

	for i, pair := range pairs {
		wg.Add(1)
		go func(i int, pair Pair) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			result.Pairs[i] = a.analyzePair(ctx, pair)
		}(i, pair)
	}
	wg.Wait()

	a.logger.Info().
		Int("pairs", len(pairs)).
		Int("errors", result.Errors()).
		Msg("market analysis completed")

	return result
}

func (a *Analyzer) analyzePair(ctx context.Context, pair Pair) (res PairResult) {
	res = PairResult{Pair: pair}
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Sprintf("analysis panicked: %v", r)
		}
	}()

	if err := pair.Validate(); err != nil {
		res.Err = err.Error()
		return res
	}

	raw, err := a.completer.Complete(ctx, llm.SystemPromptMarketAnalysis, analysisPrompt(pair))
	if err != nil {
		a.logger.Warn().Err(err).Str("pair", string(pair)).Msg("analysis request failed")
		res.Err = err.Error()
		return res
	}

	rec, err := ParseRecommendation(raw)
	if err != nil {
		a.logger.Warn().Err(err).Str("pair", string(pair)).Msg("unparseable recommendation")
		res.Err = err.Error()
		return res
	}

	res.Recommendation = rec
	return res
}

func analysisPrompt(pair Pair) string {
	return fmt.Sprintf(`分析交易对 %s 的市场行情，包括：
1. 当前价格和价格趋势
2. 主要技术指标（RSI、MACD、移动平均线等）
3. 交易量和交易量变化
4. 市场情绪分析
5. 提供明确的买入、卖出或持有建议，并给出理由`, pair)
}

// codeBlockRe matches a fenced reply like "```json\n{...}\n```".
var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*\\n?(.*?)\\n?```$")

// stripMarkdownCodeBlock removes markdown code fences from an LLM reply.
func stripMarkdownCodeBlock(response string) string {
	response = strings.TrimSpace(response)
	if matches := codeBlockRe.FindStringSubmatch(response); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}
	return response
}

// ParseRecommendation decodes a raw agent reply into a validated
// recommendation. Malformed actions and out-of-range confidence values are
// rejected here, at the boundary.
func ParseRecommendation(raw string) (Recommendation, error) {
	var decoded struct {
		Action     string  `json:"action"`
		Confidence float64 `json:"confidence"`
		Summary    string  `json:"summary"`
	}
	if err := json.Unmarshal([]byte(stripMarkdownCodeBlock(raw)), &decoded); err != nil {
		return Recommendation{}, fmt.Errorf("invalid recommendation payload: %w", err)
	}

	action, err := ParseAction(decoded.Action)
	if err != nil {
		return Recommendation{}, err
	}
	if decoded.Confidence < 0 || decoded.Confidence > 1 {
		return Recommendation{}, fmt.Errorf("confidence %v out of range", decoded.Confidence)
	}

	return Recommendation{
		Action:     action,
		Confidence: decoded.Confidence,
		Summary:    decoded.Summary,
	}, nil
}
