// Package agent orchestrates the trading cycle: analysis fan-out, gated
// execution, ledger persistence and report delivery.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"crypto-trading-agent/internal/analysis"
	"crypto-trading-agent/internal/chart"
	"crypto-trading-agent/internal/events"
	"crypto-trading-agent/internal/executor"
	"crypto-trading-agent/internal/ledger"
	"crypto-trading-agent/internal/okx"
	"crypto-trading-agent/internal/report"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Phase is the cycle state machine. Transitions are linear with a jump to
// PhaseErrorReporting on unhandled failure.
type Phase string

// reportChartWindow caps the balance series behind the report photo. The
// save path keeps the full capped history; the photo only shows the recent
// trend.
const reportChartWindow = 50

const (
	PhaseIdle           Phase = "idle"
	PhaseAnalyzing      Phase = "analyzing"
	PhaseExecuting      Phase = "executing"
	PhasePersisting     Phase = "persisting"
	PhaseNotifying      Phase = "notifying"
	PhaseErrorReporting Phase = "error_reporting"
)

// CycleResult is the outcome of one trading cycle. It is ephemeral: the
// aggregator folds it into a summary and only the ledger persists.
type CycleResult struct {
	Success        bool               `json:"success"`
	Balance        float64            `json:"balance"`
	Assets         map[string]float64 `json:"assets,omitempty"`
	TradesExecuted int                `json:"trades_executed"`
	ChartURL       string             `json:"chart_url,omitempty"`
	Error          string             `json:"error,omitempty"`
	Timestamp      time.Time          `json:"timestamp"`
}

// MultiCycleSummary aggregates a fixed-length run of cycles. Derived, never
// persisted.
type MultiCycleSummary struct {
	TotalCycles         int     `json:"total_cycles"`
	SuccessfulCycles    int     `json:"successful_cycles"`
	TotalTradesExecuted int     `json:"total_trades_executed"`
	AverageBalance      float64 `json:"average_balance"`
	FinalBalance        float64 `json:"final_balance"`
}

// SuccessRatePct is the share of successful cycles, 0 for an empty run.
func (s MultiCycleSummary) SuccessRatePct() float64 {
	if s.TotalCycles == 0 {
		return 0
	}
	return float64(s.SuccessfulCycles) / float64(s.TotalCycles) * 100
}

// AvgTradesPerCycle is the trade count averaged over every attempted cycle,
// successful or not, 0 for an empty run.
func (s MultiCycleSummary) AvgTradesPerCycle() float64 {
	if s.TotalCycles == 0 {
		return 0
	}
	return float64(s.TotalTradesExecuted) / float64(s.TotalCycles)
}

// Analyzer is the market-analysis capability.
type Analyzer interface {
	AnalyzeAll(ctx context.Context, pairs []analysis.Pair) *analysis.Result
}

// Executor is the trade-execution capability.
type Executor interface {
	ExecuteAll(ctx context.Context, requests []executor.Request) []executor.Result
}

// AccountProvider is the account-balance capability.
type AccountProvider interface {
	AccountBalance(ctx context.Context, ccy string) (*okx.Balance, error)
}

// LedgerStore persists cycle outcomes.
type LedgerStore interface {
	Save(balance float64, assets map[ledger.Currency]float64, trades []string) (*ledger.SaveResult, error)
	Snapshot() *ledger.Ledger
}

// Notifier is the notification sink.
type Notifier interface {
	SendText(ctx context.Context, text string) error
	SendPhoto(ctx context.Context, photoURL, caption string) error
	Enabled() bool
}

// Agent runs trading cycles over the fixed pair set. Cycles never overlap:
// each one reads and writes the shared ledger and account state.
type Agent struct {
	pairs    []analysis.Pair
	analyzer Analyzer
	executor Executor
	account  AccountProvider
	store    LedgerStore
	reporter *report.Synthesizer
	notifier Notifier
	bus      *events.Bus
	logger   zerolog.Logger
	interval time.Duration

	chartBaseURL string
	chartTheme   string

	mu        sync.RWMutex
	phase     Phase
	lastCycle *CycleResult
}

// Config wires an Agent.
type Config struct {
	Pairs    []analysis.Pair
	Analyzer Analyzer
	Executor Executor
	Account  AccountProvider
	Store    LedgerStore
	Reporter *report.Synthesizer
	Notifier Notifier
	Bus      *events.Bus
	Logger   zerolog.Logger

	// CycleInterval is the pause between cycles in a multi-cycle run.
	CycleInterval time.Duration

	// ChartBaseURL and ChartTheme configure the report photo rendering.
	ChartBaseURL string
	ChartTheme   string
}

// New creates a cycle agent.
func New(cfg Config) *Agent {
	pairs := cfg.Pairs
	if len(pairs) == 0 {
		pairs = analysis.SupportedPairs
	}
	reporter := cfg.Reporter
	if reporter == nil {
		reporter = report.NewSynthesizer()
	}
	bus := cfg.Bus
	if bus == nil {
		bus = events.NewBus()
	}
	chartBaseURL := cfg.ChartBaseURL
	if chartBaseURL == "" {
		chartBaseURL = "https://mermaid.ink"
	}
	chartTheme := cfg.ChartTheme
	if chartTheme == "" {
		chartTheme = chart.DefaultTheme
	}
	return &Agent{
		pairs:    pairs,
		analyzer: cfg.Analyzer,
		executor: cfg.Executor,
		account:  cfg.Account,
		store:    cfg.Store,
		reporter: reporter,
		notifier: cfg.Notifier,
		bus:      bus,
		logger:   cfg.Logger.With().Str("component", "agent").Logger(),
		interval: cfg.CycleInterval,
		phase:    PhaseIdle,

		chartBaseURL: chartBaseURL,
		chartTheme:   chartTheme,
	}
}

// Phase returns the current cycle phase.
func (a *Agent) Phase() Phase {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.phase
}

// LastCycle returns the most recent cycle result, or nil before the first
// cycle completes.
func (a *Agent) LastCycle() *CycleResult {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastCycle
}

func (a *Agent) setPhase(cycleID string, phase Phase) {
	a.mu.Lock()
	a.phase = phase
	a.mu.Unlock()
	a.bus.Publish(events.Event{
		Type: events.EventPhaseChanged,
		Data: map[string]interface{}{"cycle_id": cycleID, "phase": string(phase)},
	})
}

// RunCycle executes one full cycle. Any uncaught failure inside the cycle is
// converted into an unsuccessful CycleResult and a best-effort error
// notification; it never propagates to the caller.
func (a *Agent) RunCycle(ctx context.Context) CycleResult {
	cycleID := uuid.New().String()
	logger := a.logger.With().Str("cycle_id", cycleID).Logger()
	logger.Info().Msg("🚀 trading cycle started")
	a.bus.Publish(events.Event{
		Type: events.EventCycleStarted,
		Data: map[string]interface{}{"cycle_id": cycleID},
	})

	result := a.runCycleGuarded(ctx, cycleID, logger)

	a.mu.Lock()
	a.phase = PhaseIdle
	a.lastCycle = &result
	a.mu.Unlock()

	if result.Success {
		logger.Info().
			Int("trades_executed", result.TradesExecuted).
			Float64("balance", result.Balance).
			Msg("✅ trading cycle completed")
		a.bus.Publish(events.Event{
			Type: events.EventCycleCompleted,
			Data: map[string]interface{}{"cycle_id": cycleID, "balance": result.Balance, "trades": result.TradesExecuted},
		})
	} else {
		logger.Error().Str("error", result.Error).Msg("❌ trading cycle failed")
		a.bus.Publish(events.Event{
			Type: events.EventCycleFailed,
			Data: map[string]interface{}{"cycle_id": cycleID, "error": result.Error},
		})
	}

	return result
}

// runCycleGuarded wraps the cycle body with the top-level recover that turns
// panics into CycleResult errors.
func (a *Agent) runCycleGuarded(ctx context.Context, cycleID string, logger zerolog.Logger) (result CycleResult) {
	result.Timestamp = time.Now()
	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Error = fmt.Sprintf("cycle panicked: %v", r)
			a.reportCycleError(ctx, cycleID, result.Error, logger)
		}
	}()

	// Step 1: market analysis fan-out.
	a.setPhase(cycleID, PhaseAnalyzing)
	res := a.analyzer.AnalyzeAll(ctx, a.pairs)

	// Step 2: confidence-gated execution.
	a.setPhase(cycleID, PhaseExecuting)
	var requests []executor.Request
	for _, pr := range res.Pairs {
		if pr.Failed() || !executor.Eligible(pr.Recommendation) {
			continue
		}
		requests = append(requests, executor.Request{
			Pair:       pr.Pair,
			Action:     pr.Recommendation.Action,
			Confidence: pr.Recommendation.Confidence,
			Summary:    pr.Recommendation.Summary,
		})
	}

	var tradeTexts []string
	executed := 0
	for _, execRes := range a.executor.ExecuteAll(ctx, requests) {
		if execRes.Failed() {
			continue
		}
		executed++
		tradeTexts = append(tradeTexts, execRes.Description())
		a.bus.Publish(events.Event{
			Type: events.EventTradeExecuted,
			Data: map[string]interface{}{
				"cycle_id":   cycleID,
				"pair":       string(execRes.Pair),
				"action":     string(execRes.Action),
				"confidence": execRes.Confidence,
			},
		})
	}
	if executed == 0 {
		logger.Info().Msg("📊 no high-confidence recommendations this cycle")
	}

	// Step 3: account snapshot. Failure degrades to zero balance and empty
	// assets, it does not abort the cycle.
	a.setPhase(cycleID, PhasePersisting)
	var balance float64
	assets := map[ledger.Currency]float64{}
	if acct, err := a.account.AccountBalance(ctx, ""); err != nil {
		logger.Warn().Err(err).Msg("account balance unavailable, using defaults")
	} else {
		balance = acct.TotalEq
		for raw, amount := range acct.AvailableAssets() {
			ccy, err := ledger.ParseCurrency(raw)
			if err != nil {
				logger.Warn().Str("ccy", raw).Msg("dropping malformed currency code")
				continue
			}
			assets[ccy] = amount
		}
	}

	// Step 4: persist. A write failure is logged and the cycle continues
	// without persisted state for this step.
	var chartURL string
	saveRes, err := a.store.Save(balance, assets, tradeTexts)
	if err != nil {
		logger.Error().Err(err).Msg("ledger save failed")
	} else {
		chartURL = saveRes.ChartURL
		a.bus.Publish(events.Event{
			Type: events.EventLedgerSaved,
			Data: map[string]interface{}{"cycle_id": cycleID, "path": saveRes.Path},
		})
	}

	// Step 5: report. Delivery failure never flips the cycle outcome.
	a.setPhase(cycleID, PhaseNotifying)
	a.sendReport(ctx, cycleID, res, chartURL, logger)

	return CycleResult{
		Success:        true,
		Balance:        balance,
		Assets:         flattenAssets(assets),
		TradesExecuted: executed,
		ChartURL:       chartURL,
		Timestamp:      result.Timestamp,
	}
}

func (a *Agent) sendReport(ctx context.Context, cycleID string, res *analysis.Result, chartURL string, logger zerolog.Logger) {
	if a.notifier == nil || !a.notifier.Enabled() {
		return
	}

	led := a.store.Snapshot()
	text := a.reporter.Synthesize(led, res)

	var err error
	if chartURL != "" && len(led.Balances) > 0 {
		// The photo shows the recent trend only, not the full saved history.
		descriptor := chart.Descriptor(chart.DefaultTitle, led.BalanceValues(reportChartWindow))
		err = a.notifier.SendPhoto(ctx, chart.ImageURL(a.chartBaseURL, descriptor, a.chartTheme), text)
	} else {
		err = a.notifier.SendText(ctx, text)
	}
	if err != nil {
		logger.Warn().Err(err).Msg("report delivery failed, trying fallback")
		fallback := "📈 #AI模拟盘 自动交易报告\n\n⚠️ 报告生成时出现错误，请稍后重试。"
		if err := a.notifier.SendText(ctx, fallback); err != nil {
			logger.Error().Err(err).Msg("fallback notification failed")
		}
		return
	}
	a.bus.Publish(events.Event{
		Type: events.EventReportSent,
		Data: map[string]interface{}{"cycle_id": cycleID},
	})
}

func (a *Agent) reportCycleError(ctx context.Context, cycleID, errText string, logger zerolog.Logger) {
	a.setPhase(cycleID, PhaseErrorReporting)
	a.bus.Publish(events.Event{
		Type: events.EventError,
		Data: map[string]interface{}{"cycle_id": cycleID, "error": errText},
	})
	if a.notifier == nil || !a.notifier.Enabled() {
		return
	}
	message := fmt.Sprintf("🚨 *交易周期执行失败*\n\n错误信息: %s\n\n请稍后重试。", errText)
	if err := a.notifier.SendText(ctx, message); err != nil {
		logger.Error().Err(err).Msg("error notification failed")
	}
}

// RunMultiCycle executes n cycles strictly in sequence and sends one
// consolidated summary notification at the end, independent of the per-cycle
// reports.
func (a *Agent) RunMultiCycle(ctx context.Context, n int) MultiCycleSummary {
	a.logger.Info().Int("cycles", n).Msg("🔬 multi-cycle run started")

	summary := MultiCycleSummary{TotalCycles: n}
	var balanceSum float64

	for i := 0; i < n; i++ {
		if i > 0 && a.interval > 0 {
			select {
			case <-time.After(a.interval):
			case <-ctx.Done():
				a.logger.Warn().Int("completed", i).Msg("multi-cycle run interrupted")
				summary.TotalCycles = i
				if summary.SuccessfulCycles > 0 {
					summary.AverageBalance = balanceSum / float64(summary.SuccessfulCycles)
				}
				return summary
			}
		}
		a.logger.Info().Int("cycle", i+1).Int("of", n).Msg("🔄 running cycle")
		result := a.RunCycle(ctx)

		summary.TotalTradesExecuted += result.TradesExecuted
		if result.Success {
			summary.SuccessfulCycles++
			balanceSum += result.Balance
			summary.FinalBalance = result.Balance
		} else {
			a.logger.Warn().Int("cycle", i+1).Str("error", result.Error).Msg("cycle unsuccessful")
		}
	}

	if summary.SuccessfulCycles > 0 {
		summary.AverageBalance = balanceSum / float64(summary.SuccessfulCycles)
	}

	text := FormatSummary(summary)
	a.bus.Publish(events.Event{
		Type: events.EventSummaryReady,
		Data: map[string]interface{}{"successful_cycles": summary.SuccessfulCycles, "total_cycles": n},
	})
	if a.notifier != nil && a.notifier.Enabled() {
		if err := a.notifier.SendText(ctx, text); err != nil {
			a.logger.Error().Err(err).Msg("summary notification failed")
		}
	}

	return summary
}

func flattenAssets(assets map[ledger.Currency]float64) map[string]float64 {
	if len(assets) == 0 {
		return nil
	}
	flat := make(map[string]float64, len(assets))
	for ccy, value := range assets {
		flat[string(ccy)] = value
	}
	return flat
}
