// Package report turns a ledger snapshot, optionally joined with the current
// cycle's market analysis, into the formatted trading report text.
package report

import (
	"fmt"
	"strings"
	"time"

	"crypto-trading-agent/internal/analysis"
	"crypto-trading-agent/internal/ledger"
)

// HighConfidence is the highlight threshold: recommendations strictly above
// it land in the high-confidence section.
const HighConfidence = 0.8

// sectionUnavailable replaces a section whose computation failed. One broken
// section never takes the whole report down.
const sectionUnavailable = "⚠️ 本节内容生成失败"

const reportTitle = "📈 *#AI模拟盘 自动交易报告*"

// recentTradeWindow is how many trade entries the trade summary scans.
const recentTradeWindow = 10

var (
	buyKeywords  = []string{"bought", "buy"}
	sellKeywords = []string{"sold", "sell"}

	// riskKeywords flag cautionary language in trade texts.
	riskKeywords = []string{"高风险", "谨慎", "观望", "止损", "风险"}
)

// Synthesizer composes reports. It is stateless apart from the clock, which
// tests override.
type Synthesizer struct {
	now func() time.Time
}

// NewSynthesizer creates a report synthesizer.
func NewSynthesizer() *Synthesizer {
	return &Synthesizer{now: time.Now}
}

// Synthesize renders the full report. res may be nil when no current-cycle
// analysis is available (pure ledger reporting).
func (s *Synthesizer) Synthesize(led *ledger.Ledger, res *analysis.Result) string {
	var lines []string
	lines = append(lines, reportTitle, "")
	lines = append(lines, fmt.Sprintf("📅 分析时间: %s", s.now().Format("2006-01-02 15:04:05")), "")

	if res != nil {
		lines = append(lines, safeSection(func() []string { return analysisSection(res) })...)
	}
	lines = append(lines, safeSection(func() []string { return accountSection(led) })...)
	lines = append(lines, safeSection(func() []string { return portfolioSection(led.Assets) })...)
	lines = append(lines, safeSection(func() []string { return tradesSection(led.Trades) })...)
	lines = append(lines, safeSection(func() []string { return riskSection(led.Trades) })...)
	lines = append(lines, safeSection(func() []string { return performanceSection(led) })...)

	lines = append(lines,
		"*💡 说明*: 这是模拟交易环境，所有交易均为测试性质。",
		"*⚠️ 风险提示*: 加密货币交易存在高风险，请谨慎投资。",
	)

	return strings.Join(lines, "\n")
}

// safeSection isolates a section computation; a panic degrades to the fixed
// placeholder.
func safeSection(fn func() []string) (lines []string) {
	defer func() {
		if r := recover(); r != nil {
			lines = []string{sectionUnavailable, ""}
		}
	}()
	return fn()
}

// AccountSummary holds the derived balance metrics.
type AccountSummary struct {
	Latest              float64
	Initial             float64
	NetProfit           float64
	ProfitRatePct       float64
	TotalPortfolioValue float64
}

// SummarizeAccount derives the account metrics from a ledger snapshot. With
// fewer than two balance points the initial balance equals the latest one,
// and a zero initial balance forces a 0% profit rate.
func SummarizeAccount(led *ledger.Ledger) AccountSummary {
	sum := AccountSummary{
		Latest:  led.LatestBalance(),
		Initial: led.InitialBalance(),
	}
	sum.NetProfit = sum.Latest - sum.Initial
	if sum.Initial != 0 {
		sum.ProfitRatePct = sum.NetProfit / sum.Initial * 100
	}
	for _, value := range led.Assets {
		sum.TotalPortfolioValue += value
	}
	return sum
}

func accountSection(led *ledger.Ledger) []string {
	sum := SummarizeAccount(led)
	return []string{
		"💰 ***当前账户状态***:",
		fmt.Sprintf("   最新余额: $%.2f", sum.Latest),
		fmt.Sprintf("   初始余额: $%.2f", sum.Initial),
		fmt.Sprintf("   净收益: $%.2f", sum.NetProfit),
		fmt.Sprintf("   收益率: %.2f%%", sum.ProfitRatePct),
		fmt.Sprintf("   总资产价值: $%.2f", sum.TotalPortfolioValue),
		"",
	}
}

// PortfolioShare returns an asset's percentage of the total portfolio value,
// 0 when the total is 0.
func PortfolioShare(value, total float64) float64 {
	if total == 0 {
		return 0
	}
	return value / total * 100
}

func portfolioSection(assets map[ledger.Currency]float64) []string {
	lines := []string{"📊 ***持仓分布***:"}
	if len(assets) == 0 {
		return append(lines, "   暂无持仓", "")
	}

	var total float64
	for _, value := range assets {
		total += value
	}
	for _, ccy := range ledger.SortedCurrencies(assets) {
		value := assets[ccy]
		lines = append(lines, fmt.Sprintf("   %s: $%.2f (%.1f%%)", ccy, value, PortfolioShare(value, total)))
	}
	return append(lines, "")
}

// ClassifyTrade tags a trade text as buy, sell or neither by case-insensitive
// keyword match.
func ClassifyTrade(text string) (buy, sell bool) {
	lower := strings.ToLower(text)
	for _, kw := range buyKeywords {
		if strings.Contains(lower, kw) {
			buy = true
			break
		}
	}
	for _, kw := range sellKeywords {
		if strings.Contains(lower, kw) {
			sell = true
			break
		}
	}
	return buy, sell
}

func tradesSection(trades []ledger.TradeEntry) []string {
	recent := trades
	if len(recent) > recentTradeWindow {
		recent = recent[:recentTradeWindow]
	}

	var buyCount, sellCount int
	for _, trade := range recent {
		buy, sell := ClassifyTrade(trade.Text)
		if buy {
			buyCount++
		}
		if sell {
			sellCount++
		}
	}

	lines := []string{
		"💼 ***最近交易记录***:",
		fmt.Sprintf("   🟢 买入: %d | 🔴 卖出: %d", buyCount, sellCount),
	}
	if len(recent) == 0 {
		lines = append(lines, "   暂无交易记录")
	}
	for i, trade := range recent {
		lines = append(lines, fmt.Sprintf("   %d. %s", i+1, trade.Text))
	}
	return append(lines, "")
}

// RiskLevel is the coarse risk classification derived from trade texts.
type RiskLevel string

const (
	RiskLow    RiskLevel = "低"
	RiskMedium RiskLevel = "中"
	RiskHigh   RiskLevel = "高"
)

// RiskAssessment is the result of scanning trade texts for cautionary
// keywords.
type RiskAssessment struct {
	Level   RiskLevel
	Matches []string // up to 3 matching texts, verbatim
	Count   int
}

// AssessRisk scans all trade texts. No matches is low risk, 1-3 is medium,
// more than 3 is high.
func AssessRisk(trades []ledger.TradeEntry) RiskAssessment {
	assessment := RiskAssessment{Level: RiskLow}
	for _, trade := range trades {
		for _, kw := range riskKeywords {
			if strings.Contains(trade.Text, kw) {
				assessment.Count++
				if len(assessment.Matches) < 3 {
					assessment.Matches = append(assessment.Matches, trade.Text)
				}
				break
			}
		}
	}
	switch {
	case assessment.Count == 0:
	case assessment.Count <= 3:
		assessment.Level = RiskMedium
	default:
		assessment.Level = RiskHigh
	}
	return assessment
}

func riskSection(trades []ledger.TradeEntry) []string {
	assessment := AssessRisk(trades)
	lines := []string{
		"⚠️ ***风险评估***:",
		fmt.Sprintf("   风险等级: %s", assessment.Level),
	}
	for _, match := range assessment.Matches {
		lines = append(lines, fmt.Sprintf("   - %s", match))
	}
	return append(lines, "")
}

// DailyAverageProfit divides net profit by the day span implied by the
// balance record count. Records are assumed roughly hourly, so the span is
// count/24 days including fractions, clamped below at one day.
func DailyAverageProfit(netProfit float64, recordCount int) float64 {
	daysSpan := float64(recordCount) / 24
	if daysSpan < 1 {
		daysSpan = 1
	}
	return netProfit / daysSpan
}

func performanceSection(led *ledger.Ledger) []string {
	sum := SummarizeAccount(led)
	return []string{
		"📈 ***绩效指标***:",
		fmt.Sprintf("   日均收益: $%.2f", DailyAverageProfit(sum.NetProfit, len(led.Balances))),
		"",
	}
}

func analysisSection(res *analysis.Result) []string {
	lines := []string{"📊 ***交易对分析***:"}

	var buyCount, sellCount, holdCount int
	type highlight struct {
		pair       analysis.Pair
		confidence float64
		label      string
	}
	var highlights []highlight

	for _, pr := range res.Pairs {
		if pr.Failed() {
			lines = append(lines, fmt.Sprintf("*%s*: ❓ 分析失败", pr.Pair))
			continue
		}
		rec := pr.Recommendation

		switch rec.Action {
		case analysis.ActionBuy:
			buyCount++
			if rec.Confidence > HighConfidence {
				highlights = append(highlights, highlight{pr.Pair, rec.Confidence, "买入"})
			}
		case analysis.ActionSell:
			sellCount++
			if rec.Confidence > HighConfidence {
				highlights = append(highlights, highlight{pr.Pair, rec.Confidence, "卖出"})
			}
		default:
			holdCount++
		}

		lines = append(lines, fmt.Sprintf("*%s*: %s %s %s",
			pr.Pair, actionEmoji(rec.Action), strings.ToUpper(string(rec.Action)), confidenceEmoji(rec.Confidence)))
		lines = append(lines, fmt.Sprintf("   置信度: %.2f", rec.Confidence))
		if rec.Summary != "" {
			lines = append(lines, fmt.Sprintf("   分析: %s", truncate(rec.Summary, 100)))
		}
		lines = append(lines, "")
	}

	lines = append(lines,
		"📈 ***交易统计***:",
		fmt.Sprintf("   🟢 买入建议: %d", buyCount),
		fmt.Sprintf("   🔴 卖出建议: %d", sellCount),
		fmt.Sprintf("   ⚪ 持有建议: %d", holdCount),
	)

	if len(highlights) > 0 {
		lines = append(lines, "", "🔥 ***高置信度交易建议***:")
		for _, h := range highlights {
			lines = append(lines, fmt.Sprintf("*%s*: %s (置信度: %.2f)", h.pair, h.label, h.confidence))
		}
	}

	return append(lines, "")
}

func actionEmoji(action analysis.Action) string {
	switch action {
	case analysis.ActionBuy:
		return "🟢"
	case analysis.ActionSell:
		return "🔴"
	case analysis.ActionHold:
		return "⚪"
	default:
		return "❓"
	}
}

func confidenceEmoji(confidence float64) string {
	switch {
	case confidence > 0.8:
		return "🔥"
	case confidence > 0.6:
		return "⚡"
	default:
		return "📊"
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
