package agent

import (
	"fmt"
	"strings"
)

// FormatSummary renders the consolidated multi-cycle summary message sent
// once after a RunMultiCycle batch.
func FormatSummary(s MultiCycleSummary) string {
	lines := []string{
		"🔬 *#AI模拟盘 多周期运行总结*",
		"",
		fmt.Sprintf("🔄 运行周期: %d", s.TotalCycles),
		fmt.Sprintf("✅ 成功周期: %d", s.SuccessfulCycles),
		fmt.Sprintf("📊 成功率: %.1f%%", s.SuccessRatePct()),
		fmt.Sprintf("💼 累计交易: %d", s.TotalTradesExecuted),
		fmt.Sprintf("📈 平均每周期交易数: %.1f", s.AvgTradesPerCycle()),
	}
	if s.SuccessfulCycles > 0 {
		lines = append(lines,
			fmt.Sprintf("💰 平均余额: $%.2f", s.AverageBalance),
			fmt.Sprintf("🏁 最终余额: $%.2f", s.FinalBalance),
		)
	} else {
		lines = append(lines, "⚠️ 所有周期均未成功，无余额数据")
	}
	return strings.Join(lines, "\n")
}
