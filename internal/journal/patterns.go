package journal

import (
	"fmt"
	"sort"
	"time"

	"trading-gate/internal/models"
)

// minSample is the number of closed trades before rate-based insights fire.
const minSample = 5

// Patterns mines recurring outcome patterns from closed records.
func Patterns(records []*models.TradeRecord, loc *time.Location) models.PatternReport {
	stats := Statistics(records)
	closed := closedInOrder(records)

	report := models.PatternReport{
		CurrentLossStreak: currentLossStreak(closed),
		LongestLossStreak: stats.MaxConsecutiveLosses,
		BySymbol: groupBy(closed, func(r *models.TradeRecord) string {
			return r.Proposal.Symbol
		}),
		BySetup: groupBy(closed, func(r *models.TradeRecord) string {
			return string(r.Proposal.Setup)
		}),
		ByWeekday: groupBy(closed, func(r *models.TradeRecord) string {
			return r.PlannedAt.In(loc).Weekday().String()
		}),
		Insights: []models.Insight{},
	}
	sortWeekdays(report.ByWeekday)

	var worst, best *models.EmotionPerformance
	for _, e := range models.AllEmotions() {
		perf, ok := stats.ByEmotion[e]
		if !ok {
			continue
		}
		if perf.AvgPnL < 0 && (worst == nil || perf.AvgPnL < worst.AvgPnL) {
			worst = perf
		}
		if perf.AvgPnL > 0 && (best == nil || perf.AvgPnL > best.AvgPnL) {
			best = perf
		}
	}
	if worst != nil {
		report.WorstEmotion = worst.Emotion
		report.Insights = append(report.Insights, models.Insight{
			Kind:     "emotion",
			Severity: "warning",
			Message:  fmt.Sprintf("trades entered while %s lose $%.2f on average (%d trades)", worst.Emotion, -worst.AvgPnL, worst.Trades),
		})
	}
	if best != nil {
		report.BestEmotion = best.Emotion
	}

	topCount := 0
	for tag, n := range stats.MistakeFrequency {
		if n > topCount || (n == topCount && tag < report.TopMistake) {
			report.TopMistake, topCount = tag, n
		}
	}
	if report.TopMistake != "" {
		report.Insights = append(report.Insights, models.Insight{
			Kind:     "mistake",
			Severity: "info",
			Message:  fmt.Sprintf("most frequent mistake: %s (%d times)", report.TopMistake, topCount),
		})
	}

	if report.CurrentLossStreak >= 2 {
		report.Insights = append(report.Insights, models.Insight{
			Kind:     "streak",
			Severity: "warning",
			Message:  fmt.Sprintf("%d losses in a row; the next trade is a revenge-trade risk", report.CurrentLossStreak),
		})
	}

	if stats.ClosedTrades >= minSample {
		if stats.Expectancy < 0 {
			report.Insights = append(report.Insights, models.Insight{
				Kind:     "expectancy",
				Severity: "critical",
				Message:  fmt.Sprintf("negative expectancy: $%.2f per trade over %d trades", stats.Expectancy, stats.ClosedTrades),
			})
		}
		if stats.AdherenceRate < 0.8 {
			report.Insights = append(report.Insights, models.Insight{
				Kind:     "adherence",
				Severity: "warning",
				Message:  fmt.Sprintf("only %.0f%% of trades followed the plan unmodified", 100*stats.AdherenceRate),
			})
		}
	}

	return report
}

func groupBy(closed []*models.TradeRecord, key func(*models.TradeRecord) string) []models.GroupPerformance {
	index := make(map[string]int)
	var groups []models.GroupPerformance
	for _, r := range closed {
		k := key(r)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, models.GroupPerformance{Key: k})
		}
		g := &groups[i]
		g.Trades++
		g.TotalPnL += r.RealizedPnL
		if r.Won() {
			g.Wins++
		}
	}
	for i := range groups {
		groups[i].WinRate = float64(groups[i].Wins) / float64(groups[i].Trades)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	if groups == nil {
		groups = []models.GroupPerformance{}
	}
	return groups
}

func sortWeekdays(groups []models.GroupPerformance) {
	order := map[string]int{}
	for d := time.Monday; d <= time.Saturday; d++ {
		order[d.String()] = int(d)
	}
	order[time.Sunday.String()] = 7
	sort.Slice(groups, func(i, j int) bool { return order[groups[i].Key] < order[groups[j].Key] })
}
