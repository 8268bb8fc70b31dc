package journal

import (
	"sort"

	"trading-gate/internal/models"
)

// Statistics is a pure fold over records. Wins are closed trades with
// positive P&L, losses negative, breakeven zero.
func Statistics(records []*models.TradeRecord) models.JournalStatistics {
	stats := models.JournalStatistics{
		TotalTrades:      len(records),
		ByEmotion:        make(map[models.Emotion]*models.EmotionPerformance),
		MistakeFrequency: make(map[string]int),
	}

	var grossWin, grossLoss, sumR float64
	adherent := 0

	closed := closedInOrder(records)
	for _, r := range records {
		if r.IsOpen() {
			stats.OpenTrades++
		}
	}

	for _, r := range closed {
		stats.ClosedTrades++
		stats.TotalPnL += r.RealizedPnL
		sumR += r.RealizedR

		switch {
		case r.RealizedPnL > 0:
			stats.Wins++
			grossWin += r.RealizedPnL
		case r.RealizedPnL < 0:
			stats.Losses++
			grossLoss -= r.RealizedPnL
		default:
			stats.Breakeven++
		}

		if !r.Validation.Modified {
			adherent++
		}

		for _, tag := range r.MistakeTags {
			stats.MistakeFrequency[tag]++
		}

		if e := r.Psychology.Emotion.Emotion; e != "" {
			perf, ok := stats.ByEmotion[e]
			if !ok {
				perf = &models.EmotionPerformance{Emotion: e}
				stats.ByEmotion[e] = perf
			}
			perf.Trades++
			perf.TotalPnL += r.RealizedPnL
			perf.AvgR += r.RealizedR // summed here, averaged below
			if r.Won() {
				perf.Wins++
			} else if r.Lost() {
				perf.Losses++
			}
		}
	}

	for _, perf := range stats.ByEmotion {
		n := float64(perf.Trades)
		perf.WinRate = float64(perf.Wins) / n
		perf.AvgPnL = perf.TotalPnL / n
		perf.AvgR /= n
	}

	stats.MaxConsecutiveLosses = longestLossStreak(closed)

	if stats.ClosedTrades == 0 {
		return stats
	}

	n := float64(stats.ClosedTrades)
	stats.WinRate = float64(stats.Wins) / n
	stats.AvgRealizedR = sumR / n
	stats.AdherenceRate = float64(adherent) / n
	if stats.Wins > 0 {
		stats.AvgWin = grossWin / float64(stats.Wins)
	}
	if stats.Losses > 0 {
		stats.AvgLoss = grossLoss / float64(stats.Losses)
	}
	lossRate := float64(stats.Losses) / n
	stats.Expectancy = stats.WinRate*stats.AvgWin - lossRate*stats.AvgLoss
	// Zero without losses; JSON has no infinity.
	if grossLoss > 0 {
		stats.ProfitFactor = grossWin / grossLoss
	}
	return stats
}

// closedInOrder returns closed records sorted by close time.
func closedInOrder(records []*models.TradeRecord) []*models.TradeRecord {
	var closed []*models.TradeRecord
	for _, r := range records {
		if r.Status == models.TradeClosed {
			closed = append(closed, r)
		}
	}
	sort.SliceStable(closed, func(i, j int) bool {
		a, b := closed[i].ClosedAt, closed[j].ClosedAt
		if a == nil || b == nil {
			return b != nil
		}
		return a.Before(*b)
	})
	return closed
}

func longestLossStreak(closed []*models.TradeRecord) int {
	longest, current := 0, 0
	for _, r := range closed {
		if r.Lost() {
			current++
			if current > longest {
				longest = current
			}
		} else {
			current = 0
		}
	}
	return longest
}

func currentLossStreak(closed []*models.TradeRecord) int {
	n := 0
	for i := len(closed) - 1; i >= 0 && closed[i].Lost(); i-- {
		n++
	}
	return n
}
