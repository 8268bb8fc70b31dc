package store

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"trading-gate/internal/models"
)

// Property: For any trade record, saving it and reading it back from SQLite
// produces an equivalent record, for both the open and the closed forms.
func TestProperty_TradeRecordRoundTrip(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "roundtrip.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	symbols := []string{"BTC-USD", "ETH-USD", "SOL-USD", "AVAX-USD", "LINK-USD"}
	seq := 0

	properties.Property("Trade round-trip: save then get produces equivalent data", prop.ForAll(
		func(symbolIdx int, short bool, entry, stopPct, exitPct float64, closed bool) bool {
			ctx := context.Background()
			seq++

			record := generateTestRecord(seq, symbols[symbolIdx%len(symbols)], short, entry, stopPct, exitPct, closed)

			if err := store.SaveTrade(ctx, record); err != nil {
				t.Logf("Failed to save trade: %v", err)
				return false
			}

			got, err := store.GetTrade(ctx, record.ID)
			if err != nil {
				t.Logf("Failed to get trade: %v", err)
				return false
			}

			if !recordsEqual(record, got) {
				t.Logf("Record mismatch: original=%+v, retrieved=%+v", record, got)
				return false
			}
			return true
		},
		gen.IntRange(0, len(symbols)-1),
		gen.Bool(),
		gen.Float64Range(0.5, 100000),
		gen.Float64Range(0.001, 0.2),
		gen.Float64Range(-0.3, 0.6),
		gen.Bool(),
	))

	properties.Property("Day round-trip: emotions and lockout survive", prop.ForAll(
		func(losses int, emotionIdx []int) bool {
			ctx := context.Background()
			seq++

			base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, seq)
			day := models.NewDailyPsychologyState(base.Format(models.DateLayout), base)
			all := models.AllEmotions()
			for i, idx := range emotionIdx {
				day.Emotions = append(day.Emotions, models.EmotionReport{
					Emotion:   all[idx%len(all)],
					Intensity: 1 + idx%10,
					Timestamp: base.Add(time.Duration(i) * time.Minute),
				})
			}
			day.Dominant = models.DominantEmotion(day.Emotions)
			day.LossCount = losses
			day.TradeCount = losses
			if losses >= 3 {
				lockedAt := base.Add(time.Hour)
				day.Locked = true
				day.LockReason = models.LockLossStreak
				day.LockedAt = &lockedAt
			}

			if err := store.SaveDay(ctx, day); err != nil {
				t.Logf("Failed to save day: %v", err)
				return false
			}
			got, err := store.GetDay(ctx, day.Date)
			if err != nil {
				t.Logf("Failed to get day: %v", err)
				return false
			}

			if got.LossCount != day.LossCount || got.Locked != day.Locked || got.LockReason != day.LockReason {
				return false
			}
			if (got.LockedAt == nil) != (day.LockedAt == nil) {
				return false
			}
			if got.LockedAt != nil && !got.LockedAt.Equal(*day.LockedAt) {
				return false
			}
			if len(got.Emotions) != len(day.Emotions) || got.Dominant != day.Dominant {
				return false
			}
			for i := range day.Emotions {
				if got.Emotions[i].Emotion != day.Emotions[i].Emotion ||
					!got.Emotions[i].Timestamp.Equal(day.Emotions[i].Timestamp) {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 5),
		gen.SliceOf(gen.IntRange(0, 100)),
	))

	properties.TestingRun(t)
}

// generateTestRecord creates a consistent trade record for testing.
func generateTestRecord(seq int, symbol string, short bool, entry, stopPct, exitPct float64, closed bool) *models.TradeRecord {
	dir := models.DirectionLong
	if short {
		dir = models.DirectionShort
	}
	stop := entry * (1 - dir.Sign()*stopPct)
	target := entry + dir.Sign()*2*math.Abs(entry-stop)
	planned := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(seq) * time.Minute)

	record := &models.TradeRecord{
		ID:         fmt.Sprintf("T%06d", seq),
		LogicalKey: fmt.Sprintf("ref:%d", seq),
		Status:     models.TradePlanned,
		Proposal: models.TradeProposal{
			Symbol:     symbol,
			Direction:  dir,
			EntryPrice: entry,
			StopPrice:  stop,
			TakeProfit: target,
			Trend:      models.TrendBullish,
			Setup:      models.SetupBullishPullback,
			Confluences: []models.Confluence{
				models.BoolConfluence("ema_stack", true),
				models.NumericConfluence("rsi", 55, 50, false),
			},
			ProposedAt: planned,
		},
		Validation: models.ValidationResult{
			Approved:    true,
			RewardRatio: 2,
		},
		Sizing: models.Sizing{
			UnitSize:     100 / math.Abs(entry-stop),
			DollarRisk:   100,
			RiskFraction: 0.01,
		},
		PlannedAt: planned,
	}

	if closed {
		filled := planned.Add(time.Minute)
		exitAt := planned.Add(time.Hour)
		exit := entry * (1 + dir.Sign()*exitPct)
		record.Status = models.TradeClosed
		record.FillPrice = entry
		record.FilledAt = &filled
		record.ExitPrice = exit
		record.ClosedAt = &exitAt
		record.RealizedPnL = (exit - entry) * record.Sizing.UnitSize * dir.Sign()
		record.RealizedR = (exit - entry) * dir.Sign() / math.Abs(entry-stop)
		record.MistakeTags = []string{"early_exit"}
	}

	return record
}

// recordsEqual compares two records for equality with floating point tolerance.
func recordsEqual(a, b *models.TradeRecord) bool {
	const tolerance = 1e-9

	if a.ID != b.ID || a.LogicalKey != b.LogicalKey || a.Status != b.Status {
		return false
	}
	if a.Proposal.Symbol != b.Proposal.Symbol || a.Proposal.Direction != b.Proposal.Direction {
		return false
	}
	if len(a.Proposal.Confluences) != len(b.Proposal.Confluences) {
		return false
	}
	if !floatEqual(a.Proposal.StopPrice, b.Proposal.StopPrice, tolerance) {
		return false
	}
	if !floatEqual(a.Sizing.UnitSize, b.Sizing.UnitSize, tolerance) {
		return false
	}
	if !floatEqual(a.RealizedPnL, b.RealizedPnL, tolerance) || !floatEqual(a.RealizedR, b.RealizedR, tolerance) {
		return false
	}
	if !a.PlannedAt.Equal(b.PlannedAt) {
		return false
	}
	if (a.ClosedAt == nil) != (b.ClosedAt == nil) {
		return false
	}
	if a.ClosedAt != nil && !a.ClosedAt.Equal(*b.ClosedAt) {
		return false
	}
	return len(a.MistakeTags) == len(b.MistakeTags)
}

// floatEqual compares two floats with a relative tolerance.
func floatEqual(a, b, tolerance float64) bool {
	diff := math.Abs(a - b)
	return diff <= tolerance*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}
