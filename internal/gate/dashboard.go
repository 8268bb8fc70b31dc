package gate

import (
	"context"

	"trading-gate/internal/models"
	"trading-gate/internal/store"
)

// Dashboard is the read-only summary of the gate's state.
type Dashboard struct {
	Date            string                       `json:"date"`
	RolloverPending bool                         `json:"rollover_pending"`
	Phase           models.PsychologyPhase       `json:"phase"`
	Psychology      *models.DailyPsychologyState `json:"psychology"`
	LossesRemaining int                          `json:"losses_remaining"`
	TradesRemaining int                          `json:"trades_remaining"`
	Balance         float64                      `json:"balance"`
	OpenExposure    float64                      `json:"open_exposure"`
	ExposureLimit   float64                      `json:"exposure_limit"`
	OpenTrades      []*models.TradeRecord        `json:"open_trades"`
	Statistics      models.JournalStatistics     `json:"statistics"`
	Curriculum      models.CurriculumProgress    `json:"curriculum"`
}

// DashboardStatus summarises the day, the journal and the curriculum. It does
// not roll the day over; a stale day is reported with RolloverPending set.
func (g *Gate) DashboardStatus(ctx context.Context) (*Dashboard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	now := g.now()
	day := g.psych.Snapshot()
	lossLockout, tradeCap := g.psych.Limits()

	d := &Dashboard{
		Date:            day.Date,
		RolloverPending: day.Date < now.In(g.cfg.Location()).Format("2006-01-02"),
		Phase:           day.Phase(),
		Psychology:      day,
		LossesRemaining: remaining(lossLockout, day.LossCount),
		TradesRemaining: remaining(tradeCap, day.TradeCount),
		Balance:         g.cfg.Account.Balance,
		OpenExposure:    g.journal.Exposure(),
		ExposureLimit:   g.cfg.Account.Balance * g.cfg.Risk.MaxExposureFraction,
		Statistics:      g.journal.ComputeStatistics(),
		Curriculum:      g.mentor.Progress(),
	}
	if day.Locked {
		d.LossesRemaining = 0
		d.TradesRemaining = 0
	}
	for _, r := range g.journal.Records() {
		if r.IsOpen() {
			d.OpenTrades = append(d.OpenTrades, r)
		}
	}
	return d, nil
}

func remaining(limit, used int) int {
	if used >= limit {
		return 0
	}
	return limit - used
}

// Trade returns a journal record by id.
func (g *Gate) Trade(id string) (*models.TradeRecord, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.journal.Get(id)
}

// Trades lists journal records matching filter.
func (g *Gate) Trades(ctx context.Context, filter store.TradeFilter) ([]*models.TradeRecord, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.journal.List(ctx, filter)
}

// Statistics computes journal statistics over every record.
func (g *Gate) Statistics() models.JournalStatistics {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.journal.ComputeStatistics()
}

// Patterns analyses the journal for behavioural patterns.
func (g *Gate) Patterns() models.PatternReport {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.journal.Patterns()
}

// Psychology returns a copy of the current day's state.
func (g *Gate) Psychology() *models.DailyPsychologyState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.psych.Snapshot()
}

// PsychologyHistory lists archived days, newest first.
func (g *Gate) PsychologyHistory(ctx context.Context, limit int) ([]*models.DailyPsychologyState, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.psych.History(ctx, limit)
}

// Progress reports curriculum progress and live eligibility.
func (g *Gate) Progress() models.CurriculumProgress {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.mentor.Progress()
}

// Lesson returns a lesson from the catalogue.
func (g *Gate) Lesson(index int) (models.Lesson, error) {
	return g.mentor.Lesson(index)
}

// Lessons returns the full catalogue.
func (g *Gate) Lessons() []models.Lesson {
	return g.mentor.Lessons()
}

// CurrentLesson returns the index of the next lesson to complete.
func (g *Gate) CurrentLesson() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.mentor.CurrentLesson()
}
