package gate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-gate/internal/audit"
	"trading-gate/internal/config"
	"trading-gate/internal/errors"
	"trading-gate/internal/logging"
	"trading-gate/internal/models"
	"trading-gate/internal/store"
)

const balance = 6167.43

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type bufferCloser struct {
	bytes.Buffer
}

func (*bufferCloser) Close() error { return nil }

type fixture struct {
	gate    *Gate
	backend store.StateStore
	clock   *clock
	audit   *bufferCloser
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()
	cfg := config.Default(t.TempDir())
	cfg.Account.Balance = balance
	for _, m := range mutate {
		m(cfg)
	}

	f := &fixture{
		backend: store.NewMemoryStore(),
		clock:   &clock{t: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)},
		audit:   &bufferCloser{},
	}
	g, err := New(context.Background(), cfg, f.backend,
		WithClock(f.clock.now),
		WithAudit(audit.NewWriterLogger(f.audit)))
	require.NoError(t, err)
	f.gate = g
	return f
}

func (f *fixture) events(t *testing.T) []audit.Event {
	t.Helper()
	var events []audit.Event
	scanner := bufio.NewScanner(bytes.NewReader(f.audit.Bytes()))
	for scanner.Scan() {
		var e audit.Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		events = append(events, e)
	}
	return events
}

func (f *fixture) eventTypes(t *testing.T) []audit.EventType {
	var types []audit.EventType
	for _, e := range f.events(t) {
		types = append(types, e.EventType)
	}
	return types
}

func proposal(ref string) models.TradeProposal {
	return models.TradeProposal{
		Symbol:     "BTC-USD",
		Direction:  models.DirectionLong,
		EntryPrice: 43000,
		StopPrice:  41000,
		TakeProfit: 47000,
		Trend:      models.TrendBullish,
		Setup:      models.SetupBullishPullback,
		Confluences: []models.Confluence{
			models.BoolConfluence("ema_stack", true),
			models.NumericConfluence("rsi", 58, 50, false),
			models.BoolConfluence("volume_expansion", true),
		},
		ClientRef: ref,
	}
}

func calm() models.EmotionReport {
	return models.EmotionReport{Emotion: models.EmotionConfident, Intensity: 3}
}

// roundTrip plans, fills at entry and closes a trade at exit.
func (f *fixture) roundTrip(t *testing.T, p models.TradeProposal, exit float64) *CloseResult {
	t.Helper()
	ctx := context.Background()
	d, err := f.gate.PreTradeCheck(ctx, p, calm())
	require.NoError(t, err)
	require.True(t, d.Approved, "reasons: %v", d.Reasons)
	_, err = f.gate.ExecuteTrade(ctx, d.PlanID, p.EntryPrice, time.Time{})
	require.NoError(t, err)
	res, err := f.gate.CloseTrade(ctx, CloseRequest{ID: d.PlanID, ExitPrice: exit})
	require.NoError(t, err)
	return res
}

func TestApprovedProposalIsPlanned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.gate.PreTradeCheck(ctx, proposal("a"), calm())
	require.NoError(t, err)

	assert.True(t, d.Approved)
	assert.NotEmpty(t, d.PlanID)
	assert.Empty(t, d.Reasons)
	require.NotNil(t, d.Sizing)
	assert.InDelta(t, 61.67, d.Sizing.DollarRisk, 1e-9)
	assert.InDelta(t, 0.03083715, d.Sizing.UnitSize, 1e-9)
	assert.Equal(t, models.ClassProceed, d.Psychology.Classification)

	record, err := f.gate.Trade(d.PlanID)
	require.NoError(t, err)
	assert.Equal(t, models.TradePlanned, record.Status)
	assert.Equal(t, f.clock.now(), record.Proposal.ProposedAt)

	day := f.gate.Psychology()
	require.Len(t, day.Emotions, 1)
	assert.Equal(t, models.EmotionConfident, day.Emotions[0].Emotion)
	assert.Equal(t, 0, day.TradeCount)

	assert.Equal(t, []audit.EventType{audit.EventTradeApproved}, f.eventTypes(t))
}

func TestRejectionChangesNoState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.gate.PreTradeCheck(ctx, proposal("a"), models.EmotionReport{Emotion: models.EmotionRevenge, Intensity: 8})
	require.NoError(t, err)

	assert.False(t, d.Approved)
	assert.Empty(t, d.PlanID)
	require.NotEmpty(t, d.Reasons)
	assert.Contains(t, d.Reasons[0], string(models.CheckPsychology))
	assert.True(t, d.Psychology.FlagPattern)

	trades, err := f.gate.Trades(ctx, store.TradeFilter{})
	require.NoError(t, err)
	assert.Empty(t, trades)
	assert.Empty(t, f.gate.Psychology().Emotions)

	assert.Equal(t, []audit.EventType{audit.EventPatternFlagged, audit.EventTradeRejected}, f.eventTypes(t))
}

func TestInvalidRequests(t *testing.T) {
	ctx := context.Background()

	t.Run("malformed proposal", func(t *testing.T) {
		f := newFixture(t)
		p := proposal("a")
		p.EntryPrice = -1
		_, err := f.gate.PreTradeCheck(ctx, p, calm())
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
	})

	t.Run("unknown emotion", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.gate.PreTradeCheck(ctx, proposal("a"), models.EmotionReport{Emotion: "bored", Intensity: 5})
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
		assert.Empty(t, f.eventTypes(t))
	})

	t.Run("zero balance", func(t *testing.T) {
		f := newFixture(t, func(c *config.Config) { c.Account.Balance = 0 })
		_, err := f.gate.PreTradeCheck(ctx, proposal("a"), calm())
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
	})

	t.Run("execute unknown plan", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.gate.ExecuteTrade(ctx, "missing", 43000, time.Time{})
		assert.ErrorIs(t, err, errors.ErrNotFound)
	})

	t.Run("blank mistake tag", func(t *testing.T) {
		f := newFixture(t)
		d, err := f.gate.PreTradeCheck(ctx, proposal("a"), calm())
		require.NoError(t, err)
		_, err = f.gate.ExecuteTrade(ctx, d.PlanID, 43000, time.Time{})
		require.NoError(t, err)
		_, err = f.gate.CloseTrade(ctx, CloseRequest{ID: d.PlanID, ExitPrice: 44000, MistakeTags: []string{""}})
		assert.ErrorIs(t, err, errors.ErrInvalidInput)

		record, err := f.gate.Trade(d.PlanID)
		require.NoError(t, err)
		assert.Equal(t, models.TradeExecuted, record.Status)
	})

	t.Run("bad symbol", func(t *testing.T) {
		f := newFixture(t)
		p := proposal("a")
		p.Symbol = "BTC USD"
		_, err := f.gate.PreTradeCheck(ctx, p, calm())
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
	})

	t.Run("close before execution", func(t *testing.T) {
		f := newFixture(t)
		d, err := f.gate.PreTradeCheck(ctx, proposal("a"), calm())
		require.NoError(t, err)
		_, err = f.gate.CloseTrade(ctx, CloseRequest{ID: d.PlanID, ExitPrice: 44000})
		assert.ErrorIs(t, err, errors.ErrInvalidTransition)
		assert.Equal(t, 0, f.gate.Psychology().TradeCount)
	})
}

func TestDuplicateProposalKeepsEmotionHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.gate.PreTradeCheck(ctx, proposal("same"), calm())
	require.NoError(t, err)

	_, err = f.gate.PreTradeCheck(ctx, proposal("same"), calm())
	assert.ErrorIs(t, err, errors.ErrDuplicateIdentity)
	assert.Len(t, f.gate.Psychology().Emotions, 1)
}

func TestLossLockout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	open, err := f.gate.PreTradeCheck(ctx, proposal("open"), calm())
	require.NoError(t, err)
	_, err = f.gate.ExecuteTrade(ctx, open.PlanID, 43000, time.Time{})
	require.NoError(t, err)

	for i := 0; i < config.HardLossLockout; i++ {
		res := f.roundTrip(t, proposal(fmt.Sprintf("loss-%d", i)), 42000)
		assert.True(t, res.Loss)
		last := i == config.HardLossLockout-1
		assert.Equal(t, last, res.JustLocked)
		assert.Equal(t, last, res.Locked)
	}

	day := f.gate.Psychology()
	assert.True(t, day.Locked)
	assert.Equal(t, models.LockLossStreak, day.LockReason)

	d, err := f.gate.PreTradeCheck(ctx, proposal("after"), calm())
	require.NoError(t, err)
	assert.False(t, d.Approved)
	check, ok := d.Validation.Check(models.CheckPsychology)
	require.True(t, ok)
	assert.Equal(t, models.CodeLockout, check.Code)

	// A winning close later in the day does not unlock.
	res, err := f.gate.CloseTrade(ctx, CloseRequest{ID: open.PlanID, ExitPrice: 47000})
	require.NoError(t, err)
	assert.True(t, res.Locked)
	assert.False(t, res.JustLocked)

	assert.Equal(t, 1, countEvents(f.eventTypes(t), audit.EventLockout))
}

func countEvents(types []audit.EventType, want audit.EventType) int {
	n := 0
	for _, et := range types {
		if et == want {
			n++
		}
	}
	return n
}

func TestTradeCapLockout(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Psychology.DailyTradeCap = 2 })

	first := f.roundTrip(t, proposal("w1"), 44000)
	assert.False(t, first.Locked)
	second := f.roundTrip(t, proposal("w2"), 43000)
	assert.False(t, second.Loss, "breakeven counts as a win")
	assert.True(t, second.JustLocked)
	assert.Equal(t, models.LockTradeCap, second.LockReason)
}

func TestRolloverResetsDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < config.HardLossLockout; i++ {
		f.roundTrip(t, proposal(fmt.Sprintf("loss-%d", i)), 42000)
	}
	require.True(t, f.gate.Psychology().Locked)

	f.clock.advance(24 * time.Hour)

	dash, err := f.gate.DashboardStatus(ctx)
	require.NoError(t, err)
	assert.True(t, dash.RolloverPending)
	assert.Equal(t, "2024-03-04", dash.Date)

	d, err := f.gate.PreTradeCheck(ctx, proposal("fresh"), calm())
	require.NoError(t, err)
	assert.True(t, d.Approved, "reasons: %v", d.Reasons)

	day := f.gate.Psychology()
	assert.Equal(t, "2024-03-05", day.Date)
	assert.False(t, day.Locked)
	assert.Equal(t, 0, day.LossCount)

	history, err := f.gate.PsychologyHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "2024-03-04", history[0].Date)
	assert.True(t, history[0].Locked)

	assert.Contains(t, f.eventTypes(t), audit.EventDayRollover)
}

func TestCloseFeedsMentorAndEmotions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := proposal("paper")
	p.Paper = true
	d, err := f.gate.PreTradeCheck(ctx, p, calm())
	require.NoError(t, err)
	_, err = f.gate.ExecuteTrade(ctx, d.PlanID, 43000, time.Time{})
	require.NoError(t, err)

	res, err := f.gate.CloseTrade(ctx, CloseRequest{
		ID:           d.PlanID,
		ExitPrice:    47000,
		Lessons:      "waited for the retest",
		EmotionAfter: &models.EmotionReport{Emotion: models.EmotionNeutral, Intensity: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, models.TradeClosed, res.Record.Status)
	assert.InDelta(t, 2.0, res.Record.RealizedR, 1e-9)

	progress := f.gate.Progress()
	assert.Equal(t, 1, progress.PaperTrades)
	assert.Equal(t, 1, progress.PaperWins)

	day := f.gate.Psychology()
	assert.Equal(t, 1, day.TradeCount)
	require.Len(t, day.Emotions, 2)
	assert.Equal(t, models.EmotionNeutral, day.Emotions[1].Emotion)

	stats := f.gate.Statistics()
	assert.Equal(t, 1, stats.ClosedTrades)
	assert.Equal(t, 1, stats.Wins)
}

func TestBreakevenPaperCloseCountsAsWin(t *testing.T) {
	f := newFixture(t)
	p := proposal("flat")
	p.Paper = true

	res := f.roundTrip(t, p, p.EntryPrice)
	assert.Zero(t, res.Record.RealizedPnL)
	assert.False(t, res.Loss)

	progress := f.gate.Progress()
	assert.Equal(t, 1, progress.PaperTrades)
	assert.Equal(t, 1, progress.PaperWins)
	assert.Equal(t, 0, f.gate.Psychology().LossCount)
}

// closeFailingStore refuses to persist CLOSED trade records.
type closeFailingStore struct {
	store.StateStore
}

func (s closeFailingStore) SaveTrade(ctx context.Context, record *models.TradeRecord) error {
	if record.Status == models.TradeClosed {
		return errors.NewPersistenceError("save trade", fmt.Errorf("disk full"))
	}
	return s.StateStore.SaveTrade(ctx, record)
}

func TestFailedCloseStillCountsLoss(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default(t.TempDir())
	cfg.Account.Balance = balance
	c := &clock{t: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)}
	g, err := New(ctx, cfg, closeFailingStore{store.NewMemoryStore()}, WithClock(c.now))
	require.NoError(t, err)

	d, err := g.PreTradeCheck(ctx, proposal("a"), calm())
	require.NoError(t, err)
	_, err = g.ExecuteTrade(ctx, d.PlanID, 43000, time.Time{})
	require.NoError(t, err)

	_, err = g.CloseTrade(ctx, CloseRequest{ID: d.PlanID, ExitPrice: 42000})
	assert.ErrorIs(t, err, errors.ErrPersistence)

	assert.Equal(t, 1, g.Psychology().LossCount)
	record, err := g.Trade(d.PlanID)
	require.NoError(t, err)
	assert.Equal(t, models.TradeExecuted, record.Status)
}

func TestLiveEligibilityEnforcement(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Curriculum.EnforceLiveEligibility = true })
	ctx := context.Background()

	d, err := f.gate.PreTradeCheck(ctx, proposal("live"), calm())
	require.NoError(t, err)
	assert.False(t, d.Approved)
	check, ok := d.Validation.Check(models.CheckLiveEligibility)
	require.True(t, ok)
	assert.Equal(t, models.CodeNotEligible, check.Code)
	assert.Empty(t, f.gate.Psychology().Emotions)

	p := proposal("paper")
	p.Paper = true
	d, err = f.gate.PreTradeCheck(ctx, p, calm())
	require.NoError(t, err)
	assert.True(t, d.Approved)
	_, ok = d.Validation.Check(models.CheckLiveEligibility)
	assert.False(t, ok)
}

func TestExposureAccumulatesAcrossPlans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Each plan risks 1% of balance against a 10% exposure cap.
	for i := 0; i < 10; i++ {
		d, err := f.gate.PreTradeCheck(ctx, proposal(fmt.Sprintf("p-%d", i)), calm())
		require.NoError(t, err)
		require.True(t, d.Approved, "plan %d: %v", i, d.Reasons)
	}

	d, err := f.gate.PreTradeCheck(ctx, proposal("p-10"), calm())
	require.NoError(t, err)
	assert.False(t, d.Approved)
	check, ok := d.Validation.Check(models.CheckExposure)
	require.True(t, ok)
	assert.Equal(t, models.CodeExposure, check.Code)

	dash, err := f.gate.DashboardStatus(ctx)
	require.NoError(t, err)
	assert.Len(t, dash.OpenTrades, 10)
	assert.InDelta(t, balance*0.10, dash.OpenExposure, 1e-6)
}

func TestNewUsesContextLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := logging.WithLogger(context.Background(), zerolog.New(&buf))

	cfg := config.Default(t.TempDir())
	cfg.Account.Balance = balance
	g, err := New(ctx, cfg, store.NewMemoryStore())
	require.NoError(t, err)

	_, err = g.PreTradeCheck(ctx, proposal("ctx"), calm())
	require.NoError(t, err)

	var decision map[string]interface{}
	scanner := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for scanner.Scan() {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		if entry["event"] == "decision" {
			decision = entry
		}
	}
	require.NotNil(t, decision)
	assert.Equal(t, "gate", decision["component"])
	assert.Equal(t, true, decision["approved"])

	// An explicit logger wins over the context one.
	var explicit bytes.Buffer
	buf.Reset()
	g, err = New(ctx, cfg, store.NewMemoryStore(), WithLogger(zerolog.New(&explicit)))
	require.NoError(t, err)
	_, err = g.PreTradeCheck(ctx, proposal("explicit"), calm())
	require.NoError(t, err)
	assert.Contains(t, explicit.String(), `"event":"decision"`)
	assert.Empty(t, buf.String())
}

func TestNewRejectsLoosenedCurriculum(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Account.Balance = balance
	cfg.Curriculum.PassScore = 0.5
	cfg.Curriculum.MinLessons = 0

	_, err := New(context.Background(), cfg, store.NewMemoryStore())
	assert.ErrorIs(t, err, errors.ErrConfigInvalid)
}

func TestCompleteLessonIsAudited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.gate.CompleteLesson(ctx, 0, 0.5)
	assert.ErrorIs(t, err, errors.ErrQuizNotPassed)

	result, err := f.gate.CompleteLesson(ctx, 0, 0.9)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Index)
	assert.Equal(t, 1, f.gate.CurrentLesson())

	events := f.events(t)
	require.Len(t, events, 2)
	assert.False(t, events[0].Success)
	assert.NotEmpty(t, events[0].ErrorMsg)
	assert.True(t, events[1].Success)
}

func TestDashboardStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.roundTrip(t, proposal("loss"), 42000)
	_, err := f.gate.PreTradeCheck(ctx, proposal("open"), models.EmotionReport{Emotion: models.EmotionAnxious, Intensity: 4})
	require.NoError(t, err)

	dash, err := f.gate.DashboardStatus(ctx)
	require.NoError(t, err)
	assert.False(t, dash.RolloverPending)
	assert.Equal(t, models.PhaseWarned, dash.Phase)
	assert.Equal(t, config.HardLossLockout-1, dash.LossesRemaining)
	assert.Equal(t, 9, dash.TradesRemaining)
	assert.Len(t, dash.OpenTrades, 1)
	assert.Equal(t, 1, dash.Statistics.ClosedTrades)
	assert.Equal(t, config.HardMaxExposureFraction*balance, dash.ExposureLimit)
	assert.Equal(t, 42, dash.Curriculum.TotalLessons)

	// Same answer later in the day with no writes in between.
	f.clock.advance(time.Hour)
	again, err := f.gate.DashboardStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, dash, again)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = f.gate.DashboardStatus(cancelled)
	assert.Error(t, err)
}

func TestStateSurvivesReopen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.roundTrip(t, proposal("loss"), 42000)

	cfg := config.Default(t.TempDir())
	cfg.Account.Balance = balance
	reopened, err := New(ctx, cfg, f.backend, WithClock(f.clock.now))
	require.NoError(t, err)

	assert.Equal(t, 1, reopened.Psychology().LossCount)
	assert.Equal(t, 1, reopened.Statistics().Losses)
}

// Property: a proposal is approved exactly when fewer losses than the
// lockout threshold have been closed today.
func TestLockoutGatesApprovalProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("approval iff losses below lockout", prop.ForAll(
		func(losses int) bool {
			f := newFixture(t)
			ctx := context.Background()
			for i := 0; i < losses; i++ {
				d, err := f.gate.PreTradeCheck(ctx, proposal(fmt.Sprintf("l-%d", i)), calm())
				if err != nil || !d.Approved {
					return false
				}
				if _, err := f.gate.ExecuteTrade(ctx, d.PlanID, 43000, time.Time{}); err != nil {
					return false
				}
				if _, err := f.gate.CloseTrade(ctx, CloseRequest{ID: d.PlanID, ExitPrice: 42500}); err != nil {
					return false
				}
			}
			d, err := f.gate.PreTradeCheck(ctx, proposal("probe"), calm())
			if err != nil {
				return false
			}
			return d.Approved == (losses < config.HardLossLockout)
		},
		gen.IntRange(0, config.HardLossLockout),
	))

	properties.TestingRun(t)
}
