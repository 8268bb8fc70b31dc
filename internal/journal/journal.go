// Package journal keeps the append-only record of planned, executed and
// closed trades and derives statistics from it.
package journal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"trading-gate/internal/errors"
	"trading-gate/internal/models"
	"trading-gate/internal/psychology"
	"trading-gate/internal/store"
	"trading-gate/pkg/utils"
)

// Journal owns TradeRecord storage. Records are persisted before they
// become visible in memory.
type Journal struct {
	mu      sync.RWMutex
	backend store.StateStore
	records map[string]*models.TradeRecord
	order   []string
	keys    map[string]string
	loc     *time.Location
	now     func() time.Time
	logger  zerolog.Logger
}

// Option configures a Journal.
type Option func(*Journal)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(j *Journal) { j.now = now }
}

// WithLocation sets the calendar-day boundary used for logical keys and
// weekday breakdowns.
func WithLocation(loc *time.Location) Option {
	return func(j *Journal) { j.loc = loc }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(j *Journal) { j.logger = logger }
}

// New loads every stored record from backend.
func New(ctx context.Context, backend store.StateStore, opts ...Option) (*Journal, error) {
	j := &Journal{
		backend: backend,
		records: make(map[string]*models.TradeRecord),
		keys:    make(map[string]string),
		loc:     time.UTC,
		now:     time.Now,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(j)
	}

	records, err := backend.ListTrades(ctx, store.TradeFilter{})
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		j.records[r.ID] = r
		j.order = append(j.order, r.ID)
		j.keys[r.LogicalKey] = r.ID
	}
	return j, nil
}

// LogicalKey identifies a proposal independently of its record id: the
// client reference when given, otherwise a fingerprint of the trade levels
// and the calendar day.
func LogicalKey(p models.TradeProposal, loc *time.Location) string {
	if ref := strings.TrimSpace(p.ClientRef); ref != "" {
		return "ref:" + ref
	}
	day := p.ProposedAt.In(loc).Format(models.DateLayout)
	raw := fmt.Sprintf("%s|%s|%g|%g|%g|%s",
		strings.ToUpper(strings.TrimSpace(p.Symbol)), p.Direction, p.EntryPrice, p.StopPrice, p.TakeProfit, day)
	sum := sha256.Sum256([]byte(raw))
	return "fp:" + hex.EncodeToString(sum[:12])
}

// CreatePlan records an approved proposal as a PLANNED trade.
func (j *Journal) CreatePlan(ctx context.Context, proposal models.TradeProposal, validation models.ValidationResult, psych models.PsychologySnapshot) (*models.TradeRecord, error) {
	if !validation.Approved {
		return nil, errors.NewInvalidInputError("validation", validation.FailedChecks(), "only approved proposals can be planned")
	}
	if validation.Sizing == nil {
		return nil, errors.NewInvalidInputError("validation", nil, "approved validation carries no sizing")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	if proposal.ProposedAt.IsZero() {
		proposal.ProposedAt = now
	}

	key := LogicalKey(proposal, j.loc)
	if existing, ok := j.keys[key]; ok {
		return nil, errors.NewDuplicateIdentityError("trade", key, existing)
	}

	record := &models.TradeRecord{
		ID:         utils.NewID(now),
		LogicalKey: key,
		Status:     models.TradePlanned,
		Paper:      proposal.Paper,
		Proposal:   proposal.Clone(),
		Validation: validation.Clone(),
		Psychology: psych,
		Sizing:     *validation.Sizing,
		PlannedAt:  now,
	}

	if err := j.backend.SaveTrade(ctx, record); err != nil {
		return nil, err
	}

	j.records[record.ID] = record
	j.order = append(j.order, record.ID)
	j.keys[key] = record.ID

	j.logger.Info().
		Str("trade_id", record.ID).
		Str("symbol", proposal.Symbol).
		Str("direction", string(proposal.Direction)).
		Float64("units", record.Sizing.UnitSize).
		Msg("Trade planned")
	return record.Clone(), nil
}

// RecordExecution moves a PLANNED record to EXECUTED.
func (j *Journal) RecordExecution(ctx context.Context, id string, fillPrice float64, fillTime time.Time) (*models.TradeRecord, error) {
	if math.IsNaN(fillPrice) || math.IsInf(fillPrice, 0) || fillPrice <= 0 {
		return nil, errors.NewInvalidInputError("fill_price", fillPrice, "must be positive")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	current, err := j.lookup(id)
	if err != nil {
		return nil, err
	}
	if current.Status != models.TradePlanned {
		return nil, errors.NewInvalidStateTransitionError("trade", id, string(current.Status), string(models.TradeExecuted))
	}

	if fillTime.IsZero() {
		fillTime = j.now()
	}

	next := current.Clone()
	next.Status = models.TradeExecuted
	next.FillPrice = fillPrice
	next.FilledAt = &fillTime

	if err := j.backend.SaveTrade(ctx, next); err != nil {
		return nil, err
	}
	j.records[id] = next
	return next.Clone(), nil
}

// PreviewOutcome validates a close and returns the record it would produce,
// without saving it.
func (j *Journal) PreviewOutcome(id string, outcome models.TradeOutcome) (*models.TradeRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.closed(id, outcome)
}

// RecordOutcome moves an EXECUTED record to CLOSED, computing realized P&L,
// the realized R multiple and mistake tags.
func (j *Journal) RecordOutcome(ctx context.Context, id string, outcome models.TradeOutcome) (*models.TradeRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	next, err := j.closed(id, outcome)
	if err != nil {
		return nil, err
	}
	if err := j.backend.SaveTrade(ctx, next); err != nil {
		return nil, err
	}
	j.records[id] = next

	j.logger.Info().
		Str("trade_id", id).
		Float64("pnl", next.RealizedPnL).
		Float64("r", next.RealizedR).
		Strs("mistakes", next.MistakeTags).
		Msg("Trade closed")
	return next.Clone(), nil
}

// closed builds the CLOSED successor of an executed record. Callers hold j.mu.
func (j *Journal) closed(id string, outcome models.TradeOutcome) (*models.TradeRecord, error) {
	if math.IsNaN(outcome.ExitPrice) || math.IsInf(outcome.ExitPrice, 0) || outcome.ExitPrice <= 0 {
		return nil, errors.NewInvalidInputError("exit_price", outcome.ExitPrice, "must be positive")
	}
	if e := outcome.EmotionAfter; e != nil {
		if !e.Emotion.Valid() {
			return nil, errors.NewInvalidInputError("emotion_after", e.Emotion, "unknown emotion")
		}
		if e.Intensity < 1 || e.Intensity > 10 {
			return nil, errors.NewInvalidInputError("emotion_after.intensity", e.Intensity, "must be between 1 and 10")
		}
	}

	current, err := j.lookup(id)
	if err != nil {
		return nil, err
	}
	if current.Status != models.TradeExecuted {
		return nil, errors.NewInvalidStateTransitionError("trade", id, string(current.Status), string(models.TradeClosed))
	}

	exitTime := outcome.ExitTime
	if exitTime.IsZero() {
		exitTime = j.now()
	}
	if current.FilledAt != nil && exitTime.Before(*current.FilledAt) {
		return nil, errors.NewInvalidInputError("exit_time", exitTime, "must not precede the fill")
	}

	next := current.Clone()
	sign := next.Proposal.Direction.Sign()
	risk := math.Abs(next.Proposal.EntryPrice - next.Proposal.StopPrice)

	next.Status = models.TradeClosed
	next.ExitPrice = outcome.ExitPrice
	next.ClosedAt = &exitTime
	next.RealizedPnL = (outcome.ExitPrice - next.FillPrice) * next.Sizing.UnitSize * sign
	if risk > 0 {
		next.RealizedR = (outcome.ExitPrice - next.FillPrice) * sign / risk
	}
	next.Lessons = outcome.Lessons
	if outcome.EmotionAfter != nil {
		e := *outcome.EmotionAfter
		if e.Timestamp.IsZero() {
			e.Timestamp = exitTime
		}
		next.EmotionAfter = &e
	}
	next.MistakeTags = MistakeTags(next, outcome.MistakeTags)
	return next, nil
}

func (j *Journal) lookup(id string) (*models.TradeRecord, error) {
	r, ok := j.records[id]
	if !ok {
		return nil, fmt.Errorf("trade %s: %w", id, errors.ErrNotFound)
	}
	return r, nil
}

// Get returns a copy of one record.
func (j *Journal) Get(id string) (*models.TradeRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	r, err := j.lookup(id)
	if err != nil {
		return nil, err
	}
	return r.Clone(), nil
}

// List returns stored records matching filter, in plan order.
func (j *Journal) List(ctx context.Context, filter store.TradeFilter) ([]*models.TradeRecord, error) {
	return j.backend.ListTrades(ctx, filter)
}

// Records returns copies of every record in plan order.
func (j *Journal) Records() []*models.TradeRecord {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]*models.TradeRecord, 0, len(j.order))
	for _, id := range j.order {
		out = append(out, j.records[id].Clone())
	}
	return out
}

// Exposure sums the planned dollar risk of PLANNED and EXECUTED records.
func (j *Journal) Exposure() float64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	total := 0.0
	for _, r := range j.records {
		if r.IsOpen() {
			total += r.Sizing.DollarRisk
		}
	}
	return total
}

// ComputeStatistics folds the journal into summary statistics.
func (j *Journal) ComputeStatistics() models.JournalStatistics {
	return Statistics(j.Records())
}

// Patterns mines recurring outcome patterns from the journal.
func (j *Journal) Patterns() models.PatternReport {
	return Patterns(j.Records(), j.loc)
}

// Mistake tags applied automatically on close.
const (
	TagAnxiousEntry  = "anxious_entry"
	TagStopViolated  = "stop_violated"
	TagEarlyExit     = "early_exit"
	TagEmotionalExit = "emotional_exit"
	TagOversized     = "oversized"
)

// MistakeTags merges normalised caller tags with the tags derived from a
// closed record. Caller tags come first; duplicates are dropped.
func MistakeTags(r *models.TradeRecord, manual []string) []string {
	var tags []string
	seen := make(map[string]bool)
	add := func(tag string) {
		tag = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(tag)), " ", "_")
		if tag == "" || seen[tag] {
			return
		}
		seen[tag] = true
		tags = append(tags, tag)
	}

	for _, t := range manual {
		add(t)
	}

	sign := r.Proposal.Direction.Sign()
	if r.Psychology.Classification == models.ClassWarn {
		add(TagAnxiousEntry)
	}
	if (r.ExitPrice-r.Proposal.StopPrice)*sign < 0 {
		add(TagStopViolated)
	}
	if r.RealizedPnL > 0 && (r.Proposal.TakeProfit-r.ExitPrice)*sign > 0 {
		add(TagEarlyExit)
	}
	if r.EmotionAfter != nil {
		if check, err := psychology.Classify(r.EmotionAfter.Emotion); err == nil && check.Classification == models.ClassReject {
			add(TagEmotionalExit)
		}
	}
	if r.Validation.Modified {
		add(TagOversized)
	}
	return tags
}
