// Package psychology tracks the per-day discipline state: loss and trade
// counts, the emotion history and the one-way lockout.
package psychology

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"trading-gate/internal/config"
	"trading-gate/internal/errors"
	"trading-gate/internal/logging"
	"trading-gate/internal/models"
	"trading-gate/internal/store"
)

var classifications = map[models.Emotion]struct {
	class  models.Classification
	reason string
	flag   bool
}{
	models.EmotionConfident: {models.ClassProceed, "confident: clear to trade", false},
	models.EmotionNeutral:   {models.ClassProceed, "neutral: clear to trade", false},
	models.EmotionAnxious:   {models.ClassWarn, "anxious: proceed with caution and smaller size", false},
	models.EmotionFear:      {models.ClassReject, "fear distorts exits; stand aside", false},
	models.EmotionGreed:     {models.ClassReject, "greed leads to oversizing; stand aside", false},
	models.EmotionHope:      {models.ClassReject, "hope is not a plan; stand aside", false},
	models.EmotionRevenge:   {models.ClassReject, "revenge trading after a loss", true},
	models.EmotionFOMO:      {models.ClassReject, "fear of missing out; chasing price", true},
}

// Classify maps an emotion to its fixed pre-trade classification.
func Classify(e models.Emotion) (models.EmotionCheck, error) {
	c, ok := classifications[e]
	if !ok {
		return models.EmotionCheck{}, errors.NewInvalidInputError("emotion", e, "unknown emotion")
	}
	return models.EmotionCheck{
		Emotion:        e,
		Classification: c.class,
		Reason:         c.reason,
		FlagPattern:    c.flag,
	}, nil
}

// Store holds the current day's DailyPsychologyState. Every mutation is
// persisted before it becomes visible.
type Store struct {
	mu            sync.RWMutex
	backend       store.StateStore
	current       *models.DailyPsychologyState
	lossLockout   int
	dailyTradeCap int
	loc           *time.Location
	now           func() time.Time
	logger        zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLocation sets the calendar-day boundary.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) { s.loc = loc }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New loads the current day from backend, starting a fresh day when none is
// stored. Rollover must be called to move to a later date.
func New(ctx context.Context, backend store.StateStore, cfg config.PsychologyConfig, opts ...Option) (*Store, error) {
	s := &Store{
		backend:       backend,
		lossLockout:   cfg.LossLockout,
		dailyTradeCap: cfg.DailyTradeCap,
		loc:           time.UTC,
		now:           time.Now,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.lossLockout <= 0 || s.lossLockout > config.HardLossLockout {
		s.lossLockout = config.HardLossLockout
	}

	current, err := backend.CurrentDay(ctx)
	switch {
	case err == nil:
		s.current = current
	case errors.Is(err, errors.ErrNotFound):
		now := s.now()
		fresh := models.NewDailyPsychologyState(s.dateOf(now), now)
		if err := backend.SaveDay(ctx, fresh); err != nil {
			return nil, err
		}
		s.current = fresh
	default:
		return nil, err
	}

	return s, nil
}

func (s *Store) dateOf(t time.Time) string {
	return t.In(s.loc).Format(models.DateLayout)
}

// Rollover archives the current day and starts a fresh one when now falls on
// a later calendar date. It returns the archived day, or nil when the date is
// unchanged.
func (s *Store) Rollover(ctx context.Context, now time.Time) (*models.DailyPsychologyState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	date := s.dateOf(now)
	if date <= s.current.Date {
		return nil, nil
	}

	archived := s.current.Clone()
	archived.Archived = true
	archived.UpdatedAt = now
	if err := s.backend.SaveDay(ctx, archived); err != nil {
		return nil, err
	}

	fresh := models.NewDailyPsychologyState(date, now)
	if err := s.backend.SaveDay(ctx, fresh); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("from", archived.Date).
		Str("to", date).
		Msg("Psychology day rolled over")

	s.current = fresh
	return archived, nil
}

// ReportEmotion appends an emotion report to the day's history.
func (s *Store) ReportEmotion(ctx context.Context, report models.EmotionReport) error {
	if err := validateReport(report); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if report.Timestamp.IsZero() {
		report.Timestamp = s.now()
	}

	next := s.current.Clone()
	next.Emotions = append(next.Emotions, report)
	next.Dominant = models.DominantEmotion(next.Emotions)
	next.UpdatedAt = s.now()

	if err := s.backend.SaveDay(ctx, next); err != nil {
		return err
	}
	s.current = next
	return nil
}

// PreTradeCheck classifies an emotion report without changing state.
func (s *Store) PreTradeCheck(report models.EmotionReport) (models.EmotionCheck, error) {
	if err := validateReport(report); err != nil {
		return models.EmotionCheck{}, err
	}
	return Classify(report.Emotion)
}

// RecordLoss counts a losing trade. It reports whether this call locked the day.
func (s *Store) RecordLoss(ctx context.Context) (bool, error) {
	return s.record(ctx, true)
}

// RecordWin counts a non-losing trade. It reports whether this call locked
// the day.
func (s *Store) RecordWin(ctx context.Context) (bool, error) {
	return s.record(ctx, false)
}

func (s *Store) record(ctx context.Context, loss bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	next := s.current.Clone()
	next.TradeCount++
	if loss {
		next.LossCount++
	}
	next.UpdatedAt = now

	justLocked := false
	if !next.Locked {
		switch {
		case next.LossCount >= s.lossLockout:
			next.Locked, next.LockReason, justLocked = true, models.LockLossStreak, true
		case next.TradeCount >= s.dailyTradeCap:
			next.Locked, next.LockReason, justLocked = true, models.LockTradeCap, true
		}
		if justLocked {
			next.LockedAt = &now
		}
	}

	if err := s.backend.SaveDay(ctx, next); err != nil {
		return false, err
	}
	s.current = next

	if justLocked {
		logging.LogLockout(s.logger, next.Date, string(next.LockReason), next.LossCount, next.TradeCount)
	}
	return justLocked, nil
}

// IsLocked reports whether trading is locked for the current day.
func (s *Store) IsLocked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Locked || s.current.LossCount >= s.lossLockout || s.current.TradeCount >= s.dailyTradeCap
}

// Snapshot returns a copy of the current day.
func (s *Store) Snapshot() *models.DailyPsychologyState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// History returns archived days, newest first.
func (s *Store) History(ctx context.Context, limit int) ([]*models.DailyPsychologyState, error) {
	return s.backend.ListDays(ctx, store.DayFilter{ArchivedOnly: true, Limit: limit})
}

// Limits returns the configured loss lockout and daily trade cap.
func (s *Store) Limits() (lossLockout, dailyTradeCap int) {
	return s.lossLockout, s.dailyTradeCap
}

func validateReport(report models.EmotionReport) error {
	if !report.Emotion.Valid() {
		return errors.NewInvalidInputError("emotion", report.Emotion, "unknown emotion")
	}
	if report.Intensity < 1 || report.Intensity > 10 {
		return errors.NewInvalidInputError("intensity", report.Intensity, "must be between 1 and 10")
	}
	return nil
}
