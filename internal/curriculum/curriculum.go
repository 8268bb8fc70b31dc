// Package curriculum implements the mentor: an ordered lesson cursor and the
// paper-trading record that gate live trading.
package curriculum

import (
	"context"
	_ "embed"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"trading-gate/internal/config"
	"trading-gate/internal/errors"
	"trading-gate/internal/models"
	"trading-gate/internal/store"
)

// TotalLessons is the length of the curriculum.
const TotalLessons = 42

//go:embed lessons.yaml
var catalogueYAML []byte

// Catalogue parses the embedded lesson catalogue.
func Catalogue() ([]models.Lesson, error) {
	var doc struct {
		Lessons []models.Lesson `yaml:"lessons"`
	}
	if err := yaml.Unmarshal(catalogueYAML, &doc); err != nil {
		return nil, fmt.Errorf("parsing lesson catalogue: %w", err)
	}
	if len(doc.Lessons) != TotalLessons {
		return nil, fmt.Errorf("lesson catalogue has %d lessons, want %d", len(doc.Lessons), TotalLessons)
	}
	for i := range doc.Lessons {
		doc.Lessons[i].Index = i
	}
	return doc.Lessons, nil
}

// Tracker owns the CurriculumState.
type Tracker struct {
	mu      sync.RWMutex
	backend store.StateStore
	state   *models.CurriculumState
	lessons []models.Lesson
	cfg     config.CurriculumConfig
	now     func() time.Time
	logger  zerolog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// New loads the mentor state, starting at lesson 0 when none is stored.
func New(ctx context.Context, backend store.StateStore, cfg config.CurriculumConfig, opts ...Option) (*Tracker, error) {
	lessons, err := Catalogue()
	if err != nil {
		return nil, err
	}

	t := &Tracker{
		backend: backend,
		lessons: lessons,
		cfg:     cfg.Enforced(),
		now:     time.Now,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}

	state, err := backend.GetCurriculum(ctx)
	switch {
	case err == nil:
		t.state = state
	case errors.Is(err, errors.ErrNotFound):
		t.state = &models.CurriculumState{Results: []models.LessonResult{}, UpdatedAt: t.now()}
	default:
		return nil, err
	}
	return t, nil
}

// CurrentLesson returns the index of the next unpassed lesson, or
// TotalLessons once the curriculum is complete.
func (t *Tracker) CurrentLesson() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state.NextLesson
}

// Lesson returns the catalogue entry at index.
func (t *Tracker) Lesson(index int) (models.Lesson, error) {
	if index < 0 || index >= len(t.lessons) {
		return models.Lesson{}, errors.NewInvalidInputError("lesson", index, fmt.Sprintf("must be between 0 and %d", len(t.lessons)-1))
	}
	return t.lessons[index], nil
}

// Lessons returns the full catalogue.
func (t *Tracker) Lessons() []models.Lesson {
	return append([]models.Lesson(nil), t.lessons...)
}

// CompleteLesson records a passed quiz for the current lesson and advances
// the cursor. Lessons can only be completed in order.
func (t *Tracker) CompleteLesson(ctx context.Context, index int, score float64) (models.LessonResult, error) {
	if math.IsNaN(score) || score < 0 || score > 1 {
		return models.LessonResult{}, errors.NewInvalidInputError("score", score, "must be between 0 and 1")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	current := t.state.NextLesson
	if current >= TotalLessons {
		return models.LessonResult{}, errors.NewInvalidInputError("lesson", index, "curriculum already complete")
	}
	if index != current {
		return models.LessonResult{}, errors.NewInvalidInputError("lesson", index, fmt.Sprintf("current lesson is %d", current))
	}
	if score < t.cfg.PassScore {
		return models.LessonResult{}, errors.NewQuizNotPassedError(index, score, t.cfg.PassScore)
	}

	now := t.now()
	result := models.LessonResult{Index: index, Score: score, PassedAt: now}

	next := t.state.Clone()
	next.Results = append(next.Results, result)
	next.NextLesson = current + 1
	next.UpdatedAt = now

	if err := t.backend.SaveCurriculum(ctx, next); err != nil {
		return models.LessonResult{}, err
	}
	t.state = next

	t.logger.Info().
		Int("lesson", index).
		Float64("score", score).
		Int("next", next.NextLesson).
		Msg("Lesson completed")
	return result, nil
}

// RecordPaperTrade adds a closed paper trade to the tally.
func (t *Tracker) RecordPaperTrade(ctx context.Context, won bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := t.state.Clone()
	next.PaperTrades++
	if won {
		next.PaperWins++
	}
	next.UpdatedAt = t.now()

	if err := t.backend.SaveCurriculum(ctx, next); err != nil {
		return err
	}
	t.state = next
	return nil
}

// IsLiveTradingEligible reports whether enough lessons and paper trades are
// complete. There is no override.
func (t *Tracker) IsLiveTradingEligible() bool {
	return len(t.Progress().Missing) == 0
}

// Progress summarises the mentor state and lists unmet requirements.
func (t *Tracker) Progress() models.CurriculumProgress {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := t.state
	p := models.CurriculumProgress{
		CurrentLesson:    s.NextLesson,
		TotalLessons:     TotalLessons,
		CompletedLessons: s.NextLesson,
		PaperTrades:      s.PaperTrades,
		PaperWins:        s.PaperWins,
		PaperWinRate:     s.PaperWinRate(),
	}
	if s.NextLesson < len(t.lessons) {
		p.NextTitle = t.lessons[s.NextLesson].Title
	}

	if s.NextLesson < t.cfg.MinLessons {
		p.Missing = append(p.Missing, fmt.Sprintf("complete %d more lessons", t.cfg.MinLessons-s.NextLesson))
	}
	if s.PaperTrades < t.cfg.MinPaperTrades {
		p.Missing = append(p.Missing, fmt.Sprintf("close %d more paper trades", t.cfg.MinPaperTrades-s.PaperTrades))
	}
	if s.PaperTrades == 0 || s.PaperWinRate() < t.cfg.MinPaperWinRate {
		p.Missing = append(p.Missing, fmt.Sprintf("raise paper win rate to %.0f%% (now %.0f%%)", 100*t.cfg.MinPaperWinRate, 100*s.PaperWinRate()))
	}
	p.LiveEligible = len(p.Missing) == 0
	return p
}

// State returns a copy of the mentor state.
func (t *Tracker) State() *models.CurriculumState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state.Clone()
}
