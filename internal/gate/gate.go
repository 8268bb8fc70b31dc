// Package gate is the single entry point of the trading gate. It sequences
// the psychology store, the strategy validator, the journal and the mentor
// for every request.
package gate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"trading-gate/internal/audit"
	"trading-gate/internal/config"
	"trading-gate/internal/curriculum"
	"trading-gate/internal/errors"
	"trading-gate/internal/journal"
	"trading-gate/internal/logging"
	"trading-gate/internal/models"
	"trading-gate/internal/psychology"
	"trading-gate/internal/sizing"
	"trading-gate/internal/store"
	"trading-gate/internal/strategy"
)

// Gate is the orchestrator. Writes are serialised; the dashboard takes a
// read lock.
type Gate struct {
	mu        sync.RWMutex
	cfg       *config.Config
	psych     *psychology.Store
	validator *strategy.Validator
	journal   *journal.Journal
	mentor    *curriculum.Tracker
	audit     *audit.Logger
	logger    zerolog.Logger
	now       func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides the time source of the gate and its components.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Gate) { g.logger = logger }
}

// WithAudit sets the audit log.
func WithAudit(a *audit.Logger) Option {
	return func(g *Gate) { g.audit = a }
}

// New wires the components over backend and brings the day up to date. The
// logger attached to ctx is used unless WithLogger overrides it.
func New(ctx context.Context, cfg *config.Config, backend store.StateStore, opts ...Option) (*Gate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrConfigInvalid, err)
	}
	g := &Gate{
		cfg:    cfg,
		audit:  audit.Nop(),
		logger: logging.WithComponent(logging.FromContext(ctx), "gate"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}

	loc := cfg.Location()

	psych, err := psychology.New(ctx, backend, cfg.Psychology,
		psychology.WithClock(g.now),
		psychology.WithLocation(loc),
		psychology.WithLogger(logging.WithComponent(g.logger, "psychology")))
	if err != nil {
		return nil, errors.Wrap(err, "loading psychology state")
	}

	j, err := journal.New(ctx, backend,
		journal.WithClock(g.now),
		journal.WithLocation(loc),
		journal.WithLogger(logging.WithComponent(g.logger, "journal")))
	if err != nil {
		return nil, errors.Wrap(err, "loading journal")
	}

	mentor, err := curriculum.New(ctx, backend, cfg.Curriculum,
		curriculum.WithClock(g.now),
		curriculum.WithLogger(logging.WithComponent(g.logger, "mentor")))
	if err != nil {
		return nil, errors.Wrap(err, "loading curriculum")
	}

	g.psych = psych
	g.journal = j
	g.mentor = mentor
	g.validator = strategy.NewValidator(cfg.Risk, cfg.Alignment, logging.WithComponent(g.logger, "strategy"))

	if err := g.rollover(ctx, g.now()); err != nil {
		return nil, err
	}
	return g, nil
}

// Decision is the outcome of a pre-trade check.
type Decision struct {
	Approved   bool                      `json:"approved"`
	PlanID     string                    `json:"plan_id,omitempty"`
	Sizing     *models.Sizing            `json:"sizing,omitempty"`
	Validation models.ValidationResult   `json:"validation"`
	Psychology models.PsychologySnapshot `json:"psychology"`
	Reasons    []string                  `json:"reasons,omitempty"`
	Warnings   []string                  `json:"warnings,omitempty"`
}

// CloseRequest carries the close callback for an executed trade.
type CloseRequest struct {
	ID           string                `json:"id"`
	ExitPrice    float64               `json:"exit_price"`
	ExitTime     time.Time             `json:"exit_time"`
	Lessons      string                `json:"lessons,omitempty"`
	MistakeTags  []string              `json:"mistake_tags,omitempty"`
	EmotionAfter *models.EmotionReport `json:"emotion_after,omitempty"`
}

// CloseResult reports a closed trade and its effect on the day.
type CloseResult struct {
	Record     *models.TradeRecord `json:"record"`
	Loss       bool                `json:"loss"`
	Locked     bool                `json:"locked"`
	JustLocked bool                `json:"just_locked"`
	LockReason models.LockReason   `json:"lock_reason,omitempty"`
}

// Rollover moves the psychology state to the current calendar day if needed.
func (g *Gate) Rollover(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rollover(ctx, g.now())
}

func (g *Gate) rollover(ctx context.Context, now time.Time) error {
	archived, err := g.psych.Rollover(ctx, now)
	if err != nil {
		return errors.Wrap(err, "rolling over psychology day")
	}
	if archived != nil {
		g.recordAudit(g.audit.LogRollover(ctx, archived.Date, g.psych.Snapshot().Date))
	}
	return nil
}

// PreTradeCheck validates a proposal against the day's psychology state and
// the strategy rules. Approved proposals are appended to the journal as
// PLANNED records and the emotion report joins the day's history. Rejected
// proposals change no state.
func (g *Gate) PreTradeCheck(ctx context.Context, proposal models.TradeProposal, emotion models.EmotionReport) (*Decision, error) {
	if err := strategy.CheckProposal(proposal); err != nil {
		return nil, err
	}
	if err := strategy.ValidateText("emotion.note", emotion.Note, strategy.MaxNoteLength); err != nil {
		return nil, err
	}
	if g.cfg.Account.Balance <= 0 {
		return nil, errors.NewInvalidInputError("account.balance", g.cfg.Account.Balance, "must be positive to size trades")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if err := g.rollover(ctx, now); err != nil {
		return nil, err
	}
	if proposal.ProposedAt.IsZero() {
		proposal.ProposedAt = now
	}
	if emotion.Timestamp.IsZero() {
		emotion.Timestamp = now
	}

	check, err := g.psych.PreTradeCheck(emotion)
	if err != nil {
		return nil, err
	}

	day := g.psych.Snapshot()
	snapshot := models.PsychologySnapshot{
		Date:           day.Date,
		LossCount:      day.LossCount,
		TradeCount:     day.TradeCount,
		Locked:         g.psych.IsLocked(),
		LockReason:     day.LockReason,
		Emotion:        emotion,
		Classification: check.Classification,
		Reason:         check.Reason,
		FlagPattern:    check.FlagPattern,
	}

	validation := g.validator.Validate(strategy.Input{
		Proposal:     proposal,
		Balance:      g.cfg.Account.Balance,
		Psychology:   snapshot,
		OpenExposure: g.journal.Exposure(),
	})
	g.applyEligibility(proposal, &validation)

	decision := &Decision{
		Approved:   validation.Approved,
		Validation: validation,
		Psychology: snapshot,
		Warnings:   validation.Warnings,
	}
	if validation.Sizing != nil {
		s := sizing.Rounded(*validation.Sizing)
		decision.Sizing = &s
	}
	for _, c := range validation.FailedChecks() {
		decision.Reasons = append(decision.Reasons, fmt.Sprintf("%s: %s", c.Name, c.Reason))
	}

	if !decision.Approved {
		if check.FlagPattern {
			logging.LogPattern(g.logger, proposal.Symbol, string(emotion.Emotion), emotion.Intensity)
			g.recordAudit(g.audit.LogPattern(ctx, proposal.Symbol, string(emotion.Emotion), emotion.Intensity))
		}
		logging.LogDecision(g.logger, proposal.Symbol, false, "", decision.Reasons)
		g.recordAudit(g.audit.LogDecision(ctx, proposal.Symbol, "", false, decision.Reasons))
		return decision, nil
	}

	record, err := g.journal.CreatePlan(ctx, proposal, validation, snapshot)
	if err != nil {
		return nil, err
	}
	if err := g.psych.ReportEmotion(ctx, emotion); err != nil {
		return nil, errors.Wrapf(err, "plan %s recorded but emotion report not saved", record.ID)
	}

	decision.PlanID = record.ID
	logging.LogDecision(g.logger, proposal.Symbol, true, record.ID, nil)
	g.recordAudit(g.audit.LogDecision(ctx, proposal.Symbol, record.ID, true, nil))
	return decision, nil
}

// applyEligibility rejects live proposals until the mentor reports
// eligibility, when enforcement is configured.
func (g *Gate) applyEligibility(proposal models.TradeProposal, v *models.ValidationResult) {
	if !g.cfg.Curriculum.EnforceLiveEligibility || proposal.Paper || !v.Approved {
		return
	}
	progress := g.mentor.Progress()
	if progress.LiveEligible {
		v.Checks = append(v.Checks, models.CheckResult{
			Name:   models.CheckLiveEligibility,
			Passed: true,
			Reason: "curriculum requirements met",
		})
		return
	}
	v.Approved = false
	v.Checks = append(v.Checks, models.CheckResult{
		Name:   models.CheckLiveEligibility,
		Code:   models.CodeNotEligible,
		Reason: fmt.Sprintf("live trading locked: %v", progress.Missing),
	})
}

// ExecuteTrade records the fill of a planned trade.
func (g *Gate) ExecuteTrade(ctx context.Context, id string, fillPrice float64, fillTime time.Time) (*models.TradeRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.rollover(ctx, g.now()); err != nil {
		return nil, err
	}

	record, err := g.journal.RecordExecution(ctx, id, fillPrice, fillTime)
	if err != nil {
		return nil, err
	}

	logging.LogTransition(logging.WithTrade(g.logger, id), id, string(models.TradePlanned), string(models.TradeExecuted))
	g.recordAudit(g.audit.LogExecution(ctx, id, record.Proposal.Symbol, fillPrice))
	return record, nil
}

// CloseTrade records the outcome of an executed trade and feeds it to the
// psychology store and, for paper trades, the mentor. A negative P&L counts
// as a loss; zero and positive count as wins.
func (g *Gate) CloseTrade(ctx context.Context, req CloseRequest) (*CloseResult, error) {
	if err := strategy.ValidateText("lessons", req.Lessons, strategy.MaxNoteLength); err != nil {
		return nil, err
	}
	if err := strategy.ValidateTags(req.MistakeTags); err != nil {
		return nil, err
	}
	if req.EmotionAfter != nil {
		if err := strategy.ValidateText("emotion_after.note", req.EmotionAfter.Note, strategy.MaxNoteLength); err != nil {
			return nil, err
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.rollover(ctx, g.now()); err != nil {
		return nil, err
	}

	outcome := models.TradeOutcome{
		ExitPrice:    req.ExitPrice,
		ExitTime:     req.ExitTime,
		Lessons:      req.Lessons,
		MistakeTags:  req.MistakeTags,
		EmotionAfter: req.EmotionAfter,
	}
	preview, err := g.journal.PreviewOutcome(req.ID, outcome)
	if err != nil {
		return nil, err
	}

	// The day is charged before the record closes. A failed save leaves the
	// trade EXECUTED with the loss already counted.
	loss := preview.RealizedPnL < 0
	var justLocked bool
	if loss {
		justLocked, err = g.psych.RecordLoss(ctx)
	} else {
		justLocked, err = g.psych.RecordWin(ctx)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "trade %s not closed", req.ID)
	}
	day := g.psych.Snapshot()
	if justLocked {
		g.recordAudit(g.audit.LogLockout(ctx, day.Date, string(day.LockReason), day.LossCount, day.TradeCount))
	}

	record, err := g.journal.RecordOutcome(ctx, req.ID, outcome)
	if err != nil {
		return nil, errors.Wrapf(err, "trade %s counted in psychology state but not closed", req.ID)
	}
	logging.LogTransition(logging.WithTrade(g.logger, req.ID), req.ID, string(models.TradeExecuted), string(models.TradeClosed))
	g.recordAudit(g.audit.LogClose(ctx, record.ID, record.Proposal.Symbol, record.ExitPrice, record.RealizedPnL, record.RealizedR))

	result := &CloseResult{
		Record:     record,
		Loss:       loss,
		Locked:     g.psych.IsLocked(),
		JustLocked: justLocked,
		LockReason: day.LockReason,
	}

	if record.Paper {
		if err := g.mentor.RecordPaperTrade(ctx, !result.Loss); err != nil {
			return nil, errors.Wrapf(err, "trade %s closed but paper tally not updated", record.ID)
		}
	}

	if req.EmotionAfter != nil {
		if err := g.psych.ReportEmotion(ctx, *record.EmotionAfter); err != nil {
			return nil, errors.Wrapf(err, "trade %s closed but emotion report not saved", record.ID)
		}
	}

	return result, nil
}

// ReportEmotion appends an emotion report to the current day.
func (g *Gate) ReportEmotion(ctx context.Context, report models.EmotionReport) error {
	if err := strategy.ValidateText("note", report.Note, strategy.MaxNoteLength); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if err := g.rollover(ctx, now); err != nil {
		return err
	}
	if report.Timestamp.IsZero() {
		report.Timestamp = now
	}
	return g.psych.ReportEmotion(ctx, report)
}

// CompleteLesson records a quiz result with the mentor.
func (g *Gate) CompleteLesson(ctx context.Context, index int, score float64) (models.LessonResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	result, err := g.mentor.CompleteLesson(ctx, index, score)
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	g.recordAudit(g.audit.LogLesson(ctx, index, score, err == nil, msg))
	return result, err
}

func (g *Gate) recordAudit(err error) {
	if err != nil {
		g.logger.Error().Err(err).Msg("Failed to write audit event")
	}
}
