package models

import "time"

// TradeStatus is the lifecycle position of a TradeRecord.
type TradeStatus string

const (
	TradePlanned  TradeStatus = "PLANNED"
	TradeExecuted TradeStatus = "EXECUTED"
	TradeClosed   TradeStatus = "CLOSED"
)

// CheckName labels a strategy validation rule.
type CheckName string

const (
	CheckPsychology      CheckName = "psychology_gate"
	CheckAlignment       CheckName = "timeframe_alignment"
	CheckStopLoss        CheckName = "stop_loss"
	CheckRiskBound       CheckName = "risk_bound"
	CheckRewardRatio     CheckName = "reward_ratio"
	CheckExposure        CheckName = "exposure_cap"
	CheckConfluence      CheckName = "confluence_count"
	CheckLiveEligibility CheckName = "live_eligibility"
)

// Rejection codes surfaced alongside check reasons.
const (
	CodeLockout      = "LOCKOUT"
	CodeEmotion      = "EMOTION"
	CodeMisaligned   = "MISALIGNED"
	CodeNoStop       = "NO_STOP"
	CodeBadLevels    = "BAD_LEVELS"
	CodeRiskTooHigh  = "RISK_TOO_HIGH"
	CodeSizeMismatch = "SIZE_MISMATCH"
	CodeLowReward    = "LOW_REWARD"
	CodeExposure     = "EXPOSURE"
	CodeConfluence   = "CONFLUENCE"
	CodeNotEligible  = "NOT_ELIGIBLE"
)

// Sizing is the position size derived for a proposal.
type Sizing struct {
	UnitSize     float64 `json:"unit_size"`
	DollarRisk   float64 `json:"dollar_risk"`
	RiskFraction float64 `json:"risk_fraction"`
	Declared     bool    `json:"declared,omitempty"`
}

// CheckResult is the outcome of a single validation rule.
type CheckResult struct {
	Name   CheckName `json:"name"`
	Passed bool      `json:"passed"`
	Code   string    `json:"code,omitempty"`
	Reason string    `json:"reason"`
}

// ValidationResult is the full strategy validation outcome.
type ValidationResult struct {
	Approved     bool          `json:"approved"`
	Checks       []CheckResult `json:"checks"`
	Sizing       *Sizing       `json:"sizing,omitempty"`
	RiskFraction float64       `json:"risk_fraction"`
	RewardRatio  float64       `json:"reward_ratio"`
	Modified     bool          `json:"modified,omitempty"`
	Warnings     []string      `json:"warnings,omitempty"`
}

// FailedChecks returns the failed checks in evaluation order.
func (v ValidationResult) FailedChecks() []CheckResult {
	var failed []CheckResult
	for _, c := range v.Checks {
		if !c.Passed {
			failed = append(failed, c)
		}
	}
	return failed
}

// Check returns the result for a named check, if it was evaluated.
func (v ValidationResult) Check(name CheckName) (CheckResult, bool) {
	for _, c := range v.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return CheckResult{}, false
}

// Clone returns a deep copy.
func (v ValidationResult) Clone() ValidationResult {
	out := v
	out.Checks = append([]CheckResult(nil), v.Checks...)
	out.Warnings = append([]string(nil), v.Warnings...)
	if v.Sizing != nil {
		s := *v.Sizing
		out.Sizing = &s
	}
	return out
}

// PsychologySnapshot captures the psychology state at proposal time.
type PsychologySnapshot struct {
	Date           string         `json:"date"`
	LossCount      int            `json:"loss_count"`
	TradeCount     int            `json:"trade_count"`
	Locked         bool           `json:"locked"`
	LockReason     LockReason     `json:"lock_reason,omitempty"`
	Emotion        EmotionReport  `json:"emotion"`
	Classification Classification `json:"classification"`
	Reason         string         `json:"reason,omitempty"`
	FlagPattern    bool           `json:"flag_pattern,omitempty"`
}

// TradeOutcome carries the close callback data.
type TradeOutcome struct {
	ExitPrice    float64        `json:"exit_price"`
	ExitTime     time.Time      `json:"exit_time"`
	Lessons      string         `json:"lessons,omitempty"`
	MistakeTags  []string       `json:"mistake_tags,omitempty"`
	EmotionAfter *EmotionReport `json:"emotion_after,omitempty"`
}

// TradeRecord is the journal's append-only record of one planned trade.
type TradeRecord struct {
	ID           string             `json:"id"`
	LogicalKey   string             `json:"logical_key"`
	Status       TradeStatus        `json:"status"`
	Paper        bool               `json:"paper"`
	Proposal     TradeProposal      `json:"proposal"`
	Validation   ValidationResult   `json:"validation"`
	Psychology   PsychologySnapshot `json:"psychology"`
	Sizing       Sizing             `json:"sizing"`
	PlannedAt    time.Time          `json:"planned_at"`
	FillPrice    float64            `json:"fill_price,omitempty"`
	FilledAt     *time.Time         `json:"filled_at,omitempty"`
	ExitPrice    float64            `json:"exit_price,omitempty"`
	ClosedAt     *time.Time         `json:"closed_at,omitempty"`
	RealizedPnL  float64            `json:"realized_pnl"`
	RealizedR    float64            `json:"realized_r"`
	Lessons      string             `json:"lessons,omitempty"`
	MistakeTags  []string           `json:"mistake_tags,omitempty"`
	EmotionAfter *EmotionReport     `json:"emotion_after,omitempty"`
}

// IsOpen reports whether the record still carries risk.
func (r *TradeRecord) IsOpen() bool {
	return r.Status == TradePlanned || r.Status == TradeExecuted
}

// Won reports whether a closed record finished in profit.
func (r *TradeRecord) Won() bool {
	return r.Status == TradeClosed && r.RealizedPnL > 0
}

// Lost reports whether a closed record finished in a loss.
func (r *TradeRecord) Lost() bool {
	return r.Status == TradeClosed && r.RealizedPnL < 0
}

// Clone returns a deep copy.
func (r *TradeRecord) Clone() *TradeRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Proposal = r.Proposal.Clone()
	out.Validation = r.Validation.Clone()
	out.MistakeTags = append([]string(nil), r.MistakeTags...)
	if r.FilledAt != nil {
		t := *r.FilledAt
		out.FilledAt = &t
	}
	if r.ClosedAt != nil {
		t := *r.ClosedAt
		out.ClosedAt = &t
	}
	if r.EmotionAfter != nil {
		e := *r.EmotionAfter
		out.EmotionAfter = &e
	}
	return &out
}
