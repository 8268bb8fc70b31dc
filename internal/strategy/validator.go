// Package strategy validates trade proposals against the discipline rules.
package strategy

import (
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"trading-gate/internal/config"
	"trading-gate/internal/errors"
	"trading-gate/internal/models"
	"trading-gate/internal/sizing"
)

// tolerance absorbs float noise at inclusive boundaries such as R:R 2.0.
const tolerance = 1e-9

// Input is everything a validation needs. The validator never reads state
// on its own.
type Input struct {
	Proposal     models.TradeProposal
	Balance      float64
	Psychology   models.PsychologySnapshot
	OpenExposure float64 // dollar risk of planned and executed trades
}

// Validator runs the ordered validation checks.
type Validator struct {
	risk             config.RiskConfig
	pairs            map[models.Trend]map[models.Setup]bool
	requireDirection bool
	logger           zerolog.Logger
}

// NewValidator creates a validator from the risk and alignment configuration.
func NewValidator(risk config.RiskConfig, alignment config.AlignmentConfig, logger zerolog.Logger) *Validator {
	pairs := make(map[models.Trend]map[models.Setup]bool)
	for trend, setups := range alignment.Pairs {
		// viper lowercases map keys
		t := models.Trend(strings.ToUpper(trend))
		if pairs[t] == nil {
			pairs[t] = make(map[models.Setup]bool)
		}
		for _, setup := range setups {
			pairs[t][models.Setup(strings.ToUpper(setup))] = true
		}
	}

	return &Validator{
		risk:             risk,
		pairs:            pairs,
		requireDirection: alignment.RequireDirectionMatch,
		logger:           logger,
	}
}

// Compatible reports whether a trend/setup pair is in the configured set.
func (v *Validator) Compatible(trend models.Trend, setup models.Setup) bool {
	return v.pairs[trend][setup]
}

// CheckProposal rejects malformed proposals. Rule violations are reported by
// Validate instead.
func CheckProposal(p models.TradeProposal) error {
	if err := ValidateSymbol(p.Symbol); err != nil {
		return err
	}
	if !p.Direction.Valid() {
		return errors.NewInvalidInputError("direction", p.Direction, "must be LONG or SHORT")
	}
	if !finite(p.EntryPrice) || p.EntryPrice <= 0 {
		return errors.NewInvalidInputError("entry_price", p.EntryPrice, "must be positive")
	}
	if !finite(p.StopPrice) || p.StopPrice < 0 {
		return errors.NewInvalidInputError("stop_price", p.StopPrice, "must not be negative")
	}
	if !finite(p.TakeProfit) || p.TakeProfit < 0 {
		return errors.NewInvalidInputError("take_profit", p.TakeProfit, "must not be negative")
	}
	if !finite(p.PositionSize) || p.PositionSize < 0 {
		return errors.NewInvalidInputError("position_size", p.PositionSize, "must not be negative")
	}
	if err := ValidateRef(p.ClientRef); err != nil {
		return err
	}
	if err := ValidateText("notes", p.Notes, MaxNoteLength); err != nil {
		return err
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

type check func(in Input, res *models.ValidationResult) models.CheckResult

// Validate evaluates the checks in order and stops at the first failure.
// All evaluated checks are recorded in the result.
func (v *Validator) Validate(in Input) models.ValidationResult {
	res := models.ValidationResult{Checks: make([]models.CheckResult, 0, 7)}

	checks := []check{
		v.checkPsychology,
		v.checkAlignment,
		v.checkStopLoss,
		v.checkRiskBound,
		v.checkRewardRatio,
		v.checkExposure,
		v.checkConfluence,
	}

	for _, c := range checks {
		result := c(in, &res)
		res.Checks = append(res.Checks, result)
		if !result.Passed {
			v.logger.Debug().
				Str("symbol", in.Proposal.Symbol).
				Str("check", string(result.Name)).
				Str("code", result.Code).
				Msg(result.Reason)
			return res
		}
	}

	res.Approved = true
	return res
}

func pass(name models.CheckName, format string, args ...interface{}) models.CheckResult {
	return models.CheckResult{Name: name, Passed: true, Reason: fmt.Sprintf(format, args...)}
}

func fail(name models.CheckName, code, format string, args ...interface{}) models.CheckResult {
	return models.CheckResult{Name: name, Code: code, Reason: fmt.Sprintf(format, args...)}
}

func (v *Validator) checkPsychology(in Input, res *models.ValidationResult) models.CheckResult {
	psych := in.Psychology
	if psych.Locked {
		return fail(models.CheckPsychology, models.CodeLockout,
			"trading locked for %s (%s): %d losses, %d trades", psych.Date, psych.LockReason, psych.LossCount, psych.TradeCount)
	}
	switch psych.Classification {
	case models.ClassReject:
		return fail(models.CheckPsychology, models.CodeEmotion, "emotion %s: %s", psych.Emotion.Emotion, psych.Reason)
	case models.ClassWarn:
		res.Warnings = append(res.Warnings, fmt.Sprintf("emotion %s: %s", psych.Emotion.Emotion, psych.Reason))
	}
	return pass(models.CheckPsychology, "not locked, emotion %s", psych.Emotion.Emotion)
}

func (v *Validator) checkAlignment(in Input, _ *models.ValidationResult) models.CheckResult {
	p := in.Proposal
	if !v.Compatible(p.Trend, p.Setup) {
		return fail(models.CheckAlignment, models.CodeMisaligned,
			"setup %s is not compatible with %s higher-timeframe trend", p.Setup, p.Trend)
	}
	if v.requireDirection && p.Setup.Bias() != p.Direction {
		return fail(models.CheckAlignment, models.CodeMisaligned,
			"%s setup does not support a %s trade", p.Setup, p.Direction)
	}
	return pass(models.CheckAlignment, "%s setup aligned with %s trend", p.Setup, p.Trend)
}

func (v *Validator) checkStopLoss(in Input, _ *models.ValidationResult) models.CheckResult {
	p := in.Proposal
	if p.StopPrice == 0 {
		return fail(models.CheckStopLoss, models.CodeNoStop, "no stop-loss defined")
	}
	sign := p.Direction.Sign()
	if (p.EntryPrice-p.StopPrice)*sign <= 0 {
		return fail(models.CheckStopLoss, models.CodeBadLevels,
			"stop %.8g is on the wrong side of entry %.8g for a %s", p.StopPrice, p.EntryPrice, p.Direction)
	}
	if p.TakeProfit == 0 {
		return fail(models.CheckStopLoss, models.CodeBadLevels, "no take-profit defined")
	}
	if (p.TakeProfit-p.EntryPrice)*sign <= 0 {
		return fail(models.CheckStopLoss, models.CodeBadLevels,
			"take-profit %.8g is on the wrong side of entry %.8g for a %s", p.TakeProfit, p.EntryPrice, p.Direction)
	}
	return pass(models.CheckStopLoss, "stop %.8g and target %.8g bracket entry %.8g", p.StopPrice, p.TakeProfit, p.EntryPrice)
}

func (v *Validator) checkRiskBound(in Input, res *models.ValidationResult) models.CheckResult {
	p := in.Proposal

	if p.PositionSize == 0 {
		s, err := sizing.Calculate(in.Balance, v.risk.DefaultRiskFraction, p.EntryPrice, p.StopPrice)
		if err != nil {
			return fail(models.CheckRiskBound, models.CodeRiskTooHigh, "cannot size position: %v", err)
		}
		res.Sizing = &s
		res.RiskFraction = s.RiskFraction
		return pass(models.CheckRiskBound, "default risk %.2f%% of balance ($%.2f)", 100*s.RiskFraction, sizing.RoundCents(s.DollarRisk))
	}

	declared, err := sizing.Declared(in.Balance, p.PositionSize, p.EntryPrice, p.StopPrice)
	if err != nil {
		return fail(models.CheckRiskBound, models.CodeRiskTooHigh, "cannot size position: %v", err)
	}
	res.RiskFraction = declared.RiskFraction

	if declared.RiskFraction > config.HardMaxRiskFraction+tolerance {
		res.Sizing = &declared
		return fail(models.CheckRiskBound, models.CodeRiskTooHigh,
			"declared size risks %.2f%% of balance, above the %.0f%% cap", 100*declared.RiskFraction, 100*config.HardMaxRiskFraction)
	}

	if declared.RiskFraction > v.risk.MaxRiskFraction+tolerance {
		if v.risk.SizePolicy != config.SizePolicyClamp {
			res.Sizing = &declared
			return fail(models.CheckRiskBound, models.CodeSizeMismatch,
				"declared size risks %.2f%% of balance, above the configured %.2f%%", 100*declared.RiskFraction, 100*v.risk.MaxRiskFraction)
		}
		clamped, err := sizing.Calculate(in.Balance, v.risk.MaxRiskFraction, p.EntryPrice, p.StopPrice)
		if err != nil {
			return fail(models.CheckRiskBound, models.CodeRiskTooHigh, "cannot size position: %v", err)
		}
		clamped.Declared = true
		res.Sizing = &clamped
		res.RiskFraction = clamped.RiskFraction
		res.Modified = true
		res.Warnings = append(res.Warnings, fmt.Sprintf("declared size %.8g clamped to %.8g units", p.PositionSize, clamped.UnitSize))
		return pass(models.CheckRiskBound, "risk clamped to %.2f%% of balance", 100*clamped.RiskFraction)
	}

	res.Sizing = &declared
	return pass(models.CheckRiskBound, "declared risk %.2f%% of balance ($%.2f)", 100*declared.RiskFraction, sizing.RoundCents(declared.DollarRisk))
}

func (v *Validator) checkRewardRatio(in Input, res *models.ValidationResult) models.CheckResult {
	p := in.Proposal
	ratio, err := sizing.RewardRiskRatio(p.EntryPrice, p.StopPrice, p.TakeProfit)
	if err != nil {
		return fail(models.CheckRewardRatio, models.CodeLowReward, "cannot compute reward ratio: %v", err)
	}
	res.RewardRatio = ratio
	if ratio+tolerance < v.risk.MinRewardRatio {
		return fail(models.CheckRewardRatio, models.CodeLowReward, "reward:risk %.2f below minimum %.2f", ratio, v.risk.MinRewardRatio)
	}
	return pass(models.CheckRewardRatio, "reward:risk %.2f", ratio)
}

func (v *Validator) checkExposure(in Input, res *models.ValidationResult) models.CheckResult {
	limit := v.risk.MaxExposureFraction * in.Balance
	total := in.OpenExposure + res.Sizing.DollarRisk
	if total > limit+tolerance {
		return fail(models.CheckExposure, models.CodeExposure,
			"open risk $%.2f + $%.2f exceeds %.0f%% of balance ($%.2f)",
			in.OpenExposure, res.Sizing.DollarRisk, 100*v.risk.MaxExposureFraction, limit)
	}
	return pass(models.CheckExposure, "total open risk $%.2f within $%.2f", total, limit)
}

func (v *Validator) checkConfluence(in Input, _ *models.ValidationResult) models.CheckResult {
	active := in.Proposal.ActiveConfluences()
	if active < v.risk.MinConfluences {
		return fail(models.CheckConfluence, models.CodeConfluence,
			"%d of %d confluences met, %d required", active, len(in.Proposal.Confluences), v.risk.MinConfluences)
	}
	return pass(models.CheckConfluence, "%d of %d confluences met", active, len(in.Proposal.Confluences))
}
