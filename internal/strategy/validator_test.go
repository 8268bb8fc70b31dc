package strategy

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-gate/internal/config"
	"trading-gate/internal/errors"
	"trading-gate/internal/models"
)

const balance = 6167.43

func newValidator(mutate ...func(*config.Config)) *Validator {
	cfg := config.Default("")
	for _, m := range mutate {
		m(cfg)
	}
	return NewValidator(cfg.Risk, cfg.Alignment, zerolog.Nop())
}

func baseInput() Input {
	return Input{
		Proposal: models.TradeProposal{
			Symbol:     "BTC-USD",
			Direction:  models.DirectionLong,
			EntryPrice: 43000,
			StopPrice:  41000,
			TakeProfit: 47000, // exactly 2R
			Trend:      models.TrendBullish,
			Setup:      models.SetupBullishPullback,
			Confluences: []models.Confluence{
				models.BoolConfluence("ema_stack", true),
				models.NumericConfluence("rsi", 58, 50, false),
				models.BoolConfluence("volume_expansion", true),
			},
		},
		Balance: balance,
		Psychology: models.PsychologySnapshot{
			Date:           "2024-06-03",
			Emotion:        models.EmotionReport{Emotion: models.EmotionNeutral, Intensity: 3},
			Classification: models.ClassProceed,
		},
	}
}

func names(checks []models.CheckResult) []models.CheckName {
	out := make([]models.CheckName, len(checks))
	for i, c := range checks {
		out[i] = c.Name
	}
	return out
}

var allChecks = []models.CheckName{
	models.CheckPsychology,
	models.CheckAlignment,
	models.CheckStopLoss,
	models.CheckRiskBound,
	models.CheckRewardRatio,
	models.CheckExposure,
	models.CheckConfluence,
}

func TestValidateApprovesExactlyTwoR(t *testing.T) {
	res := newValidator().Validate(baseInput())

	require.True(t, res.Approved, "%+v", res.FailedChecks())
	assert.Equal(t, allChecks, names(res.Checks))
	assert.Empty(t, res.FailedChecks())
	assert.Equal(t, 2.0, res.RewardRatio)
	assert.Equal(t, 0.01, res.RiskFraction)
	require.NotNil(t, res.Sizing)
	assert.InDelta(t, 61.6743, res.Sizing.DollarRisk, 1e-9)
	assert.False(t, res.Modified)
}

func TestValidateMaxRiskWorkedExample(t *testing.T) {
	in := baseInput()
	in.Proposal.PositionSize = balance * 0.02 / 2000
	res := newValidator().Validate(in)

	require.True(t, res.Approved)
	assert.InDelta(t, 0.02, res.RiskFraction, 1e-12)
	assert.InDelta(t, 123.35, res.Sizing.DollarRisk, 0.005)
	assert.InDelta(t, 0.0617, res.Sizing.UnitSize, 0.0001)
	assert.True(t, res.Sizing.Declared)
}

func TestValidateConfluenceShortfall(t *testing.T) {
	in := baseInput()
	in.Proposal.Confluences[2].Met = false

	res := newValidator().Validate(in)
	require.False(t, res.Approved)
	assert.Equal(t, allChecks, names(res.Checks))

	failed := res.FailedChecks()
	require.Len(t, failed, 1)
	assert.Equal(t, models.CheckConfluence, failed[0].Name)
	assert.Equal(t, models.CodeConfluence, failed[0].Code)
	for _, c := range res.Checks[:6] {
		assert.True(t, c.Passed, c.Name)
	}
}

func TestValidateShortCircuits(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Input)
		failAt models.CheckName
		code   string
	}{
		{"locked day", func(in *Input) {
			in.Psychology.Locked = true
			in.Psychology.LockReason = models.LockLossStreak
		}, models.CheckPsychology, models.CodeLockout},
		{"rejected emotion", func(in *Input) {
			in.Psychology.Emotion.Emotion = models.EmotionRevenge
			in.Psychology.Classification = models.ClassReject
		}, models.CheckPsychology, models.CodeEmotion},
		{"incompatible pair", func(in *Input) {
			in.Proposal.Trend = models.TrendBearish
		}, models.CheckAlignment, models.CodeMisaligned},
		{"setup against direction", func(in *Input) {
			in.Proposal.Trend = models.TrendRanging
			in.Proposal.Setup = models.SetupRangeResistance
		}, models.CheckAlignment, models.CodeMisaligned},
		{"missing stop", func(in *Input) {
			in.Proposal.StopPrice = 0
		}, models.CheckStopLoss, models.CodeNoStop},
		{"stop above long entry", func(in *Input) {
			in.Proposal.StopPrice = 44000
		}, models.CheckStopLoss, models.CodeBadLevels},
		{"target below long entry", func(in *Input) {
			in.Proposal.TakeProfit = 42000
		}, models.CheckStopLoss, models.CodeBadLevels},
		{"declared risk above cap", func(in *Input) {
			in.Proposal.PositionSize = balance * 0.03 / 2000
		}, models.CheckRiskBound, models.CodeRiskTooHigh},
		{"reward below 2R", func(in *Input) {
			in.Proposal.TakeProfit = 46999
		}, models.CheckRewardRatio, models.CodeLowReward},
		{"exposure above cap", func(in *Input) {
			in.OpenExposure = 600
		}, models.CheckExposure, models.CodeExposure},
	}

	v := newValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseInput()
			tt.mutate(&in)
			res := v.Validate(in)

			require.False(t, res.Approved)
			last := res.Checks[len(res.Checks)-1]
			assert.Equal(t, tt.failAt, last.Name)
			assert.Equal(t, tt.code, last.Code)
			assert.False(t, last.Passed)
			assert.Len(t, res.FailedChecks(), 1)
		})
	}
}

func TestValidateShortTrade(t *testing.T) {
	in := baseInput()
	in.Proposal.Direction = models.DirectionShort
	in.Proposal.Trend = models.TrendBearish
	in.Proposal.Setup = models.SetupBearishBreakdown
	in.Proposal.EntryPrice = 3000
	in.Proposal.StopPrice = 3100
	in.Proposal.TakeProfit = 2700

	res := newValidator().Validate(in)
	require.True(t, res.Approved, "%+v", res.FailedChecks())
	assert.Equal(t, 3.0, res.RewardRatio)
}

func TestValidateAnxiousWarns(t *testing.T) {
	in := baseInput()
	in.Psychology.Emotion.Emotion = models.EmotionAnxious
	in.Psychology.Classification = models.ClassWarn
	in.Psychology.Reason = "anxious"

	res := newValidator().Validate(in)
	assert.True(t, res.Approved)
	assert.Len(t, res.Warnings, 1)
}

func TestValidateSizePolicy(t *testing.T) {
	tighter := func(policy string) func(*config.Config) {
		return func(c *config.Config) {
			c.Risk.MaxRiskFraction = 0.01
			c.Risk.DefaultRiskFraction = 0.005
			c.Risk.SizePolicy = policy
		}
	}
	in := baseInput()
	in.Proposal.PositionSize = balance * 0.015 / 2000

	res := newValidator(tighter(config.SizePolicyReject)).Validate(in)
	require.False(t, res.Approved)
	assert.Equal(t, models.CodeSizeMismatch, res.FailedChecks()[0].Code)

	res = newValidator(tighter(config.SizePolicyClamp)).Validate(in)
	require.True(t, res.Approved)
	assert.True(t, res.Modified)
	assert.InDelta(t, 0.01, res.RiskFraction, 1e-12)
	assert.InDelta(t, balance*0.01/2000, res.Sizing.UnitSize, 1e-12)
	assert.NotEmpty(t, res.Warnings)

	// Clamping never rescues a size beyond the hard cap.
	in.Proposal.PositionSize = balance * 0.05 / 2000
	res = newValidator(tighter(config.SizePolicyClamp)).Validate(in)
	require.False(t, res.Approved)
	assert.Equal(t, models.CodeRiskTooHigh, res.FailedChecks()[0].Code)
}

func TestNewValidatorNormalisesPairKeys(t *testing.T) {
	v := NewValidator(config.Default("").Risk, config.AlignmentConfig{
		Pairs: map[string][]string{"bullish": {"bullish_breakout"}},
	}, zerolog.Nop())
	assert.True(t, v.Compatible(models.TrendBullish, models.SetupBullishBreakout))
	assert.False(t, v.Compatible(models.TrendBullish, models.SetupRangeSupport))
}

func TestCheckProposal(t *testing.T) {
	assert.NoError(t, CheckProposal(baseInput().Proposal))

	bad := baseInput().Proposal
	bad.Symbol = " "
	assert.True(t, errors.Is(CheckProposal(bad), errors.ErrInvalidInput))

	bad = baseInput().Proposal
	bad.Direction = "FLAT"
	assert.Error(t, CheckProposal(bad))

	bad = baseInput().Proposal
	bad.EntryPrice = -1
	assert.Error(t, CheckProposal(bad))
}

// Property: Any proposal whose declared size risks more than 2% of the
// balance is rejected, whatever the size policy.
func TestProperty_RiskAboveCapAlwaysRejected(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	reject := newValidator()
	clamp := newValidator(func(c *config.Config) { c.Risk.SizePolicy = config.SizePolicyClamp })

	properties.Property("risk fraction above 0.02 is never approved", prop.ForAll(
		func(frac, bal, entry, stopPct float64) bool {
			in := baseInput()
			in.Balance = bal
			in.Proposal.EntryPrice = entry
			in.Proposal.StopPrice = entry * (1 - stopPct)
			in.Proposal.TakeProfit = entry + 3*entry*stopPct
			in.Proposal.PositionSize = frac * bal / (entry * stopPct)

			for _, v := range []*Validator{reject, clamp} {
				res := v.Validate(in)
				if res.Approved {
					return false
				}
				c, ok := res.Check(models.CheckRiskBound)
				if !ok || c.Passed {
					return false
				}
			}
			return true
		},
		gen.Float64Range(0.0201, 0.5),
		gen.Float64Range(100, 1e6),
		gen.Float64Range(1, 1e5),
		gen.Float64Range(0.005, 0.3),
	))

	properties.Property("approved results carry every check in order", prop.ForAll(
		func(frac float64, active int) bool {
			in := baseInput()
			in.Proposal.PositionSize = frac * balance / 2000
			for i := range in.Proposal.Confluences {
				in.Proposal.Confluences[i] = models.BoolConfluence(in.Proposal.Confluences[i].Name, i < active)
			}
			res := reject.Validate(in)
			if res.Approved != (active >= 3) {
				return false
			}
			for i, c := range res.Checks {
				if c.Name != allChecks[i] {
					return false
				}
			}
			return res.RiskFraction <= config.HardMaxRiskFraction+1e-12
		},
		gen.Float64Range(0.001, 0.016),
		gen.IntRange(0, 3),
	))

	properties.TestingRun(t)
}
