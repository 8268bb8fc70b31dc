// Package sizing derives position sizes from a fixed-fractional risk budget.
package sizing

import (
	"math"

	"github.com/shopspring/decimal"

	"trading-gate/internal/config"
	"trading-gate/internal/errors"
	"trading-gate/internal/models"
)

// Calculate returns the unit size and dollar risk for risking riskFraction of
// balance between entry and stop.
//
//	unitSize   = balance * riskFraction / |entry - stop|
//	dollarRisk = balance * riskFraction
func Calculate(balance, riskFraction, entry, stop float64) (models.Sizing, error) {
	if err := validatePrices(balance, entry, stop); err != nil {
		return models.Sizing{}, err
	}
	if riskFraction <= 0 || riskFraction > config.HardMaxRiskFraction || math.IsNaN(riskFraction) {
		return models.Sizing{}, errors.NewInvalidInputError("risk_fraction", riskFraction, "must be in (0, 0.02]")
	}

	dollarRisk := balance * riskFraction
	return models.Sizing{
		UnitSize:     dollarRisk / math.Abs(entry-stop),
		DollarRisk:   dollarRisk,
		RiskFraction: riskFraction,
	}, nil
}

// ImpliedRiskFraction returns the fraction of balance a declared position of
// units would lose if stopped out. It does not bound the result.
func ImpliedRiskFraction(balance, units, entry, stop float64) (float64, error) {
	if err := validatePrices(balance, entry, stop); err != nil {
		return 0, err
	}
	if units <= 0 || math.IsNaN(units) || math.IsInf(units, 0) {
		return 0, errors.NewInvalidInputError("units", units, "must be positive")
	}
	return units * math.Abs(entry-stop) / balance, nil
}

// Declared builds the sizing for a caller-declared position.
func Declared(balance, units, entry, stop float64) (models.Sizing, error) {
	fraction, err := ImpliedRiskFraction(balance, units, entry, stop)
	if err != nil {
		return models.Sizing{}, err
	}
	return models.Sizing{
		UnitSize:     units,
		DollarRisk:   units * math.Abs(entry-stop),
		RiskFraction: fraction,
		Declared:     true,
	}, nil
}

// RewardRiskRatio returns |target - entry| / |entry - stop|.
func RewardRiskRatio(entry, stop, target float64) (float64, error) {
	if entry == stop {
		return 0, errors.NewInvalidInputError("stop_price", stop, "must differ from entry")
	}
	return math.Abs(target-entry) / math.Abs(entry-stop), nil
}

// RoundCents rounds a money amount to cents for reporting.
func RoundCents(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// RoundUnits rounds a unit size for reporting.
func RoundUnits(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(8).Float64()
	return f
}

// Rounded returns a copy of s with money and units rounded for display.
func Rounded(s models.Sizing) models.Sizing {
	s.DollarRisk = RoundCents(s.DollarRisk)
	s.UnitSize = RoundUnits(s.UnitSize)
	return s
}

func validatePrices(balance, entry, stop float64) error {
	if balance <= 0 || math.IsNaN(balance) || math.IsInf(balance, 0) {
		return errors.NewInvalidInputError("balance", balance, "must be positive")
	}
	if entry <= 0 || math.IsNaN(entry) || math.IsInf(entry, 0) {
		return errors.NewInvalidInputError("entry_price", entry, "must be positive")
	}
	if stop <= 0 || math.IsNaN(stop) || math.IsInf(stop, 0) {
		return errors.NewInvalidInputError("stop_price", stop, "must be positive")
	}
	if entry == stop {
		return errors.NewInvalidInputError("stop_price", stop, "must differ from entry")
	}
	return nil
}
