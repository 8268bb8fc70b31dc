// Package models provides domain models for the trading gate.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Direction represents the side of a proposed trade.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionLong || d == DirectionShort
}

// Sign returns +1 for long and -1 for short.
func (d Direction) Sign() float64 {
	if d == DirectionShort {
		return -1
	}
	return 1
}

// ParseDirection parses a direction, accepting buy/sell aliases.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LONG", "BUY":
		return DirectionLong, nil
	case "SHORT", "SELL":
		return DirectionShort, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// Trend represents the declared higher-timeframe trend.
type Trend string

const (
	TrendBullish Trend = "BULLISH"
	TrendBearish Trend = "BEARISH"
	TrendRanging Trend = "RANGING"
)

// Setup represents the declared execution-timeframe setup.
type Setup string

const (
	SetupBullishBreakout  Setup = "BULLISH_BREAKOUT"
	SetupBullishPullback  Setup = "BULLISH_PULLBACK"
	SetupBullishReversal  Setup = "BULLISH_REVERSAL"
	SetupBearishBreakdown Setup = "BEARISH_BREAKDOWN"
	SetupBearishPullback  Setup = "BEARISH_PULLBACK"
	SetupBearishReversal  Setup = "BEARISH_REVERSAL"
	SetupRangeSupport     Setup = "RANGE_SUPPORT"
	SetupRangeResistance  Setup = "RANGE_RESISTANCE"
)

// Bias returns the direction a setup trades in.
func (s Setup) Bias() Direction {
	switch s {
	case SetupBullishBreakout, SetupBullishPullback, SetupBullishReversal, SetupRangeSupport:
		return DirectionLong
	case SetupBearishBreakdown, SetupBearishPullback, SetupBearishReversal, SetupRangeResistance:
		return DirectionShort
	}
	return ""
}

// Confluence is one named technical condition in an indicator snapshot.
// Boolean confluences carry Met; numeric ones compare Value to Threshold.
type Confluence struct {
	Name      string  `json:"name" yaml:"name"`
	Numeric   bool    `json:"numeric,omitempty" yaml:"numeric,omitempty"`
	Met       bool    `json:"met,omitempty" yaml:"met,omitempty"`
	Value     float64 `json:"value,omitempty" yaml:"value,omitempty"`
	Threshold float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Below     bool    `json:"below,omitempty" yaml:"below,omitempty"` // numeric passes when Value <= Threshold
}

// BoolConfluence creates a boolean confluence.
func BoolConfluence(name string, met bool) Confluence {
	return Confluence{Name: name, Met: met}
}

// NumericConfluence creates a numeric confluence that passes at or above the
// threshold, or at or below it when below is set.
func NumericConfluence(name string, value, threshold float64, below bool) Confluence {
	return Confluence{Name: name, Numeric: true, Value: value, Threshold: threshold, Below: below}
}

// Active reports whether the confluence condition holds.
func (c Confluence) Active() bool {
	if !c.Numeric {
		return c.Met
	}
	if c.Below {
		return c.Value <= c.Threshold
	}
	return c.Value >= c.Threshold
}

// TradeProposal is a caller-supplied trade idea. It is never stored on its
// own, only as a snapshot inside the TradeRecord created on approval.
type TradeProposal struct {
	Symbol       string       `json:"symbol"`
	Direction    Direction    `json:"direction"`
	EntryPrice   float64      `json:"entry_price"`
	StopPrice    float64      `json:"stop_price"`
	TakeProfit   float64      `json:"take_profit"`
	Trend        Trend        `json:"trend"`
	Setup        Setup        `json:"setup"`
	Confluences  []Confluence `json:"confluences,omitempty"`
	PositionSize float64      `json:"position_size,omitempty"` // declared units, 0 = use default risk
	ClientRef    string       `json:"client_ref,omitempty"`
	Paper        bool         `json:"paper,omitempty"`
	Notes        string       `json:"notes,omitempty"`
	ProposedAt   time.Time    `json:"proposed_at"`
}

// ActiveConfluences counts confluences whose condition holds.
func (p TradeProposal) ActiveConfluences() int {
	n := 0
	for _, c := range p.Confluences {
		if c.Active() {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the proposal.
func (p TradeProposal) Clone() TradeProposal {
	out := p
	if p.Confluences != nil {
		out.Confluences = append([]Confluence(nil), p.Confluences...)
	}
	return out
}
