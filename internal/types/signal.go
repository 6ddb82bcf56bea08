package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the directional verdict of a strategy for one bar.
type Direction string

const (
	// DirectionBuy tells the risk controller to open or add to a position.
	DirectionBuy Direction = "buy"
	// DirectionSell tells the risk controller to reduce or close a position.
	DirectionSell Direction = "sell"
	// DirectionHold is the default when no rule fires.
	DirectionHold Direction = "hold"
)

// Signal is produced exactly once per bar by the active strategy. It is
// never retried or mutated; Strength is a confidence scalar in [0, 1].
type Signal struct {
	Time      time.Time       `yaml:"time" json:"time"`
	Symbol    string          `yaml:"symbol" json:"symbol"`
	Direction Direction       `yaml:"direction" json:"direction"`
	Strength  decimal.Decimal `yaml:"strength" json:"strength"`
	// Strategy tags the variant that produced the signal.
	Strategy string `yaml:"strategy" json:"strategy"`
	// Reason describes the rule(s) that fired, for the decision log.
	Reason string `yaml:"reason" json:"reason"`
}

// Hold returns the default no-action signal for a bar.
func Hold(symbol string, t time.Time, strategy string) Signal {
	return Signal{
		Time:      t,
		Symbol:    symbol,
		Direction: DirectionHold,
		Strength:  decimal.Zero,
		Strategy:  strategy,
		Reason:    "no rule fired",
	}
}
