// Package strategy maps indicator snapshots to directional signals. A
// strategy is a pure function of the previous and current snapshot; it holds
// no position state and never sees the portfolio, so the same snapshot
// sequence always yields the same signal sequence.
package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/tidemark-lab/tidemark/internal/config"
	"github.com/tidemark-lab/tidemark/internal/indicator"
	"github.com/tidemark-lab/tidemark/internal/types"
	"github.com/tidemark-lab/tidemark/pkg/errors"
)

// Strategy produces exactly one signal per bar.
type Strategy interface {
	Name() string
	// Evaluate inspects the previous and current snapshot and returns the
	// signal for the current bar. Crossing rules compare the two snapshots
	// directly, so a crossing fires on exactly one bar.
	Evaluate(prev, curr indicator.Snapshot) (types.Signal, error)
}

// New builds the configured strategy variant for a symbol.
func New(symbol string, cfg config.StrategyConfig) (Strategy, error) {
	switch cfg.Kind {
	case config.StrategyTechnical:
		return newTechnical(symbol, cfg), nil
	case config.StrategyMomentum:
		return newMomentum(symbol, cfg), nil
	default:
		return nil, errors.Newf(errors.ErrCodeUnknownStrategy, "unknown strategy kind %q", cfg.Kind)
	}
}

// crossedAbove reports whether a moved from at-or-below to strictly above b
// between the previous and current bar.
func crossedAbove(prevA, prevB, currA, currB decimal.Decimal) bool {
	return prevA.LessThanOrEqual(prevB) && currA.GreaterThan(currB)
}

// crossedBelow is the mirror of crossedAbove.
func crossedBelow(prevA, prevB, currA, currB decimal.Decimal) bool {
	return prevA.GreaterThanOrEqual(prevB) && currA.LessThan(currB)
}

// clampStrength keeps a strength scalar inside [0, 1].
func clampStrength(v decimal.Decimal) decimal.Decimal {
	if v.Sign() < 0 {
		return decimal.Zero
	}

	one := decimal.NewFromInt(1)
	if v.GreaterThan(one) {
		return one
	}

	return v
}
