package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tidemark-lab/tidemark/internal/config"
	"github.com/tidemark-lab/tidemark/internal/indicator"
	"github.com/tidemark-lab/tidemark/internal/types"
)

// momentum buys when the trailing change rate and relative volume both
// exceed their thresholds, and sells when the change rate reverses by the
// same magnitude. No trend indicators are consulted.
type momentum struct {
	symbol      string
	changeRate  decimal.Decimal
	volumeRatio decimal.Decimal
}

func newMomentum(symbol string, cfg config.StrategyConfig) *momentum {
	return &momentum{
		symbol:      symbol,
		changeRate:  decimal.NewFromFloat(cfg.MomentumChangeRate),
		volumeRatio: decimal.NewFromFloat(cfg.MomentumVolumeRatio),
	}
}

func (m *momentum) Name() string { return "momentum" }

func (m *momentum) Evaluate(_, curr indicator.Snapshot) (types.Signal, error) {
	if curr.ChangeRate.IsNone() || curr.VolumeMA.IsNone() {
		return types.Hold(m.symbol, curr.Time, m.Name()), nil
	}

	change := curr.ChangeRate.Unwrap()
	volumeMA := curr.VolumeMA.Unwrap()

	if volumeMA.Sign() <= 0 {
		return types.Hold(m.symbol, curr.Time, m.Name()), nil
	}

	ratio := curr.Volume.Div(volumeMA)

	if change.GreaterThan(m.changeRate) && ratio.GreaterThan(m.volumeRatio) {
		// Strength grows with how far the change rate clears the
		// threshold, saturating at twice the threshold.
		excess := change.Sub(m.changeRate).Div(m.changeRate)

		return types.Signal{
			Time:      curr.Time,
			Symbol:    m.symbol,
			Direction: types.DirectionBuy,
			Strength:  clampStrength(decimal.NewFromFloat(0.5).Add(excess.Div(decimal.NewFromInt(2)))),
			Strategy:  m.Name(),
			Reason:    fmt.Sprintf("change rate %s with volume ratio %s", change.StringFixed(4), ratio.StringFixed(2)),
		}, nil
	}

	if change.LessThan(m.changeRate.Neg()) {
		return types.Signal{
			Time:      curr.Time,
			Symbol:    m.symbol,
			Direction: types.DirectionSell,
			Strength:  clampStrength(change.Neg().Div(m.changeRate).Div(decimal.NewFromInt(2))),
			Strategy:  m.Name(),
			Reason:    fmt.Sprintf("momentum reversal, change rate %s", change.StringFixed(4)),
		}, nil
	}

	return types.Hold(m.symbol, curr.Time, m.Name()), nil
}
