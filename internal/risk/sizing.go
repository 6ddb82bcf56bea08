package risk

import (
	"github.com/shopspring/decimal"

	"github.com/tidemark-lab/tidemark/internal/config"
	"github.com/tidemark-lab/tidemark/internal/indicator"
	"github.com/tidemark-lab/tidemark/internal/portfolio"
	"github.com/tidemark-lab/tidemark/internal/types"
	"github.com/tidemark-lab/tidemark/pkg/errors"
)

// Seed payoff assumptions for Kelly sizing, used until the account has a
// trade history of its own: 3% average win against 2% average loss.
var (
	kellySeedAvgWin  = decimal.NewFromFloat(0.03)
	kellySeedAvgLoss = decimal.NewFromFloat(0.02)
	kellyBaseWinProb = decimal.NewFromFloat(0.55)
	kellyProbScale   = decimal.NewFromFloat(0.15)
)

// targetNotional computes the pre-rounding notional for a buy under the
// configured sizing method. ATR sizing needs the current snapshot; the other
// methods ignore it.
func targetNotional(cfg config.RiskConfig, signal types.Signal, snapshot indicator.Snapshot, state *portfolio.State) (decimal.Decimal, error) {
	equity := state.Equity()

	switch cfg.Sizing {
	case config.SizingFixedAmount:
		return decimal.NewFromFloat(cfg.TradeAmount), nil

	case config.SizingFraction:
		return equity.Mul(decimal.NewFromFloat(cfg.PositionFraction)).Mul(signal.Strength), nil

	case config.SizingKelly:
		return equity.Mul(kellyFraction(signal.Strength, state)), nil

	case config.SizingATR:
		if snapshot.ATR.IsNone() {
			return decimal.Zero, errors.Wrap(errors.ErrCodeInsufficientData,
				"ATR sizing requires a defined ATR",
				errors.NewInsufficientDataErrorf(1, 0, "ATR lookback window has not filled"))
		}

		atr := snapshot.ATR.Unwrap()
		if atr.Sign() <= 0 {
			return decimal.Zero, errors.New(errors.ErrCodeIndicatorCalculation,
				"ATR sizing requires a positive ATR")
		}

		riskAmount := equity.Mul(decimal.NewFromFloat(cfg.RiskPerTrade))

		return riskAmount.Div(atr).Mul(snapshot.Close), nil

	default:
		return decimal.Zero, errors.Newf(errors.ErrCodeInvalidParameter,
			"unknown sizing method %q", cfg.Sizing)
	}
}

// kellyFraction computes f = (p*b - q)/b with the win probability shifted by
// signal strength. Realized averages replace the seed payoff once both a
// win and a loss exist.
func kellyFraction(strength decimal.Decimal, state *portfolio.State) decimal.Decimal {
	avgWin := kellySeedAvgWin
	avgLoss := kellySeedAvgLoss

	if state.AvgWin().Sign() > 0 && state.AvgLoss().Sign() > 0 {
		avgWin = state.AvgWin()
		avgLoss = state.AvgLoss()
	}

	p := kellyBaseWinProb.Add(kellyProbScale.Mul(strength))
	q := decimal.NewFromInt(1).Sub(p)
	b := avgWin.Div(avgLoss)

	f := p.Mul(b).Sub(q).Div(b)
	if f.Sign() < 0 {
		return decimal.Zero
	}

	one := decimal.NewFromInt(1)
	if f.GreaterThan(one) {
		return one
	}

	return f
}

// roundToLot floors a quantity to whole lots. A lot size of 1 leaves whole
// shares; fractional remainders are always dropped, never rounded up.
func roundToLot(quantity decimal.Decimal, lotSize int) decimal.Decimal {
	lot := decimal.NewFromInt(int64(lotSize))

	return quantity.Div(lot).Floor().Mul(lot)
}
