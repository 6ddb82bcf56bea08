package strategy

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tidemark-lab/tidemark/internal/config"
	"github.com/tidemark-lab/tidemark/internal/indicator"
	"github.com/tidemark-lab/tidemark/internal/types"
)

// Strength weights for the technical rule set. The trend crossing carries
// the most weight; confirmation rules add smaller increments.
var (
	weightMACross   = decimal.NewFromFloat(0.30)
	weightMACD      = decimal.NewFromFloat(0.25)
	weightRSI       = decimal.NewFromFloat(0.20)
	weightBollinger = decimal.NewFromFloat(0.15)
	weightVolume    = decimal.NewFromFloat(0.10)
)

// technical trades moving-average crossings filtered by RSI, with optional
// MACD confirmation. Bollinger position and volume only shade the strength,
// they never gate the direction.
type technical struct {
	symbol     string
	cfg        config.StrategyConfig
	overbought decimal.Decimal
	oversold   decimal.Decimal
}

func newTechnical(symbol string, cfg config.StrategyConfig) *technical {
	return &technical{
		symbol:     symbol,
		cfg:        cfg,
		overbought: decimal.NewFromFloat(cfg.RSIOverbought),
		oversold:   decimal.NewFromFloat(cfg.RSIOversold),
	}
}

func (t *technical) Name() string { return "technical" }

func (t *technical) Evaluate(prev, curr indicator.Snapshot) (types.Signal, error) {
	if !prev.HasTrend() || !curr.HasTrend() || curr.RSI.IsNone() {
		return types.Hold(t.symbol, curr.Time, t.Name()), nil
	}

	goldenCross := crossedAbove(
		prev.MAShort.Unwrap(), prev.MALong.Unwrap(),
		curr.MAShort.Unwrap(), curr.MALong.Unwrap(),
	)
	deathCross := crossedBelow(
		prev.MAShort.Unwrap(), prev.MALong.Unwrap(),
		curr.MAShort.Unwrap(), curr.MALong.Unwrap(),
	)

	macdBullCross, macdBearCross := t.macdCrossings(prev, curr)
	rsi := curr.RSI.Unwrap()

	if signal, ok := t.buySignal(curr, goldenCross, macdBullCross, rsi); ok {
		return signal, nil
	}

	if signal, ok := t.sellSignal(curr, deathCross, macdBearCross, rsi); ok {
		return signal, nil
	}

	return types.Hold(t.symbol, curr.Time, t.Name()), nil
}

func (t *technical) buySignal(curr indicator.Snapshot, goldenCross, macdBullCross bool, rsi decimal.Decimal) (types.Signal, bool) {
	if t.cfg.RequireMACross && !goldenCross {
		return types.Signal{}, false
	}

	if t.cfg.RequireMACDCross && !macdBullCross {
		return types.Signal{}, false
	}

	if !goldenCross && !macdBullCross {
		return types.Signal{}, false
	}

	// An overbought market disqualifies a buy regardless of trend.
	if rsi.GreaterThanOrEqual(t.overbought) {
		return types.Signal{}, false
	}

	strength := decimal.Zero
	reasons := make([]string, 0, 4)

	if goldenCross {
		strength = strength.Add(weightMACross)
		reasons = append(reasons, "golden cross")
	}

	if macdBullCross {
		strength = strength.Add(weightMACD)
		reasons = append(reasons, "macd bullish cross")
	} else if curr.MACD.IsSome() && curr.MACD.Unwrap().Histogram.Sign() > 0 {
		strength = strength.Add(weightMACD.Div(decimal.NewFromInt(2)))
		reasons = append(reasons, "macd histogram positive")
	}

	if rsi.LessThanOrEqual(t.oversold) {
		strength = strength.Add(weightRSI)
		reasons = append(reasons, "rsi oversold")
	} else {
		// Scale the RSI contribution by the headroom to overbought.
		headroom := t.overbought.Sub(rsi).Div(t.overbought.Sub(t.oversold))
		strength = strength.Add(weightRSI.Mul(clampStrength(headroom)))
	}

	if curr.Bollinger.IsSome() && curr.Close.LessThan(curr.Bollinger.Unwrap().Middle) {
		strength = strength.Add(weightBollinger)
		reasons = append(reasons, "below bollinger middle")
	}

	if curr.VolumeMA.IsSome() && curr.Volume.GreaterThan(curr.VolumeMA.Unwrap()) {
		strength = strength.Add(weightVolume)
		reasons = append(reasons, "volume above average")
	}

	return types.Signal{
		Time:      curr.Time,
		Symbol:    t.symbol,
		Direction: types.DirectionBuy,
		Strength:  clampStrength(strength),
		Strategy:  t.Name(),
		Reason:    strings.Join(reasons, ", "),
	}, true
}

func (t *technical) sellSignal(curr indicator.Snapshot, deathCross, macdBearCross bool, rsi decimal.Decimal) (types.Signal, bool) {
	overbought := rsi.GreaterThanOrEqual(t.overbought)

	if !deathCross && !overbought && !(t.cfg.RequireMACDCross && macdBearCross) {
		return types.Signal{}, false
	}

	strength := decimal.Zero
	reasons := make([]string, 0, 3)

	if deathCross {
		strength = strength.Add(weightMACross)
		reasons = append(reasons, "death cross")
	}

	if macdBearCross {
		strength = strength.Add(weightMACD)
		reasons = append(reasons, "macd bearish cross")
	}

	if overbought {
		strength = strength.Add(weightRSI)
		reasons = append(reasons, "rsi overbought")
	}

	if curr.Bollinger.IsSome() && curr.Close.GreaterThan(curr.Bollinger.Unwrap().Upper) {
		strength = strength.Add(weightBollinger)
		reasons = append(reasons, "above upper bollinger band")
	}

	if curr.VolumeMA.IsSome() && curr.Volume.GreaterThan(curr.VolumeMA.Unwrap()) {
		strength = strength.Add(weightVolume)
		reasons = append(reasons, "volume above average")
	}

	return types.Signal{
		Time:      curr.Time,
		Symbol:    t.symbol,
		Direction: types.DirectionSell,
		Strength:  clampStrength(strength),
		Strategy:  t.Name(),
		Reason:    strings.Join(reasons, ", "),
	}, true
}

func (t *technical) macdCrossings(prev, curr indicator.Snapshot) (bull, bear bool) {
	if prev.MACD.IsNone() || curr.MACD.IsNone() {
		return false, false
	}

	p := prev.MACD.Unwrap()
	c := curr.MACD.Unwrap()

	bull = crossedAbove(p.Line, p.Signal, c.Line, c.Signal)
	bear = crossedBelow(p.Line, p.Signal, c.Line, c.Signal)

	return bull, bear
}
