package indicator

import "github.com/shopspring/decimal"

// ema is an incremental exponential moving average with the standard
// smoothing factor 2/(n+1), seeded by the first observation.
type ema struct {
	alpha decimal.Decimal
	value decimal.Decimal
	n     int
}

func newEMA(period int) *ema {
	return &ema{
		alpha: decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(period) + 1)),
		value: decimal.Zero,
		n:     0,
	}
}

func (e *ema) update(v decimal.Decimal) decimal.Decimal {
	if e.n == 0 {
		e.value = v
	} else {
		e.value = v.Sub(e.value).Mul(e.alpha).Add(e.value)
	}

	e.n++

	return e.value
}
