package indicator

import (
	"math"

	"github.com/shopspring/decimal"
)

// mean returns the simple arithmetic mean of a window.
func mean(window []decimal.Decimal) decimal.Decimal {
	if len(window) == 0 {
		return decimal.Zero
	}

	return decimal.Sum(decimal.Zero, window...).Div(decimal.NewFromInt(int64(len(window))))
}

// stddev returns the population standard deviation of a window. The square
// root has no exact decimal form, so the variance is taken through float64
// for the root and converted back.
func stddev(window []decimal.Decimal) decimal.Decimal {
	if len(window) < 2 {
		return decimal.Zero
	}

	m := mean(window)
	sumSq := decimal.Zero

	for _, v := range window {
		d := v.Sub(m)
		sumSq = sumSq.Add(d.Mul(d))
	}

	variance := sumSq.Div(decimal.NewFromInt(int64(len(window))))

	return decimal.NewFromFloat(math.Sqrt(variance.InexactFloat64()))
}

// tail returns the trailing n elements of values, or nil when fewer exist.
func tail(values []decimal.Decimal, n int) []decimal.Decimal {
	if len(values) < n {
		return nil
	}

	return values[len(values)-n:]
}
