// Package commission computes trading fees from order notionals.
package commission

import "github.com/shopspring/decimal"

// Schedule computes the fee for one fill given its notional value.
type Schedule interface {
	Calculate(notional decimal.Decimal) decimal.Decimal
}

// RateWithMinimum charges a proportional rate with a per-order floor, the
// shape most equity brokers use.
type RateWithMinimum struct {
	rate    decimal.Decimal
	minimum decimal.Decimal
}

func NewRateWithMinimum(rate, minimum decimal.Decimal) *RateWithMinimum {
	return &RateWithMinimum{rate: rate, minimum: minimum}
}

func (r *RateWithMinimum) Calculate(notional decimal.Decimal) decimal.Decimal {
	fee := notional.Mul(r.rate)
	if fee.LessThan(r.minimum) {
		return r.minimum
	}

	return fee
}

// Zero charges nothing. Used for frictionless what-if runs.
type Zero struct{}

func NewZero() *Zero {
	return &Zero{}
}

func (*Zero) Calculate(decimal.Decimal) decimal.Decimal {
	return decimal.Zero
}
