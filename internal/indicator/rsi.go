package indicator

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// rsiState implements Wilder's RSI incrementally: the first average gain
// and loss are simple means over the initial period, every later value is
// smoothed as (prev*(n-1) + current)/n.
type rsiState struct {
	period    int
	periodDec decimal.Decimal
	prevClose decimal.Decimal
	gains     []decimal.Decimal
	losses    []decimal.Decimal
	avgGain   decimal.Decimal
	avgLoss   decimal.Decimal
	seeded    bool
	hasPrev   bool
}

func newRSIState(period int) *rsiState {
	return &rsiState{
		period:    period,
		periodDec: decimal.NewFromInt(int64(period)),
		prevClose: decimal.Zero,
		gains:     nil,
		losses:    nil,
		avgGain:   decimal.Zero,
		avgLoss:   decimal.Zero,
		seeded:    false,
		hasPrev:   false,
	}
}

// update consumes one close and reports the RSI value once period+1 closes
// have been seen.
func (r *rsiState) update(close decimal.Decimal) (decimal.Decimal, bool) {
	if !r.hasPrev {
		r.prevClose = close
		r.hasPrev = true

		return decimal.Zero, false
	}

	change := close.Sub(r.prevClose)
	r.prevClose = close

	gain := decimal.Zero
	loss := decimal.Zero

	if change.Sign() > 0 {
		gain = change
	} else {
		loss = change.Neg()
	}

	if !r.seeded {
		r.gains = append(r.gains, gain)
		r.losses = append(r.losses, loss)

		if len(r.gains) < r.period {
			return decimal.Zero, false
		}

		r.avgGain = decimal.Sum(decimal.Zero, r.gains...).Div(r.periodDec)
		r.avgLoss = decimal.Sum(decimal.Zero, r.losses...).Div(r.periodDec)
		r.seeded = true
		r.gains = nil
		r.losses = nil
	} else {
		nMinusOne := r.periodDec.Sub(decimal.NewFromInt(1))
		r.avgGain = r.avgGain.Mul(nMinusOne).Add(gain).Div(r.periodDec)
		r.avgLoss = r.avgLoss.Mul(nMinusOne).Add(loss).Div(r.periodDec)
	}

	if r.avgLoss.IsZero() {
		return hundred, true
	}

	rs := r.avgGain.Div(r.avgLoss)
	rsi := hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs)))

	return rsi, true
}
