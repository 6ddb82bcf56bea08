package risk

import (
	"time"

	"github.com/shopspring/decimal"
)

// LimitState accumulates the rolling facts the circuit breakers consult:
// trades executed today and equity at the start of the trading day. A new
// calendar day (UTC) resets both.
type LimitState struct {
	day            time.Time
	dailyTrades    int
	dayStartEquity decimal.Decimal
}

func NewLimitState() *LimitState {
	return &LimitState{}
}

// RollOver must be called once per bar before any gating. On the first bar
// of a new calendar day it resets the trade count and pins the day's
// starting equity.
func (l *LimitState) RollOver(t time.Time, equity decimal.Decimal) {
	day := t.UTC().Truncate(24 * time.Hour)
	if day.Equal(l.day) {
		return
	}

	l.day = day
	l.dailyTrades = 0
	l.dayStartEquity = equity
}

// RecordTrade counts one executed fill against today's frequency cap.
func (l *LimitState) RecordTrade() {
	l.dailyTrades++
}

func (l *LimitState) DailyTrades() int {
	return l.dailyTrades
}

// DailyLoss is today's fractional equity decline from the day's start.
// Negative when the day is up.
func (l *LimitState) DailyLoss(equity decimal.Decimal) decimal.Decimal {
	if l.dayStartEquity.Sign() <= 0 {
		return decimal.Zero
	}

	return l.dayStartEquity.Sub(equity).Div(l.dayStartEquity)
}
