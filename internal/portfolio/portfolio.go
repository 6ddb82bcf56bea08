// Package portfolio tracks cash, the open position and derived equity for a
// single instrument. Fills are the only inputs that mutate holdings; marking
// a bar only re-prices what is already held.
package portfolio

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tidemark-lab/tidemark/internal/types"
	"github.com/tidemark-lab/tidemark/pkg/errors"
)

// EquityPoint is one sample of the equity curve, taken once per bar.
type EquityPoint struct {
	Time   time.Time       `json:"time" csv:"time"`
	Equity decimal.Decimal `json:"equity" csv:"equity"`
}

// State is the authoritative account state. Cash plus position value always
// equals equity; every fill adjusts both sides consistently, so the identity
// cannot drift.
type State struct {
	cash     decimal.Decimal
	quantity decimal.Decimal
	// avgCost includes the buy commission, so realized PnL on a sell is
	// net of the entry fee.
	avgCost   decimal.Decimal
	lastPrice decimal.Decimal
	// highSinceEntry backs the trailing stop; reset on every flat-to-long
	// transition.
	highSinceEntry decimal.Decimal

	realizedPnL decimal.Decimal
	wins        int
	losses      int
	sumWins     decimal.Decimal
	sumLosses   decimal.Decimal
	fillCount   int

	equityCurve []EquityPoint
	peak        decimal.Decimal
	drawdown    decimal.Decimal
}

func NewState(initialCapital decimal.Decimal) *State {
	return &State{
		cash: initialCapital,
		peak: initialCapital,
	}
}

// Apply folds one fill into the account. It is the only mutation path for
// cash and holdings.
func (s *State) Apply(fill types.Fill) error {
	switch fill.Side {
	case types.SideBuy:
		return s.applyBuy(fill)
	case types.SideSell:
		return s.applySell(fill)
	default:
		return errors.Newf(errors.ErrCodeInvalidOrder, "unknown fill side %q", fill.Side)
	}
}

func (s *State) applyBuy(fill types.Fill) error {
	cost := fill.Notional().Add(fill.Commission)
	if cost.GreaterThan(s.cash) {
		return errors.Newf(errors.ErrCodeInsufficientFunds,
			"buy cost %s exceeds cash %s", cost, s.cash)
	}

	if s.quantity.IsZero() {
		s.highSinceEntry = fill.Price
	}

	newQuantity := s.quantity.Add(fill.Quantity)
	s.avgCost = s.avgCost.Mul(s.quantity).Add(cost).Div(newQuantity)
	s.quantity = newQuantity
	s.cash = s.cash.Sub(cost)
	s.fillCount++

	return nil
}

func (s *State) applySell(fill types.Fill) error {
	if fill.Quantity.GreaterThan(s.quantity) {
		return errors.Newf(errors.ErrCodeNoHoldings,
			"sell quantity %s exceeds position %s", fill.Quantity, s.quantity)
	}

	proceeds := fill.Notional().Sub(fill.Commission)
	pnl := fill.Price.Sub(s.avgCost).Mul(fill.Quantity).Sub(fill.Commission)

	s.realizedPnL = s.realizedPnL.Add(pnl)
	if pnl.Sign() > 0 {
		s.wins++
		s.sumWins = s.sumWins.Add(pnl)
	} else {
		s.losses++
		s.sumLosses = s.sumLosses.Add(pnl.Neg())
	}

	s.quantity = s.quantity.Sub(fill.Quantity)
	s.cash = s.cash.Add(proceeds)
	s.fillCount++

	if s.quantity.IsZero() {
		s.avgCost = decimal.Zero
		s.highSinceEntry = decimal.Zero
	}

	return nil
}

// Mark re-prices the position at a bar's close, samples the equity curve
// and advances the peak and drawdown.
func (s *State) Mark(t time.Time, price decimal.Decimal) {
	s.lastPrice = price

	if s.quantity.Sign() > 0 && price.GreaterThan(s.highSinceEntry) {
		s.highSinceEntry = price
	}

	equity := s.Equity()
	s.equityCurve = append(s.equityCurve, EquityPoint{Time: t, Equity: equity})

	if equity.GreaterThan(s.peak) {
		s.peak = equity
	}

	if s.peak.Sign() > 0 {
		s.drawdown = s.peak.Sub(equity).Div(s.peak)
	}
}

func (s *State) Cash() decimal.Decimal     { return s.cash }
func (s *State) Quantity() decimal.Decimal { return s.quantity }
func (s *State) AvgCost() decimal.Decimal  { return s.avgCost }

// MarketValue is the position priced at the latest mark.
func (s *State) MarketValue() decimal.Decimal {
	return s.quantity.Mul(s.lastPrice)
}

// Equity is cash plus position value at the latest mark.
func (s *State) Equity() decimal.Decimal {
	return s.cash.Add(s.MarketValue())
}

// Drawdown is the fractional decline from the equity peak at the latest mark.
func (s *State) Drawdown() decimal.Decimal { return s.drawdown }

// Peak is the highest marked equity seen so far.
func (s *State) Peak() decimal.Decimal { return s.peak }

// HighSinceEntry is the highest close seen while the current position has
// been open. Zero when flat.
func (s *State) HighSinceEntry() decimal.Decimal { return s.highSinceEntry }

func (s *State) RealizedPnL() decimal.Decimal { return s.realizedPnL }

// FillCount is the number of fills applied, buys and sells both.
func (s *State) FillCount() int { return s.fillCount }

// ClosedTrades is the number of realized (sell) trades.
func (s *State) ClosedTrades() int { return s.wins + s.losses }

// WinRate is the fraction of closed trades with positive realized PnL.
func (s *State) WinRate() decimal.Decimal {
	closed := s.ClosedTrades()
	if closed == 0 {
		return decimal.Zero
	}

	return decimal.NewFromInt(int64(s.wins)).Div(decimal.NewFromInt(int64(closed)))
}

// AvgWin and AvgLoss are the mean realized gain and loss per closed trade,
// both reported as positive magnitudes.
func (s *State) AvgWin() decimal.Decimal {
	if s.wins == 0 {
		return decimal.Zero
	}

	return s.sumWins.Div(decimal.NewFromInt(int64(s.wins)))
}

func (s *State) AvgLoss() decimal.Decimal {
	if s.losses == 0 {
		return decimal.Zero
	}

	return s.sumLosses.Div(decimal.NewFromInt(int64(s.losses)))
}

// EquityCurve returns the per-bar equity samples in bar order.
func (s *State) EquityCurve() []EquityPoint { return s.equityCurve }
