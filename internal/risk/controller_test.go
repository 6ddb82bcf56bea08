package risk

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/tidemark-lab/tidemark/internal/config"
	"github.com/tidemark-lab/tidemark/internal/indicator"
	"github.com/tidemark-lab/tidemark/internal/portfolio"
	"github.com/tidemark-lab/tidemark/internal/types"
	"github.com/tidemark-lab/tidemark/pkg/errors"
)

type ControllerTestSuite struct {
	suite.Suite
	cfg   config.RiskConfig
	state *portfolio.State
}

func TestControllerTestSuite(t *testing.T) {
	suite.Run(t, new(ControllerTestSuite))
}

func (s *ControllerTestSuite) SetupTest() {
	s.cfg = config.RiskConfig{
		Sizing:            config.SizingFixedAmount,
		TradeAmount:       10000,
		PositionFraction:  0.3,
		RiskPerTrade:      0.01,
		MinTradeAmount:    5000,
		MaxTradeAmount:    50000,
		MaxSinglePosition: 0.5,
		StopLoss:          0.05,
		TakeProfit:        0.10,
		TrailingStop:      false,
		MaxDrawdown:       0.10,
		MaxDailyLoss:      0.05,
		MaxDailyTrades:    10,
		LotSize:           100,
	}
	s.state = portfolio.NewState(decimal.NewFromInt(100000))
}

func buySignal(strength float64) types.Signal {
	return types.Signal{
		Time:      time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		Symbol:    "TEST",
		Direction: types.DirectionBuy,
		Strength:  decimal.NewFromFloat(strength),
		Strategy:  "technical",
	}
}

func sellSignal() types.Signal {
	sig := buySignal(0.5)
	sig.Direction = types.DirectionSell

	return sig
}

func snapshotAtPrice(price float64) indicator.Snapshot {
	return indicator.Snapshot{
		Time:  time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		Close: decimal.NewFromFloat(price),
		ATR:   optional.Some(decimal.NewFromFloat(2)),
	}
}

func (s *ControllerTestSuite) open(controller *Controller, qty, price float64) {
	s.Require().NoError(s.state.Apply(types.Fill{
		OrderID:  "a6b1f0aa-0000-4000-8000-000000000001",
		Symbol:   "TEST",
		Side:     types.SideBuy,
		Quantity: decimal.NewFromFloat(qty),
		Price:    decimal.NewFromFloat(price),
	}))
	s.state.Mark(time.Now(), decimal.NewFromFloat(price))
}

func (s *ControllerTestSuite) TestHoldNeedsNoAction() {
	controller := NewController(s.cfg)

	sig := buySignal(0.5)
	sig.Direction = types.DirectionHold

	verdict, err := controller.Evaluate(sig, snapshotAtPrice(50), s.state)
	s.Require().NoError(err)
	s.True(verdict.Intent.IsNone())
	s.True(verdict.Veto.IsNone())
}

func (s *ControllerTestSuite) TestFixedAmountBuyApproved() {
	controller := NewController(s.cfg)
	controller.Limits().RollOver(time.Now(), s.state.Equity())

	verdict, err := controller.Evaluate(buySignal(0.8), snapshotAtPrice(50), s.state)
	s.Require().NoError(err)
	s.Require().True(verdict.Intent.IsSome())

	intent := verdict.Intent.Unwrap()
	s.Equal(types.SideBuy, intent.Side)
	// 10000 / 50 = 200 shares, already a whole number of lots.
	s.True(intent.Quantity.Equal(decimal.NewFromInt(200)))
	s.Require().NoError(intent.Validate())
}

func (s *ControllerTestSuite) TestLotRoundingFloorsQuantity() {
	controller := NewController(s.cfg)
	controller.Limits().RollOver(time.Now(), s.state.Equity())

	// 10000 / 66 = 151.5 shares, floored to one lot of 100.
	verdict, err := controller.Evaluate(buySignal(0.8), snapshotAtPrice(66), s.state)
	s.Require().NoError(err)
	s.Require().True(verdict.Intent.IsSome())
	s.True(verdict.Intent.Unwrap().Quantity.Equal(decimal.NewFromInt(100)))
}

func (s *ControllerTestSuite) TestNotionalBelowMinimumVetoed() {
	s.cfg.TradeAmount = 3000
	controller := NewController(s.cfg)
	controller.Limits().RollOver(time.Now(), s.state.Equity())

	verdict, err := controller.Evaluate(buySignal(0.8), snapshotAtPrice(50), s.state)
	s.Require().NoError(err)
	s.Require().True(verdict.Veto.IsSome())
	s.Equal(types.VetoSizeOutOfRange, verdict.Veto.Unwrap().Reason)
}

func (s *ControllerTestSuite) TestFrequencyCapWinsOverLaterGates() {
	// Undersized trade amount would also trip the size gate; the frequency
	// cap is checked first and must name the veto.
	s.cfg.TradeAmount = 3000
	s.cfg.MaxDailyTrades = 1
	controller := NewController(s.cfg)
	controller.Limits().RollOver(time.Now(), s.state.Equity())
	controller.Limits().RecordTrade()

	verdict, err := controller.Evaluate(buySignal(0.8), snapshotAtPrice(50), s.state)
	s.Require().NoError(err)
	s.Require().True(verdict.Veto.IsSome())
	s.Equal(types.VetoFrequencyCap, verdict.Veto.Unwrap().Reason)
}

func (s *ControllerTestSuite) TestDrawdownBreakerBlocksBuysOnly() {
	controller := NewController(s.cfg)
	s.open(controller, 1000, 50)
	controller.Limits().RollOver(time.Now(), s.state.Equity())

	// Mark the position down 20%: equity falls from 100000 to 90000.
	s.state.Mark(time.Now(), decimal.NewFromInt(40))
	s.Require().True(s.state.Drawdown().GreaterThanOrEqual(decimal.NewFromFloat(0.10)))

	verdict, err := controller.Evaluate(buySignal(0.8), snapshotAtPrice(40), s.state)
	s.Require().NoError(err)
	s.Require().True(verdict.Veto.IsSome())
	s.Equal(types.VetoDrawdownBreaker, verdict.Veto.Unwrap().Reason)

	// The same breached state must still allow closing the position.
	verdict, err = controller.Evaluate(sellSignal(), snapshotAtPrice(40), s.state)
	s.Require().NoError(err)
	s.Require().True(verdict.Intent.IsSome())
	s.Equal(types.SideSell, verdict.Intent.Unwrap().Side)
}

func (s *ControllerTestSuite) TestDailyLossBreakerResetsNextDay() {
	controller := NewController(s.cfg)
	s.open(controller, 400, 50)

	day1 := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	controller.Limits().RollOver(day1, s.state.Equity())

	// Lose 6% of equity within the day.
	s.state.Mark(day1, decimal.NewFromInt(35))

	verdict, err := controller.Evaluate(buySignal(0.8), snapshotAtPrice(35), s.state)
	s.Require().NoError(err)
	s.Require().True(verdict.Veto.IsSome())
	s.Equal(types.VetoDailyLossBreaker, verdict.Veto.Unwrap().Reason)

	// The next day starts a fresh baseline at the reduced equity.
	day2 := day1.Add(24 * time.Hour)
	controller.Limits().RollOver(day2, s.state.Equity())
	s.True(controller.Limits().DailyLoss(s.state.Equity()).IsZero())
}

func (s *ControllerTestSuite) TestPositionCapVeto() {
	s.cfg.MaxSinglePosition = 0.2
	s.cfg.TradeAmount = 30000
	controller := NewController(s.cfg)
	controller.Limits().RollOver(time.Now(), s.state.Equity())

	verdict, err := controller.Evaluate(buySignal(0.8), snapshotAtPrice(50), s.state)
	s.Require().NoError(err)
	s.Require().True(verdict.Veto.IsSome())
	s.Equal(types.VetoPositionCap, verdict.Veto.Unwrap().Reason)
}

func (s *ControllerTestSuite) TestSellWithNoPositionIsNoOp() {
	controller := NewController(s.cfg)
	controller.Limits().RollOver(time.Now(), s.state.Equity())

	verdict, err := controller.Evaluate(sellSignal(), snapshotAtPrice(50), s.state)
	s.Require().NoError(err)
	s.True(verdict.Intent.IsNone())
	s.True(verdict.Veto.IsNone())
}

func (s *ControllerTestSuite) TestFractionSizingScalesWithStrength() {
	s.cfg.Sizing = config.SizingFraction
	s.cfg.MinTradeAmount = 0
	controller := NewController(s.cfg)
	controller.Limits().RollOver(time.Now(), s.state.Equity())

	weak, err := controller.Evaluate(buySignal(0.3), snapshotAtPrice(50), s.state)
	s.Require().NoError(err)
	strong, err := controller.Evaluate(buySignal(1.0), snapshotAtPrice(50), s.state)
	s.Require().NoError(err)

	s.Require().True(weak.Intent.IsSome())
	s.Require().True(strong.Intent.IsSome())
	s.True(strong.Intent.Unwrap().Quantity.GreaterThan(weak.Intent.Unwrap().Quantity))
}

func (s *ControllerTestSuite) TestATRSizing() {
	s.cfg.Sizing = config.SizingATR
	s.cfg.MinTradeAmount = 0
	controller := NewController(s.cfg)
	controller.Limits().RollOver(time.Now(), s.state.Equity())

	// risk 1% of 100000 = 1000, ATR 2 gives 500 shares, notional 25000.
	verdict, err := controller.Evaluate(buySignal(0.8), snapshotAtPrice(50), s.state)
	s.Require().NoError(err)
	s.Require().True(verdict.Intent.IsSome())
	s.True(verdict.Intent.Unwrap().Quantity.Equal(decimal.NewFromInt(500)))
}

func (s *ControllerTestSuite) TestATRSizingNeedsDefinedATR() {
	s.cfg.Sizing = config.SizingATR
	controller := NewController(s.cfg)
	controller.Limits().RollOver(time.Now(), s.state.Equity())

	snapshot := snapshotAtPrice(50)
	snapshot.ATR = optional.None[decimal.Decimal]()

	_, err := controller.Evaluate(buySignal(0.8), snapshot, s.state)
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeInsufficientData))
	s.True(errors.IsInsufficientDataError(err))
}

func (s *ControllerTestSuite) TestKellySizingPositive() {
	s.cfg.Sizing = config.SizingKelly
	s.cfg.MinTradeAmount = 0
	controller := NewController(s.cfg)
	controller.Limits().RollOver(time.Now(), s.state.Equity())

	verdict, err := controller.Evaluate(buySignal(0.5), snapshotAtPrice(50), s.state)
	s.Require().NoError(err)
	s.Require().True(verdict.Intent.IsSome())
	s.True(verdict.Intent.Unwrap().Quantity.Sign() > 0)
}

func (s *ControllerTestSuite) TestStopLossForcesFullExit() {
	controller := NewController(s.cfg)
	s.open(controller, 100, 50)

	exit := controller.CheckExit(types.Hold("TEST", time.Now(), "technical"), snapshotAtPrice(47), s.state)
	s.Require().True(exit.IsSome())

	intent := exit.Unwrap()
	s.Equal(types.SideSell, intent.Side)
	s.Equal(types.OrderReasonStopLoss, intent.Reason)
	s.True(intent.Quantity.Equal(s.state.Quantity()))
}

func (s *ControllerTestSuite) TestTakeProfitExit() {
	controller := NewController(s.cfg)
	s.open(controller, 100, 50)

	exit := controller.CheckExit(types.Hold("TEST", time.Now(), "technical"), snapshotAtPrice(56), s.state)
	s.Require().True(exit.IsSome())
	s.Equal(types.OrderReasonTakeProfit, exit.Unwrap().Reason)
}

func (s *ControllerTestSuite) TestTrailingStopExit() {
	s.cfg.TrailingStop = true
	controller := NewController(s.cfg)
	s.open(controller, 100, 50)

	// Price rises to 54 then falls 6% off that high without touching the
	// fixed stop at 47.5.
	s.state.Mark(time.Now(), decimal.NewFromInt(54))

	exit := controller.CheckExit(types.Hold("TEST", time.Now(), "technical"), snapshotAtPrice(50.7), s.state)
	s.Require().True(exit.IsSome())
	s.Equal(types.OrderReasonTrailingStop, exit.Unwrap().Reason)
}

func (s *ControllerTestSuite) TestNoExitInsideBand() {
	controller := NewController(s.cfg)
	s.open(controller, 100, 50)

	exit := controller.CheckExit(types.Hold("TEST", time.Now(), "technical"), snapshotAtPrice(51), s.state)
	s.True(exit.IsNone())
}
