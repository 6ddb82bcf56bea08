// Package risk is the sole authority between a signal and an order. Every
// buy passes a fixed sequence of gates; the first breached limit vetoes the
// signal and later gates are not consulted. A veto is a normal outcome,
// recorded and done, never an error.
package risk

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"

	"github.com/tidemark-lab/tidemark/internal/config"
	"github.com/tidemark-lab/tidemark/internal/indicator"
	"github.com/tidemark-lab/tidemark/internal/portfolio"
	"github.com/tidemark-lab/tidemark/internal/types"
)

// Veto records why a signal produced no order.
type Veto struct {
	Reason  types.VetoReason
	Message string
}

// Verdict is the controller's answer for one signal: at most one of Intent
// and Veto is set; both empty means the signal needed no action (a hold, or
// a sell with nothing held).
type Verdict struct {
	Intent optional.Option[types.OrderIntent]
	Veto   optional.Option[Veto]
}

func noAction() Verdict {
	return Verdict{}
}

func vetoed(reason types.VetoReason, format string, args ...any) Verdict {
	return Verdict{Veto: optional.Some(Veto{
		Reason:  reason,
		Message: fmt.Sprintf(format, args...),
	})}
}

func approved(intent types.OrderIntent) Verdict {
	return Verdict{Intent: optional.Some(intent)}
}

// Controller gates signals and raises protective exits.
type Controller struct {
	cfg    config.RiskConfig
	limits *LimitState
}

func NewController(cfg config.RiskConfig) *Controller {
	return &Controller{
		cfg:    cfg,
		limits: NewLimitState(),
	}
}

// Limits exposes the rolling limit state for the engine's bar loop.
func (c *Controller) Limits() *LimitState {
	return c.limits
}

// CheckExit raises a forced full-position sell when the bar's close breaches
// the stop-loss, take-profit or trailing-stop level. It runs before the
// strategy is consulted, and its intent overrides whatever the strategy
// would have said for the bar.
func (c *Controller) CheckExit(signal types.Signal, snapshot indicator.Snapshot, state *portfolio.State) optional.Option[types.OrderIntent] {
	if state.Quantity().Sign() <= 0 {
		return optional.None[types.OrderIntent]()
	}

	close := snapshot.Close
	avgCost := state.AvgCost()
	one := decimal.NewFromInt(1)

	stopLevel := avgCost.Mul(one.Sub(decimal.NewFromFloat(c.cfg.StopLoss)))
	if close.LessThanOrEqual(stopLevel) {
		return optional.Some(c.exitIntent(signal, state, types.OrderReasonStopLoss))
	}

	profitLevel := avgCost.Mul(one.Add(decimal.NewFromFloat(c.cfg.TakeProfit)))
	if close.GreaterThanOrEqual(profitLevel) {
		return optional.Some(c.exitIntent(signal, state, types.OrderReasonTakeProfit))
	}

	if c.cfg.TrailingStop && state.HighSinceEntry().Sign() > 0 {
		trailLevel := state.HighSinceEntry().Mul(one.Sub(decimal.NewFromFloat(c.cfg.StopLoss)))
		if close.LessThanOrEqual(trailLevel) {
			return optional.Some(c.exitIntent(signal, state, types.OrderReasonTrailingStop))
		}
	}

	return optional.None[types.OrderIntent]()
}

func (c *Controller) exitIntent(signal types.Signal, state *portfolio.State, reason string) types.OrderIntent {
	return types.OrderIntent{
		ID:       uuid.NewString(),
		Symbol:   signal.Symbol,
		Side:     types.SideSell,
		Quantity: state.Quantity(),
		Reason:   reason,
		Signal:   signal,
	}
}

// Evaluate gates one strategy signal. Gate order for buys is fixed:
// frequency cap, drawdown breaker, daily loss breaker, size range, position
// cap. The breakers stop new exposure only; sells pass so a position can
// always be closed.
func (c *Controller) Evaluate(signal types.Signal, snapshot indicator.Snapshot, state *portfolio.State) (Verdict, error) {
	switch signal.Direction {
	case types.DirectionHold:
		return noAction(), nil
	case types.DirectionSell:
		return c.evaluateSell(signal, state), nil
	case types.DirectionBuy:
		return c.evaluateBuy(signal, snapshot, state)
	default:
		return noAction(), nil
	}
}

func (c *Controller) evaluateSell(signal types.Signal, state *portfolio.State) Verdict {
	if state.Quantity().Sign() <= 0 {
		// Nothing to sell is a non-event, not a veto.
		return noAction()
	}

	if c.limits.DailyTrades() >= c.cfg.MaxDailyTrades {
		return vetoed(types.VetoFrequencyCap,
			"daily trade count %d reached cap %d", c.limits.DailyTrades(), c.cfg.MaxDailyTrades)
	}

	return approved(types.OrderIntent{
		ID:       uuid.NewString(),
		Symbol:   signal.Symbol,
		Side:     types.SideSell,
		Quantity: state.Quantity(),
		Reason:   types.OrderReasonStrategy,
		Signal:   signal,
	})
}

func (c *Controller) evaluateBuy(signal types.Signal, snapshot indicator.Snapshot, state *portfolio.State) (Verdict, error) {
	if c.limits.DailyTrades() >= c.cfg.MaxDailyTrades {
		return vetoed(types.VetoFrequencyCap,
			"daily trade count %d reached cap %d", c.limits.DailyTrades(), c.cfg.MaxDailyTrades), nil
	}

	maxDrawdown := decimal.NewFromFloat(c.cfg.MaxDrawdown)
	if state.Drawdown().GreaterThanOrEqual(maxDrawdown) {
		return vetoed(types.VetoDrawdownBreaker,
			"drawdown %s breaches limit %s", state.Drawdown().StringFixed(4), maxDrawdown.StringFixed(4)), nil
	}

	maxDailyLoss := decimal.NewFromFloat(c.cfg.MaxDailyLoss)
	if dailyLoss := c.limits.DailyLoss(state.Equity()); dailyLoss.GreaterThanOrEqual(maxDailyLoss) {
		return vetoed(types.VetoDailyLossBreaker,
			"daily loss %s breaches limit %s", dailyLoss.StringFixed(4), maxDailyLoss.StringFixed(4)), nil
	}

	notional, err := targetNotional(c.cfg, signal, snapshot, state)
	if err != nil {
		return noAction(), err
	}

	minAmount := decimal.NewFromFloat(c.cfg.MinTradeAmount)
	maxAmount := decimal.NewFromFloat(c.cfg.MaxTradeAmount)

	if notional.LessThan(minAmount) || notional.GreaterThan(maxAmount) {
		return vetoed(types.VetoSizeOutOfRange,
			"notional %s outside [%s, %s]", notional.StringFixed(2), minAmount.StringFixed(2), maxAmount.StringFixed(2)), nil
	}

	quantity := roundToLot(notional.Div(snapshot.Close), c.cfg.LotSize)
	if quantity.Sign() <= 0 {
		return vetoed(types.VetoSizeOutOfRange,
			"notional %s rounds to zero lots at price %s", notional.StringFixed(2), snapshot.Close), nil
	}

	// Re-check the range after lot rounding shrinks the order.
	rounded := quantity.Mul(snapshot.Close)
	if rounded.LessThan(minAmount) {
		return vetoed(types.VetoSizeOutOfRange,
			"rounded notional %s below minimum %s", rounded.StringFixed(2), minAmount.StringFixed(2)), nil
	}

	maxPosition := state.Equity().Mul(decimal.NewFromFloat(c.cfg.MaxSinglePosition))
	if state.MarketValue().Add(rounded).GreaterThan(maxPosition) {
		return vetoed(types.VetoPositionCap,
			"position value %s would exceed cap %s", state.MarketValue().Add(rounded).StringFixed(2), maxPosition.StringFixed(2)), nil
	}

	return approved(types.OrderIntent{
		ID:       uuid.NewString(),
		Symbol:   signal.Symbol,
		Side:     types.SideBuy,
		Quantity: quantity,
		Reason:   types.OrderReasonStrategy,
		Signal:   signal,
	}), nil
}
