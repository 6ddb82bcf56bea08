package broker

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/tidemark-lab/tidemark/internal/broker/commission"
	"github.com/tidemark-lab/tidemark/internal/config"
	"github.com/tidemark-lab/tidemark/internal/portfolio"
	"github.com/tidemark-lab/tidemark/internal/types"
	"github.com/tidemark-lab/tidemark/pkg/errors"
)

// Simulated fills every order in full at the current bar's configured price
// point. It reads the portfolio only to refuse orders the account cannot
// cover; applying the fill stays with the caller.
type Simulated struct {
	cfg        config.ExecutionConfig
	commission commission.Schedule
	state      *portfolio.State

	current types.Bar
	hasBar  bool
}

func NewSimulated(cfg config.ExecutionConfig, schedule commission.Schedule, state *portfolio.State) *Simulated {
	return &Simulated{
		cfg:        cfg,
		commission: schedule,
		state:      state,
	}
}

// UpdateBar sets the bar whose prices the next fills will use. The engine
// calls it once per bar before any order reaches SubmitOrder.
func (s *Simulated) UpdateBar(bar types.Bar) {
	s.current = bar
	s.hasBar = true
}

func (s *Simulated) SubmitOrder(ctx context.Context, intent types.OrderIntent) (types.Fill, error) {
	if err := ctx.Err(); err != nil {
		return types.Fill{}, errors.Wrap(errors.ErrCodeOrderFailed, "order cancelled", err)
	}

	if !s.hasBar {
		return types.Fill{}, errors.New(errors.ErrCodeOrderFailed, "no bar available for fill pricing")
	}

	if err := intent.Validate(); err != nil {
		return types.Fill{}, err
	}

	price := s.fillPrice()
	quantity := intent.Quantity

	// A marketable limit fills at the bar price; an unmarketable one is
	// rejected for this bar, never queued.
	if intent.Limit.IsSome() {
		limit := intent.Limit.Unwrap()
		marketable := price.LessThanOrEqual(limit)
		if intent.Side == types.SideSell {
			marketable = price.GreaterThanOrEqual(limit)
		}

		if !marketable {
			return types.Fill{}, errors.Newf(errors.ErrCodeOrderFailed,
				"limit %s not marketable at bar price %s", limit, price)
		}
	}

	switch intent.Side {
	case types.SideBuy:
		cost := price.Mul(quantity)
		fee := s.commission.Calculate(cost)
		if cost.Add(fee).GreaterThan(s.state.Cash()) {
			return types.Fill{}, errors.Newf(errors.ErrCodeInsufficientFunds,
				"buy cost %s exceeds cash %s", cost.Add(fee), s.state.Cash())
		}

	case types.SideSell:
		if s.state.Quantity().Sign() <= 0 {
			return types.Fill{}, errors.New(errors.ErrCodeNoHoldings, "nothing to sell")
		}
		// A sell never exceeds what is actually held, whatever the
		// intent asked for.
		if quantity.GreaterThan(s.state.Quantity()) {
			quantity = s.state.Quantity()
		}
	}

	notional := price.Mul(quantity)

	return types.Fill{
		OrderID:    intent.ID,
		Symbol:     intent.Symbol,
		Side:       intent.Side,
		Quantity:   quantity,
		Price:      price,
		Commission: s.commission.Calculate(notional),
		Time:       s.current.Time,
		Reason:     intent.Reason,
		Strategy:   intent.Signal.Strategy,
	}, nil
}

func (s *Simulated) fillPrice() decimal.Decimal {
	if s.cfg.FillPrice == config.FillAtOpen {
		return s.current.Open
	}

	return s.current.Close
}
