package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"

	"github.com/tidemark-lab/tidemark/pkg/errors"
)

// Side of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderReason tags why an intent was produced.
const (
	OrderReasonStrategy     = "strategy"
	OrderReasonStopLoss     = "stop_loss"
	OrderReasonTakeProfit   = "take_profit"
	OrderReasonTrailingStop = "trailing_stop"
)

// VetoReason is the terminal, non-error outcome of a rejected signal.
// The risk controller applies its checks in a fixed order, so when several
// limits are breached at once the first one listed here wins.
type VetoReason string

const (
	VetoFrequencyCap     VetoReason = "frequency-cap"
	VetoDrawdownBreaker  VetoReason = "drawdown-breaker"
	VetoDailyLossBreaker VetoReason = "daily-loss-breaker"
	VetoSizeOutOfRange   VetoReason = "size-out-of-range"
	VetoPositionCap      VetoReason = "position-cap"
)

// OrderIntent is a risk-approved, not-yet-executed trade request.
type OrderIntent struct {
	ID     string `yaml:"id" json:"id" validate:"required,uuid"`
	Symbol string `yaml:"symbol" json:"symbol" validate:"required"`
	Side   Side   `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	// Quantity is the order size in units of the instrument.
	Quantity decimal.Decimal `yaml:"quantity" json:"quantity"`
	// Limit is the optional limit price; a market order when None.
	Limit optional.Option[decimal.Decimal] `yaml:"limit" json:"limit"`
	// Reason is one of the OrderReason tags.
	Reason string `yaml:"reason" json:"reason" validate:"required"`
	// Signal is the signal that originated the intent.
	Signal Signal `yaml:"signal" json:"signal"`
}

// Validate checks the intent before it reaches an execution client.
func (o *OrderIntent) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order intent", err)
	}

	if o.Quantity.Sign() <= 0 {
		return errors.Newf(errors.ErrCodeInvalidOrder, "order quantity must be positive, got %s", o.Quantity)
	}

	if o.Limit.IsSome() && o.Limit.Unwrap().Sign() <= 0 {
		return errors.New(errors.ErrCodeInvalidOrder, "limit price must be positive")
	}

	return nil
}

// Fill is the immutable record of what actually executed, real or simulated.
// Fills are the only inputs that mutate portfolio state.
type Fill struct {
	OrderID    string          `yaml:"order_id" json:"order_id" csv:"order_id"`
	Symbol     string          `yaml:"symbol" json:"symbol" csv:"symbol"`
	Side       Side            `yaml:"side" json:"side" csv:"side"`
	Quantity   decimal.Decimal `yaml:"quantity" json:"quantity" csv:"quantity"`
	Price      decimal.Decimal `yaml:"price" json:"price" csv:"price"`
	Commission decimal.Decimal `yaml:"commission" json:"commission" csv:"commission"`
	Time       time.Time       `yaml:"time" json:"time" csv:"time"`
	// Reason carries the intent's reason tag into the ledger.
	Reason string `yaml:"reason" json:"reason" csv:"reason"`
	// Strategy tags the variant whose signal led to the fill.
	Strategy string `yaml:"strategy" json:"strategy" csv:"strategy"`
}

// Notional is price times quantity, before commission.
func (f Fill) Notional() decimal.Decimal {
	return f.Price.Mul(f.Quantity)
}
