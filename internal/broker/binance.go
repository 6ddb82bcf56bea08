package broker

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"github.com/tidemark-lab/tidemark/internal/config"
	"github.com/tidemark-lab/tidemark/internal/types"
	"github.com/tidemark-lab/tidemark/pkg/errors"
)

// Narrow service interfaces over the Binance client so tests can substitute
// the exchange.

// CreateOrderService mirrors the fluent order builder.
type CreateOrderService interface {
	Symbol(symbol string) CreateOrderService
	Side(side binance.SideType) CreateOrderService
	Type(orderType binance.OrderType) CreateOrderService
	Quantity(quantity string) CreateOrderService
	Price(price string) CreateOrderService
	TimeInForce(tif binance.TimeInForceType) CreateOrderService
	Do(ctx context.Context) (*binance.CreateOrderResponse, error)
}

// BinanceClient is the slice of the Binance API the broker needs.
type BinanceClient interface {
	NewCreateOrderService() CreateOrderService
}

type realBinanceClient struct {
	client *binance.Client
}

func (r *realBinanceClient) NewCreateOrderService() CreateOrderService {
	return &realCreateOrderService{service: r.client.NewCreateOrderService()}
}

type realCreateOrderService struct {
	service *binance.CreateOrderService
}

func (s *realCreateOrderService) Symbol(symbol string) CreateOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCreateOrderService) Side(side binance.SideType) CreateOrderService {
	s.service = s.service.Side(side)

	return s
}

func (s *realCreateOrderService) Type(orderType binance.OrderType) CreateOrderService {
	s.service = s.service.Type(orderType)

	return s
}

func (s *realCreateOrderService) Quantity(quantity string) CreateOrderService {
	s.service = s.service.Quantity(quantity)

	return s
}

func (s *realCreateOrderService) Price(price string) CreateOrderService {
	s.service = s.service.Price(price)

	return s
}

func (s *realCreateOrderService) TimeInForce(tif binance.TimeInForceType) CreateOrderService {
	s.service = s.service.TimeInForce(tif)

	return s
}

func (s *realCreateOrderService) Do(ctx context.Context) (*binance.CreateOrderResponse, error) {
	return s.service.Do(ctx)
}

// Binance submits market orders to the exchange and reports what actually
// filled. Every call is bounded by the configured order timeout; a timeout
// is an execution error for that intent, never an indefinite block.
type Binance struct {
	cfg    config.ExecutionConfig
	client BinanceClient
}

func NewBinance(cfg config.ExecutionConfig, apiKey, secretKey string) *Binance {
	return &Binance{
		cfg:    cfg,
		client: &realBinanceClient{client: binance.NewClient(apiKey, secretKey)},
	}
}

// NewBinanceWithClient injects a client, for tests.
func NewBinanceWithClient(cfg config.ExecutionConfig, client BinanceClient) *Binance {
	return &Binance{cfg: cfg, client: client}
}

func (b *Binance) SubmitOrder(ctx context.Context, intent types.OrderIntent) (types.Fill, error) {
	if err := intent.Validate(); err != nil {
		return types.Fill{}, err
	}

	side := binance.SideTypeBuy
	if intent.Side == types.SideSell {
		side = binance.SideTypeSell
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.OrderTimeout)
	defer cancel()

	service := b.client.NewCreateOrderService().
		Symbol(intent.Symbol).
		Side(side).
		Quantity(intent.Quantity.String())

	if intent.Limit.IsSome() {
		service = service.
			Type(binance.OrderTypeLimit).
			Price(intent.Limit.Unwrap().String()).
			TimeInForce(binance.TimeInForceTypeGTC)
	} else {
		service = service.Type(binance.OrderTypeMarket)
	}

	response, err := service.Do(ctx)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return types.Fill{}, errors.Wrapf(errors.ErrCodeOrderTimeout, err,
				"order %s timed out after %s", intent.ID, b.cfg.OrderTimeout)
		}

		return types.Fill{}, errors.Wrap(errors.ErrCodeOrderFailed, "failed to place order on Binance", err)
	}

	return fillFromResponse(intent, response)
}

// fillFromResponse flattens a multi-part exchange fill into a single fill
// record at the quantity-weighted average price.
func fillFromResponse(intent types.OrderIntent, response *binance.CreateOrderResponse) (types.Fill, error) {
	executed, err := decimal.NewFromString(response.ExecutedQuantity)
	if err != nil || executed.Sign() <= 0 {
		return types.Fill{}, errors.Newf(errors.ErrCodeOrderFailed,
			"order %s reported no executed quantity", intent.ID)
	}

	notional := decimal.Zero
	commission := decimal.Zero

	for _, part := range response.Fills {
		price, perr := decimal.NewFromString(part.Price)
		if perr != nil {
			return types.Fill{}, errors.Wrap(errors.ErrCodeOrderFailed, "unparseable fill price", perr)
		}

		qty, qerr := decimal.NewFromString(part.Quantity)
		if qerr != nil {
			return types.Fill{}, errors.Wrap(errors.ErrCodeOrderFailed, "unparseable fill quantity", qerr)
		}

		notional = notional.Add(price.Mul(qty))

		if fee, ferr := decimal.NewFromString(part.Commission); ferr == nil {
			commission = commission.Add(fee)
		}
	}

	return types.Fill{
		OrderID:    intent.ID,
		Symbol:     intent.Symbol,
		Side:       intent.Side,
		Quantity:   executed,
		Price:      notional.Div(executed),
		Commission: commission,
		Time:       time.UnixMilli(response.TransactTime).UTC(),
		Reason:     intent.Reason,
		Strategy:   intent.Signal.Strategy,
	}, nil
}
