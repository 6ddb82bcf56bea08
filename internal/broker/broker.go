// Package broker executes risk-approved order intents. The simulated client
// and the live Binance client satisfy the same interface, so the decision
// pipeline upstream cannot tell a backtest from a live session.
package broker

import (
	"context"

	"github.com/tidemark-lab/tidemark/internal/types"
)

// ExecutionClient turns an order intent into a fill. A returned error is an
// execution error for this intent only; the caller moves on to the next bar
// and never retries the stale intent.
type ExecutionClient interface {
	SubmitOrder(ctx context.Context, intent types.OrderIntent) (types.Fill, error)
}
