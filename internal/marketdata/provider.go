package marketdata

import (
	"context"
	"time"

	"github.com/tidemark-lab/tidemark/internal/types"
)

// OnProgress reports download progress as bars are received.
type OnProgress func(received int)

// Provider streams historical bars for a symbol and date range to a
// callback, in ascending time order.
type Provider interface {
	Fetch(ctx context.Context, symbol string, start, end time.Time, each func(types.Bar) error, progress OnProgress) error
}
