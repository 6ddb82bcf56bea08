package marketdata

import (
	"context"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/shopspring/decimal"

	"github.com/tidemark-lab/tidemark/internal/types"
	"github.com/tidemark-lab/tidemark/pkg/errors"
)

// PolygonProvider fetches daily aggregates from the Polygon REST API.
type PolygonProvider struct {
	client *polygon.Client
}

func NewPolygonProvider(apiKey string) (*PolygonProvider, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "polygon api key is required")
	}

	return &PolygonProvider{client: polygon.New(apiKey)}, nil
}

func (p *PolygonProvider) Fetch(ctx context.Context, symbol string, start, end time.Time, each func(types.Bar) error, progress OnProgress) error {
	params := models.ListAggsParams{
		Ticker:     symbol,
		From:       models.Millis(start),
		To:         models.Millis(end),
		Multiplier: 1,
		Timespan:   models.Day,
	}

	iter := p.client.ListAggs(ctx, &params)
	received := 0

	for iter.Next() {
		agg := iter.Item()

		bar := types.Bar{
			Symbol: symbol,
			Time:   time.Time(agg.Timestamp).UTC(),
			Open:   decimal.NewFromFloat(agg.Open),
			High:   decimal.NewFromFloat(agg.High),
			Low:    decimal.NewFromFloat(agg.Low),
			Close:  decimal.NewFromFloat(agg.Close),
			Volume: decimal.NewFromFloat(agg.Volume),
		}

		if err := each(bar); err != nil {
			return err
		}

		received++

		if progress != nil {
			progress(received)
		}
	}

	if err := iter.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "failed to fetch aggregates from Polygon", err)
	}

	return nil
}
