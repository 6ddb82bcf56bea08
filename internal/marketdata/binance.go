package marketdata

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"github.com/tidemark-lab/tidemark/internal/types"
	"github.com/tidemark-lab/tidemark/pkg/errors"
)

// Binance caps kline responses at 500 rows; the fetch pages by open time.
const binancePageSize = 500

// BinanceProvider fetches historical klines from the public Binance API.
// No credentials needed for market data.
type BinanceProvider struct {
	client   *binance.Client
	interval string
}

func NewBinanceProvider(interval string) *BinanceProvider {
	return &BinanceProvider{
		client:   binance.NewClient("", ""),
		interval: interval,
	}
}

func (p *BinanceProvider) Fetch(ctx context.Context, symbol string, start, end time.Time, each func(types.Bar) error, progress OnProgress) error {
	currentStart := start.UnixMilli()
	endMillis := end.UnixMilli()
	received := 0

	for {
		klines, err := p.client.NewKlinesService().
			Symbol(symbol).
			Interval(p.interval).
			StartTime(currentStart).
			EndTime(endMillis).
			Limit(binancePageSize).
			Do(ctx)
		if err != nil {
			return errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "failed to fetch klines from Binance", err)
		}

		for _, kline := range klines {
			bar, err := barFromKline(symbol, kline)
			if err != nil {
				return err
			}

			if err := each(bar); err != nil {
				return err
			}

			received++
		}

		if progress != nil {
			progress(received)
		}

		if len(klines) < binancePageSize {
			return nil
		}

		currentStart = klines[len(klines)-1].CloseTime + 1
	}
}

func barFromKline(symbol string, kline *binance.Kline) (types.Bar, error) {
	values := make([]decimal.Decimal, 0, 5)

	for _, raw := range []string{kline.Open, kline.High, kline.Low, kline.Close, kline.Volume} {
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return types.Bar{}, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err,
				"unparseable kline field %q", raw)
		}

		values = append(values, value)
	}

	return types.Bar{
		Symbol: symbol,
		Time:   time.UnixMilli(kline.OpenTime).UTC(),
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}, nil
}
