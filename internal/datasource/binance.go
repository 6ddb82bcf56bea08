package datasource

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tidemark-lab/tidemark/internal/logger"
	"github.com/tidemark-lab/tidemark/internal/types"
	"github.com/tidemark-lab/tidemark/pkg/errors"
)

// KlinesService is the slice of the Binance kline API the live source uses,
// an interface so tests can substitute the exchange.
type KlinesService interface {
	Symbol(symbol string) KlinesService
	Interval(interval string) KlinesService
	Limit(limit int) KlinesService
	Do(ctx context.Context) ([]*binance.Kline, error)
}

type realKlinesService struct {
	service *binance.KlinesService
}

func (s *realKlinesService) Symbol(symbol string) KlinesService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realKlinesService) Interval(interval string) KlinesService {
	s.service = s.service.Interval(interval)

	return s
}

func (s *realKlinesService) Limit(limit int) KlinesService {
	s.service = s.service.Limit(limit)

	return s
}

func (s *realKlinesService) Do(ctx context.Context) ([]*binance.Kline, error) {
	return s.service.Do(ctx)
}

// KlineFetcher builds a fresh klines request per poll.
type KlineFetcher func() KlinesService

// BinanceSource follows a symbol's klines and emits each interval's bar once
// the interval has closed. Open candles are never emitted, so the live feed
// honors the same no-lookahead rule as a replay.
type BinanceSource struct {
	fetch        KlineFetcher
	symbol       string
	interval     string
	pollInterval time.Duration
	logger       *logger.Logger

	lastOpenTime int64
}

func NewBinanceSource(symbol, interval string, pollInterval time.Duration, log *logger.Logger) *BinanceSource {
	client := binance.NewClient("", "")

	return NewBinanceSourceWithFetcher(symbol, interval, pollInterval, log, func() KlinesService {
		return &realKlinesService{service: client.NewKlinesService()}
	})
}

// NewBinanceSourceWithFetcher injects the kline fetcher, for tests.
func NewBinanceSourceWithFetcher(symbol, interval string, pollInterval time.Duration, log *logger.Logger, fetch KlineFetcher) *BinanceSource {
	return &BinanceSource{
		fetch:        fetch,
		symbol:       symbol,
		interval:     interval,
		pollInterval: pollInterval,
		logger:       log,
	}
}

func (b *BinanceSource) Next(ctx context.Context) (types.Bar, error) {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		bar, found, err := b.poll(ctx)
		if err != nil {
			return types.Bar{}, err
		}

		if found {
			return bar, nil
		}

		select {
		case <-ctx.Done():
			return types.Bar{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// poll fetches the two most recent klines and returns the latest closed one
// not yet emitted.
func (b *BinanceSource) poll(ctx context.Context) (types.Bar, bool, error) {
	klines, err := b.fetch().
		Symbol(b.symbol).
		Interval(b.interval).
		Limit(2).
		Do(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return types.Bar{}, false, ctx.Err()
		}

		return types.Bar{}, false, errors.Wrap(errors.ErrCodeMarketDataFetchFailed,
			"failed to fetch klines from Binance", err)
	}

	now := time.Now().UnixMilli()

	for i := len(klines) - 1; i >= 0; i-- {
		kline := klines[i]
		if kline.CloseTime > now {
			// Still forming.
			continue
		}

		if kline.OpenTime <= b.lastOpenTime {
			return types.Bar{}, false, nil
		}

		bar, err := b.barFromKline(kline)
		if err != nil {
			return types.Bar{}, false, err
		}

		b.lastOpenTime = kline.OpenTime
		b.logger.Debug("new bar", zap.String("symbol", b.symbol), zap.Time("time", bar.Time))

		return bar, true, nil
	}

	return types.Bar{}, false, nil
}

func (b *BinanceSource) barFromKline(kline *binance.Kline) (types.Bar, error) {
	fields := map[string]string{
		"open":   kline.Open,
		"high":   kline.High,
		"low":    kline.Low,
		"close":  kline.Close,
		"volume": kline.Volume,
	}

	parsed := make(map[string]decimal.Decimal, len(fields))

	for name, raw := range fields {
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return types.Bar{}, errors.Wrapf(errors.ErrCodeMalformedBar, err,
				"unparseable kline %s %q", name, raw)
		}

		parsed[name] = value
	}

	return types.Bar{
		Symbol: b.symbol,
		Time:   time.UnixMilli(kline.OpenTime).UTC(),
		Open:   parsed["open"],
		High:   parsed["high"],
		Low:    parsed["low"],
		Close:  parsed["close"],
		Volume: parsed["volume"],
	}, nil
}

func (b *BinanceSource) Close() error {
	return nil
}
