package datasource

import (
	"context"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/tidemark-lab/tidemark/internal/logger"
	"github.com/tidemark-lab/tidemark/internal/types"
)

type DataSourceTestSuite struct {
	suite.Suite
}

func TestDataSourceTestSuite(t *testing.T) {
	suite.Run(t, new(DataSourceTestSuite))
}

func (s *DataSourceTestSuite) TestSliceSourceReplaysInOrder() {
	bars := []types.Bar{
		{Symbol: "TEST", Time: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: decimal.NewFromInt(1), High: decimal.NewFromInt(1), Low: decimal.NewFromInt(1), Close: decimal.NewFromInt(1), Volume: decimal.NewFromInt(1)},
		{Symbol: "TEST", Time: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Open: decimal.NewFromInt(2), High: decimal.NewFromInt(2), Low: decimal.NewFromInt(2), Close: decimal.NewFromInt(2), Volume: decimal.NewFromInt(1)},
	}

	source := NewSliceSource(bars)
	ctx := context.Background()

	first, err := source.Next(ctx)
	s.Require().NoError(err)
	s.True(first.Time.Equal(bars[0].Time))

	second, err := source.Next(ctx)
	s.Require().NoError(err)
	s.True(second.Time.Equal(bars[1].Time))

	_, err = source.Next(ctx)
	s.Require().ErrorIs(err, ErrEndOfData)
}

func (s *DataSourceTestSuite) TestSliceSourceHonorsCancellation() {
	source := NewSliceSource(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := source.Next(ctx)
	s.Require().ErrorIs(err, context.Canceled)
}

// mockKlinesService returns a canned kline page per poll.
type mockKlinesService struct {
	klines []*binance.Kline
	err    error
}

func (m *mockKlinesService) Symbol(string) KlinesService   { return m }
func (m *mockKlinesService) Interval(string) KlinesService { return m }
func (m *mockKlinesService) Limit(int) KlinesService       { return m }

func (m *mockKlinesService) Do(context.Context) ([]*binance.Kline, error) {
	return m.klines, m.err
}

func (s *DataSourceTestSuite) TestBinanceSourceEmitsClosedKlineOnce() {
	closedOpen := time.Now().Add(-2 * time.Minute).UnixMilli()
	mock := &mockKlinesService{
		klines: []*binance.Kline{
			{
				OpenTime:  closedOpen,
				CloseTime: time.Now().Add(-time.Minute).UnixMilli(),
				Open:      "100", High: "101", Low: "99", Close: "100.5", Volume: "12",
			},
			{
				// Still forming, must not be emitted.
				OpenTime:  time.Now().Add(-time.Minute).UnixMilli(),
				CloseTime: time.Now().Add(time.Minute).UnixMilli(),
				Open:      "100.5", High: "101", Low: "100", Close: "100.7", Volume: "3",
			},
		},
	}

	source := NewBinanceSourceWithFetcher("BTCUSDT", "1m", 10*time.Millisecond, logger.NewNopLogger(),
		func() KlinesService { return mock })

	bar, err := source.Next(context.Background())
	s.Require().NoError(err)
	s.True(bar.Time.Equal(time.UnixMilli(closedOpen).UTC()))
	s.True(bar.Close.Equal(decimal.NewFromFloat(100.5)))

	// The same closed kline must not be emitted again; with no newer
	// candle the source blocks until cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = source.Next(ctx)
	s.Require().ErrorIs(err, context.DeadlineExceeded)
}

func (s *DataSourceTestSuite) TestBinanceSourceMalformedKline() {
	mock := &mockKlinesService{
		klines: []*binance.Kline{{
			OpenTime:  time.Now().Add(-2 * time.Minute).UnixMilli(),
			CloseTime: time.Now().Add(-time.Minute).UnixMilli(),
			Open:      "not-a-number", High: "1", Low: "1", Close: "1", Volume: "1",
		}},
	}

	source := NewBinanceSourceWithFetcher("BTCUSDT", "1m", 10*time.Millisecond, logger.NewNopLogger(),
		func() KlinesService { return mock })

	_, err := source.Next(context.Background())
	s.Require().Error(err)
}
