package strategy

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/tidemark-lab/tidemark/internal/config"
	"github.com/tidemark-lab/tidemark/internal/indicator"
	"github.com/tidemark-lab/tidemark/internal/types"
	"github.com/tidemark-lab/tidemark/pkg/errors"
)

type StrategyTestSuite struct {
	suite.Suite
	cfg config.StrategyConfig
}

func TestStrategyTestSuite(t *testing.T) {
	suite.Run(t, new(StrategyTestSuite))
}

func (s *StrategyTestSuite) SetupTest() {
	s.cfg = config.StrategyConfig{
		Kind:                config.StrategyTechnical,
		RequireMACross:      true,
		RequireMACDCross:    false,
		RSIOverbought:       70,
		RSIOversold:         30,
		MomentumChangeRate:  0.01,
		MomentumVolumeRatio: 1.5,
	}
}

func snapshotWith(day int, maShort, maLong, rsi float64) indicator.Snapshot {
	return indicator.Snapshot{
		Time:    time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
		Close:   decimal.NewFromInt(100),
		Volume:  decimal.NewFromInt(1000),
		MAShort: optional.Some(decimal.NewFromFloat(maShort)),
		MALong:  optional.Some(decimal.NewFromFloat(maLong)),
		RSI:     optional.Some(decimal.NewFromFloat(rsi)),
	}
}

func (s *StrategyTestSuite) TestUnknownKindRejected() {
	s.cfg.Kind = "martingale"

	_, err := New("TEST", s.cfg)
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeUnknownStrategy))
}

func (s *StrategyTestSuite) TestHoldBeforeLookback() {
	strat, err := New("TEST", s.cfg)
	s.Require().NoError(err)

	empty := indicator.Snapshot{Time: time.Now(), Close: decimal.NewFromInt(100)}
	signal, err := strat.Evaluate(empty, empty)
	s.Require().NoError(err)
	s.Equal(types.DirectionHold, signal.Direction)
}

func (s *StrategyTestSuite) TestGoldenCrossFiresExactlyOnce() {
	strat, err := New("TEST", s.cfg)
	s.Require().NoError(err)

	below := snapshotWith(1, 98, 100, 50)
	crossed := snapshotWith(2, 101, 100, 50)
	stillAbove := snapshotWith(3, 103, 100, 50)

	signal, err := strat.Evaluate(below, crossed)
	s.Require().NoError(err)
	s.Equal(types.DirectionBuy, signal.Direction)
	s.True(signal.Strength.GreaterThan(decimal.Zero))
	s.True(signal.Strength.LessThanOrEqual(decimal.NewFromInt(1)))

	// The short MA staying above the long MA must not fire again.
	signal, err = strat.Evaluate(crossed, stillAbove)
	s.Require().NoError(err)
	s.Equal(types.DirectionHold, signal.Direction)
}

func (s *StrategyTestSuite) TestOverboughtBlocksBuy() {
	strat, err := New("TEST", s.cfg)
	s.Require().NoError(err)

	signal, err := strat.Evaluate(snapshotWith(1, 98, 100, 75), snapshotWith(2, 101, 100, 75))
	s.Require().NoError(err)
	s.Equal(types.DirectionHold, signal.Direction)
}

func (s *StrategyTestSuite) TestDeathCrossSells() {
	strat, err := New("TEST", s.cfg)
	s.Require().NoError(err)

	signal, err := strat.Evaluate(snapshotWith(1, 101, 100, 50), snapshotWith(2, 98, 100, 50))
	s.Require().NoError(err)
	s.Equal(types.DirectionSell, signal.Direction)
}

func (s *StrategyTestSuite) TestOverboughtAloneSells() {
	strat, err := New("TEST", s.cfg)
	s.Require().NoError(err)

	signal, err := strat.Evaluate(snapshotWith(1, 102, 100, 65), snapshotWith(2, 102, 100, 80))
	s.Require().NoError(err)
	s.Equal(types.DirectionSell, signal.Direction)
}

func (s *StrategyTestSuite) TestStrengthGrowsWithConfirmation() {
	strat, err := New("TEST", s.cfg)
	s.Require().NoError(err)

	bare, err := strat.Evaluate(snapshotWith(1, 98, 100, 50), snapshotWith(2, 101, 100, 50))
	s.Require().NoError(err)

	prev := snapshotWith(1, 98, 100, 50)
	curr := snapshotWith(2, 101, 100, 25)
	curr.VolumeMA = optional.Some(decimal.NewFromInt(500))
	curr.Bollinger = optional.Some(indicator.BollingerValue{
		Upper:  decimal.NewFromInt(120),
		Middle: decimal.NewFromInt(110),
		Lower:  decimal.NewFromInt(100),
	})

	confirmed, err := strat.Evaluate(prev, curr)
	s.Require().NoError(err)
	s.True(confirmed.Strength.GreaterThan(bare.Strength))
}

func (s *StrategyTestSuite) TestMomentumBuy() {
	s.cfg.Kind = config.StrategyMomentum
	strat, err := New("TEST", s.cfg)
	s.Require().NoError(err)

	curr := indicator.Snapshot{
		Time:       time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Close:      decimal.NewFromInt(102),
		Volume:     decimal.NewFromInt(2000),
		VolumeMA:   optional.Some(decimal.NewFromInt(1000)),
		ChangeRate: optional.Some(decimal.NewFromFloat(0.02)),
	}

	signal, err := strat.Evaluate(indicator.Snapshot{}, curr)
	s.Require().NoError(err)
	s.Equal(types.DirectionBuy, signal.Direction)
}

func (s *StrategyTestSuite) TestMomentumNeedsVolumeConfirmation() {
	s.cfg.Kind = config.StrategyMomentum
	strat, err := New("TEST", s.cfg)
	s.Require().NoError(err)

	curr := indicator.Snapshot{
		Time:       time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Close:      decimal.NewFromInt(102),
		Volume:     decimal.NewFromInt(1000),
		VolumeMA:   optional.Some(decimal.NewFromInt(1000)),
		ChangeRate: optional.Some(decimal.NewFromFloat(0.02)),
	}

	signal, err := strat.Evaluate(indicator.Snapshot{}, curr)
	s.Require().NoError(err)
	s.Equal(types.DirectionHold, signal.Direction)
}

func (s *StrategyTestSuite) TestMomentumReversalSells() {
	s.cfg.Kind = config.StrategyMomentum
	strat, err := New("TEST", s.cfg)
	s.Require().NoError(err)

	curr := indicator.Snapshot{
		Time:       time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Close:      decimal.NewFromInt(98),
		Volume:     decimal.NewFromInt(800),
		VolumeMA:   optional.Some(decimal.NewFromInt(1000)),
		ChangeRate: optional.Some(decimal.NewFromFloat(-0.03)),
	}

	signal, err := strat.Evaluate(indicator.Snapshot{}, curr)
	s.Require().NoError(err)
	s.Equal(types.DirectionSell, signal.Direction)
}
