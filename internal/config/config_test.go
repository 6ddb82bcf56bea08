package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/tidemark-lab/tidemark/pkg/errors"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (s *ConfigTestSuite) TestDefaultsApplied() {
	cfg, err := Parse([]byte(`symbol: "600519"`))
	s.Require().NoError(err)

	s.Equal("600519", cfg.Symbol)
	s.Equal(5, cfg.Indicators.MAShort)
	s.Equal(20, cfg.Indicators.MALong)
	s.Equal(14, cfg.Indicators.RSIPeriod)
	s.Equal(StrategyTechnical, cfg.Strategy.Kind)
	s.Equal(SizingFixedAmount, cfg.Risk.Sizing)
	s.Equal(100, cfg.Risk.LotSize)
	s.Equal(FillAtOpen, cfg.Execution.FillPrice)
	s.Equal(10*time.Second, cfg.Execution.OrderTimeout)
	s.Equal(252, cfg.Backtest.PeriodsPerYear)
	s.InDelta(0.03, cfg.Backtest.RiskFreeRate, 1e-12)
}

func (s *ConfigTestSuite) TestOverridesSurviveDefaults() {
	content := `
symbol: BTCUSDT
indicators:
  ma_short: 7
  ma_long: 30
risk:
  sizing: atr
  trade_amount: 25000
strategy:
  kind: momentum
`
	cfg, err := Parse([]byte(content))
	s.Require().NoError(err)

	s.Equal(7, cfg.Indicators.MAShort)
	s.Equal(30, cfg.Indicators.MALong)
	s.Equal(SizingATR, cfg.Risk.Sizing)
	s.Equal(StrategyMomentum, cfg.Strategy.Kind)
	// Untouched sections keep their defaults.
	s.Equal(14, cfg.Indicators.RSIPeriod)
}

func (s *ConfigTestSuite) TestMissingSymbolRejected() {
	_, err := Parse([]byte(`{}`))
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (s *ConfigTestSuite) TestShortMAMustBeBelowLongMA() {
	content := `
symbol: TEST
indicators:
  ma_short: 20
  ma_long: 20
`
	_, err := Parse([]byte(content))
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (s *ConfigTestSuite) TestStopLossMustBeBelowTakeProfit() {
	content := `
symbol: TEST
risk:
  stop_loss: 0.10
  take_profit: 0.05
`
	_, err := Parse([]byte(content))
	s.Require().Error(err)
}

func (s *ConfigTestSuite) TestMinTradeAmountMustNotExceedMax() {
	content := `
symbol: TEST
risk:
  min_trade_amount: 60000
  max_trade_amount: 50000
`
	_, err := Parse([]byte(content))
	s.Require().Error(err)
}

func (s *ConfigTestSuite) TestUnknownSizingRejected() {
	content := `
symbol: TEST
risk:
  sizing: martingale
`
	_, err := Parse([]byte(content))
	s.Require().Error(err)
}

func (s *ConfigTestSuite) TestInvalidYAMLRejected() {
	_, err := Parse([]byte(`symbol: [`))
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (s *ConfigTestSuite) TestSchemaGeneration() {
	var cfg Config

	schema, err := cfg.GenerateSchemaJSON()
	s.Require().NoError(err)
	s.Contains(schema, "ma_short")
	s.Contains(schema, "tidemark-config")
}
