// Package config holds the single immutable configuration structure for a
// pipeline instance. It is constructed once at startup, validated, and
// passed explicitly to every component; nothing reads configuration
// ambiently.
package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/tidemark-lab/tidemark/pkg/errors"
)

// SizingMethod selects how the risk controller sizes buy orders.
type SizingMethod string

const (
	SizingFixedAmount SizingMethod = "fixed_amount"
	SizingFraction    SizingMethod = "fraction"
	SizingKelly       SizingMethod = "kelly"
	SizingATR         SizingMethod = "atr"
)

// FillPrice selects which price of the decision bar a simulated fill uses.
type FillPrice string

const (
	FillAtOpen  FillPrice = "open"
	FillAtClose FillPrice = "close"
)

// StrategyKind selects the signal generator variant.
type StrategyKind string

const (
	StrategyTechnical StrategyKind = "technical"
	StrategyMomentum  StrategyKind = "momentum"
)

// IndicatorConfig enumerates indicator parameters. The engine's required
// lookback is the maximum across these.
type IndicatorConfig struct {
	MAShort      int     `yaml:"ma_short" json:"ma_short" default:"5" validate:"gt=0" jsonschema:"title=Short MA Period"`
	MALong       int     `yaml:"ma_long" json:"ma_long" default:"20" validate:"gt=0" jsonschema:"title=Long MA Period"`
	RSIPeriod    int     `yaml:"rsi_period" json:"rsi_period" default:"14" validate:"gt=0"`
	MACDFast     int     `yaml:"macd_fast" json:"macd_fast" default:"12" validate:"gt=0"`
	MACDSlow     int     `yaml:"macd_slow" json:"macd_slow" default:"26" validate:"gt=0"`
	MACDSignal   int     `yaml:"macd_signal" json:"macd_signal" default:"9" validate:"gt=0"`
	BollPeriod   int     `yaml:"bollinger_period" json:"bollinger_period" default:"20" validate:"gt=0"`
	BollStdDev   float64 `yaml:"bollinger_stddev" json:"bollinger_stddev" default:"2" validate:"gt=0"`
	VolumeMA     int     `yaml:"volume_ma" json:"volume_ma" default:"20" validate:"gt=0"`
	ATRPeriod    int     `yaml:"atr_period" json:"atr_period" default:"14" validate:"gt=0"`
	ChangePeriod int     `yaml:"change_period" json:"change_period" default:"1" validate:"gt=0"`
}

// StrategyConfig selects and parameterizes the signal generator.
type StrategyConfig struct {
	Kind StrategyKind `yaml:"kind" json:"kind" default:"technical" validate:"oneof=technical momentum"`

	// Technical-rule strategy: which conditions constitute a signal.
	RequireMACross   bool    `yaml:"require_ma_cross" json:"require_ma_cross" default:"true"`
	RequireMACDCross bool    `yaml:"require_macd_cross" json:"require_macd_cross" default:"false"`
	RSIOverbought    float64 `yaml:"rsi_overbought" json:"rsi_overbought" default:"70" validate:"gt=0,lt=100"`
	RSIOversold      float64 `yaml:"rsi_oversold" json:"rsi_oversold" default:"30" validate:"gt=0,lt=100"`

	// Momentum strategy thresholds: trailing price-change rate and
	// volume-to-volume-MA ratio that must both be exceeded to buy.
	MomentumChangeRate  float64 `yaml:"momentum_change_rate" json:"momentum_change_rate" default:"0.01" validate:"gt=0"`
	MomentumVolumeRatio float64 `yaml:"momentum_volume_ratio" json:"momentum_volume_ratio" default:"1.5" validate:"gt=0"`
}

// RiskConfig parameterizes the risk controller.
type RiskConfig struct {
	Sizing SizingMethod `yaml:"sizing" json:"sizing" default:"fixed_amount" validate:"oneof=fixed_amount fraction kelly atr"`

	// TradeAmount is the target notional for fixed_amount sizing.
	TradeAmount float64 `yaml:"trade_amount" json:"trade_amount" default:"10000" validate:"gt=0"`
	// PositionFraction is the base equity fraction for fraction sizing,
	// scaled by signal strength.
	PositionFraction float64 `yaml:"position_fraction" json:"position_fraction" default:"0.3" validate:"gt=0,lte=1"`
	// RiskPerTrade is the equity fraction put at risk per trade for ATR sizing.
	RiskPerTrade float64 `yaml:"risk_per_trade" json:"risk_per_trade" default:"0.01" validate:"gt=0,lte=1"`

	MinTradeAmount float64 `yaml:"min_trade_amount" json:"min_trade_amount" default:"5000" validate:"gte=0"`
	MaxTradeAmount float64 `yaml:"max_trade_amount" json:"max_trade_amount" default:"50000" validate:"gt=0"`

	// MaxSinglePosition caps position value as a fraction of equity.
	MaxSinglePosition float64 `yaml:"max_single_position" json:"max_single_position" default:"0.5" validate:"gt=0,lte=1"`

	StopLoss     float64 `yaml:"stop_loss" json:"stop_loss" default:"0.05" validate:"gt=0,lt=1"`
	TakeProfit   float64 `yaml:"take_profit" json:"take_profit" default:"0.10" validate:"gt=0,lt=1"`
	TrailingStop bool    `yaml:"trailing_stop" json:"trailing_stop" default:"false"`

	MaxDrawdown    float64 `yaml:"max_drawdown" json:"max_drawdown" default:"0.10" validate:"gt=0,lt=1"`
	MaxDailyLoss   float64 `yaml:"max_daily_loss" json:"max_daily_loss" default:"0.05" validate:"gt=0,lt=1"`
	MaxDailyTrades int     `yaml:"max_daily_trades" json:"max_daily_trades" default:"10" validate:"gt=0"`

	// LotSize rounds buy quantities down to whole lots. 1 disables rounding.
	LotSize int `yaml:"lot_size" json:"lot_size" default:"100" validate:"gt=0"`
}

// ExecutionConfig parameterizes the execution adapter.
type ExecutionConfig struct {
	FillPrice      FillPrice `yaml:"fill_price" json:"fill_price" default:"open" validate:"oneof=open close"`
	CommissionRate float64   `yaml:"commission_rate" json:"commission_rate" default:"0.0003" validate:"gte=0"`
	MinCommission  float64   `yaml:"min_commission" json:"min_commission" default:"0" validate:"gte=0"`
	// OrderTimeout bounds a live broker call; a timeout is an execution
	// error, never an indefinite block.
	OrderTimeout time.Duration `yaml:"order_timeout" json:"order_timeout" default:"10s"`
}

// UnmarshalYAML accepts order_timeout as a duration string ("10s", "2m").
func (e *ExecutionConfig) UnmarshalYAML(unmarshal func(any) error) error {
	type raw struct {
		FillPrice      FillPrice `yaml:"fill_price"`
		CommissionRate float64   `yaml:"commission_rate"`
		MinCommission  float64   `yaml:"min_commission"`
		OrderTimeout   string    `yaml:"order_timeout"`
	}

	parsed := raw{
		FillPrice:      e.FillPrice,
		CommissionRate: e.CommissionRate,
		MinCommission:  e.MinCommission,
	}

	if err := unmarshal(&parsed); err != nil {
		return err
	}

	e.FillPrice = parsed.FillPrice
	e.CommissionRate = parsed.CommissionRate
	e.MinCommission = parsed.MinCommission

	if parsed.OrderTimeout != "" {
		timeout, err := time.ParseDuration(parsed.OrderTimeout)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err,
				"invalid order_timeout %q", parsed.OrderTimeout)
		}

		e.OrderTimeout = timeout
	}

	return nil
}

// BacktestConfig parameterizes replay runs and report metrics.
type BacktestConfig struct {
	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital" default:"100000" validate:"gt=0" jsonschema:"title=Initial Capital,description=Starting capital for the run"`
	// PeriodsPerYear annualizes returns and volatility (252 for daily bars).
	PeriodsPerYear int     `yaml:"periods_per_year" json:"periods_per_year" default:"252" validate:"gt=0"`
	RiskFreeRate   float64 `yaml:"risk_free_rate" json:"risk_free_rate" default:"0.03" validate:"gte=0"`
	Start          string  `yaml:"start" json:"start"`
	End            string  `yaml:"end" json:"end"`
}

// Config is the process-wide configuration for one pipeline instance.
type Config struct {
	Symbol     string          `yaml:"symbol" json:"symbol" validate:"required" jsonschema:"title=Symbol,description=Instrument symbol the pipeline trades"`
	Indicators IndicatorConfig `yaml:"indicators" json:"indicators"`
	Strategy   StrategyConfig  `yaml:"strategy" json:"strategy"`
	Risk       RiskConfig      `yaml:"risk" json:"risk"`
	Execution  ExecutionConfig `yaml:"execution" json:"execution"`
	Backtest   BacktestConfig  `yaml:"backtest" json:"backtest"`
}

// Load parses, defaults and validates a YAML config file, failing fast on
// any invalid parameter combination.
func Load(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to read config file", err)
	}

	return Parse(content)
}

// Parse builds a Config from YAML content.
func Parse(content []byte) (Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to apply defaults", err)
	}

	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate applies struct tags plus the cross-field rules the tags cannot
// express. Invalid combinations are configuration errors, never silently
// corrected.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	if c.Indicators.MAShort >= c.Indicators.MALong {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"short MA period (%d) must be less than long MA period (%d)",
			c.Indicators.MAShort, c.Indicators.MALong)
	}

	if c.Indicators.MACDFast >= c.Indicators.MACDSlow {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"MACD fast period (%d) must be less than slow period (%d)",
			c.Indicators.MACDFast, c.Indicators.MACDSlow)
	}

	if c.Strategy.RSIOversold >= c.Strategy.RSIOverbought {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"RSI oversold (%.1f) must be below overbought (%.1f)",
			c.Strategy.RSIOversold, c.Strategy.RSIOverbought)
	}

	if c.Risk.MinTradeAmount > c.Risk.MaxTradeAmount {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"min_trade_amount (%.2f) exceeds max_trade_amount (%.2f)",
			c.Risk.MinTradeAmount, c.Risk.MaxTradeAmount)
	}

	if c.Risk.StopLoss >= c.Risk.TakeProfit {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"stop_loss (%.3f) must be below take_profit (%.3f)",
			c.Risk.StopLoss, c.Risk.TakeProfit)
	}

	return nil
}

// GenerateSchemaJSON renders the JSON schema for the configuration surface.
func (c *Config) GenerateSchemaJSON() (string, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
	}

	schema := reflector.Reflect(c)
	schema.Title = "tidemark-config"
	schema.Description = "Configuration schema for a tidemark pipeline instance"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}
