package engine

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/tidemark-lab/tidemark/internal/config"
	"github.com/tidemark-lab/tidemark/internal/portfolio"
	"github.com/tidemark-lab/tidemark/internal/types"
)

// Report summarizes a completed run. All ratios are fractions, not percents.
type Report struct {
	InitialCapital   decimal.Decimal `json:"initial_capital"`
	FinalEquity      decimal.Decimal `json:"final_equity"`
	TotalReturn      decimal.Decimal `json:"total_return"`
	AnnualizedReturn decimal.Decimal `json:"annualized_return"`
	MaxDrawdown      decimal.Decimal `json:"max_drawdown"`
	SharpeRatio      decimal.Decimal `json:"sharpe_ratio"`
	WinRate          decimal.Decimal `json:"win_rate"`
	RealizedPnL      decimal.Decimal `json:"realized_pnl"`

	BarsProcessed int `json:"bars_processed"`
	FillCount     int `json:"fill_count"`
	ClosedTrades  int `json:"closed_trades"`

	Fills       []types.Fill            `json:"fills"`
	EquityCurve []portfolio.EquityPoint `json:"equity_curve"`
}

func buildReport(cfg config.BacktestConfig, state *portfolio.State, barsProcessed int, fills []types.Fill) Report {
	initial := decimal.NewFromFloat(cfg.InitialCapital)
	final := state.Equity()
	curve := state.EquityCurve()

	report := Report{
		InitialCapital: initial,
		FinalEquity:    final,
		MaxDrawdown:    maxDrawdown(curve),
		WinRate:        state.WinRate(),
		RealizedPnL:    state.RealizedPnL(),
		BarsProcessed:  barsProcessed,
		FillCount:      state.FillCount(),
		ClosedTrades:   state.ClosedTrades(),
		Fills:          fills,
		EquityCurve:    curve,
	}

	if initial.Sign() > 0 {
		report.TotalReturn = final.Sub(initial).Div(initial)
	}

	report.AnnualizedReturn = annualizedReturn(report.TotalReturn, barsProcessed, cfg.PeriodsPerYear)
	report.SharpeRatio = sharpeRatio(curve, cfg.RiskFreeRate, cfg.PeriodsPerYear)

	return report
}

// maxDrawdown is the largest peak-to-trough decline over the equity curve.
func maxDrawdown(curve []portfolio.EquityPoint) decimal.Decimal {
	worst := decimal.Zero
	peak := decimal.Zero

	for _, point := range curve {
		if point.Equity.GreaterThan(peak) {
			peak = point.Equity
		}

		if peak.Sign() <= 0 {
			continue
		}

		if dd := peak.Sub(point.Equity).Div(peak); dd.GreaterThan(worst) {
			worst = dd
		}
	}

	return worst
}

func annualizedReturn(totalReturn decimal.Decimal, bars, periodsPerYear int) decimal.Decimal {
	if bars <= 0 {
		return decimal.Zero
	}

	growth := 1 + totalReturn.InexactFloat64()
	if growth <= 0 {
		return decimal.NewFromInt(-1)
	}

	annualized := math.Pow(growth, float64(periodsPerYear)/float64(bars)) - 1

	return decimal.NewFromFloat(annualized)
}

// sharpeRatio is the annualized excess return over its volatility, computed
// from per-bar equity returns.
func sharpeRatio(curve []portfolio.EquityPoint, riskFreeRate float64, periodsPerYear int) decimal.Decimal {
	if len(curve) < 2 {
		return decimal.Zero
	}

	returns := make([]float64, 0, len(curve)-1)

	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity.InexactFloat64()
		if prev == 0 {
			continue
		}

		returns = append(returns, curve[i].Equity.InexactFloat64()/prev-1)
	}

	if len(returns) < 2 {
		return decimal.Zero
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}

	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}

	variance /= float64(len(returns) - 1)

	std := math.Sqrt(variance)
	if std == 0 {
		return decimal.Zero
	}

	perBarRf := riskFreeRate / float64(periodsPerYear)
	sharpe := (mean - perBarRf) / std * math.Sqrt(float64(periodsPerYear))

	return decimal.NewFromFloat(sharpe)
}
