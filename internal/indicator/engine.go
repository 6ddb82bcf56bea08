// Package indicator turns an ordered bar sequence into per-bar snapshots of
// every configured indicator. Computation is incremental where the formula
// allows it (EMA, Wilder RSI) and windowed otherwise; either way a snapshot
// depends only on bars at or before its own timestamp.
package indicator

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"

	"github.com/tidemark-lab/tidemark/internal/config"
	"github.com/tidemark-lab/tidemark/internal/types"
	"github.com/tidemark-lab/tidemark/pkg/errors"
)

// Engine consumes bars one at a time and emits a Snapshot per bar. It is not
// safe for concurrent use; the pipeline drives it from a single goroutine.
type Engine struct {
	cfg config.IndicatorConfig

	closes     []decimal.Decimal
	volumes    []decimal.Decimal
	trueRanges []decimal.Decimal
	prevClose  decimal.Decimal
	hasPrev    bool
	lastTime   time.Time

	emaFast    *ema
	emaSlow    *ema
	emaSignal  *ema
	rsi        *rsiState
	barsSeen   int
	bollFactor decimal.Decimal
}

func NewEngine(cfg config.IndicatorConfig) *Engine {
	return &Engine{
		cfg:        cfg,
		emaFast:    newEMA(cfg.MACDFast),
		emaSlow:    newEMA(cfg.MACDSlow),
		emaSignal:  newEMA(cfg.MACDSignal),
		rsi:        newRSIState(cfg.RSIPeriod),
		bollFactor: decimal.NewFromFloat(cfg.BollStdDev),
	}
}

// Lookback returns the number of bars needed before every configured
// indicator is defined.
func (e *Engine) Lookback() int {
	lookback := e.cfg.MALong

	for _, n := range []int{
		e.cfg.MAShort,
		e.cfg.RSIPeriod + 1,
		e.cfg.MACDSlow + e.cfg.MACDSignal - 1,
		e.cfg.BollPeriod,
		e.cfg.VolumeMA,
		e.cfg.ATRPeriod + 1,
		e.cfg.ChangePeriod + 1,
	} {
		if n > lookback {
			lookback = n
		}
	}

	return lookback
}

// Append ingests the next bar and returns its snapshot. Bars must arrive in
// strictly increasing timestamp order; a duplicate or out-of-order bar is a
// data error that halts the run.
func (e *Engine) Append(bar types.Bar) (Snapshot, error) {
	if err := bar.Validate(); err != nil {
		return Snapshot{}, err
	}

	if !e.lastTime.IsZero() {
		if bar.Time.Equal(e.lastTime) {
			return Snapshot{}, errors.Newf(errors.ErrCodeDuplicateTimestamp,
				"duplicate bar timestamp %s", bar.Time)
		}

		if bar.Time.Before(e.lastTime) {
			return Snapshot{}, errors.Newf(errors.ErrCodeDuplicateTimestamp,
				"bar at %s arrived after %s", bar.Time, e.lastTime)
		}
	}

	e.lastTime = bar.Time
	e.barsSeen++
	e.closes = append(e.closes, bar.Close)
	e.volumes = append(e.volumes, bar.Volume)

	snapshot := Snapshot{
		Time:   bar.Time,
		Close:  bar.Close,
		Volume: bar.Volume,
	}

	if w := tail(e.closes, e.cfg.MAShort); w != nil {
		snapshot.MAShort = optional.Some(mean(w))
	}

	if w := tail(e.closes, e.cfg.MALong); w != nil {
		snapshot.MALong = optional.Some(mean(w))
	}

	if rsi, ok := e.rsi.update(bar.Close); ok {
		snapshot.RSI = optional.Some(rsi)
	}

	snapshot.MACD = e.updateMACD(bar.Close)

	if w := tail(e.closes, e.cfg.BollPeriod); w != nil {
		middle := mean(w)
		offset := stddev(w).Mul(e.bollFactor)
		snapshot.Bollinger = optional.Some(BollingerValue{
			Upper:  middle.Add(offset),
			Middle: middle,
			Lower:  middle.Sub(offset),
		})
	}

	if w := tail(e.volumes, e.cfg.VolumeMA); w != nil {
		snapshot.VolumeMA = optional.Some(mean(w))
	}

	snapshot.ATR = e.updateATR(bar)

	if len(e.closes) > e.cfg.ChangePeriod {
		base := e.closes[len(e.closes)-1-e.cfg.ChangePeriod]
		if base.Sign() > 0 {
			snapshot.ChangeRate = optional.Some(bar.Close.Sub(base).Div(base))
		}
	}

	e.prevClose = bar.Close
	e.hasPrev = true

	return snapshot, nil
}

// updateMACD advances the fast and slow EMAs every bar. The MACD line is
// defined once the slow period has filled; the signal line (and with it the
// histogram) needs a further signal-period bars of MACD values.
func (e *Engine) updateMACD(close decimal.Decimal) optional.Option[MACDValue] {
	fast := e.emaFast.update(close)
	slow := e.emaSlow.update(close)

	if e.barsSeen < e.cfg.MACDSlow {
		return optional.None[MACDValue]()
	}

	line := fast.Sub(slow)
	signal := e.emaSignal.update(line)

	if e.barsSeen < e.cfg.MACDSlow+e.cfg.MACDSignal-1 {
		return optional.None[MACDValue]()
	}

	return optional.Some(MACDValue{
		Line:      line,
		Signal:    signal,
		Histogram: line.Sub(signal),
	})
}

// updateATR keeps a rolling mean of the true range. The first true range
// needs a previous close, so ATR is defined after atr_period+1 bars.
func (e *Engine) updateATR(bar types.Bar) optional.Option[decimal.Decimal] {
	if !e.hasPrev {
		return optional.None[decimal.Decimal]()
	}

	tr := bar.High.Sub(bar.Low)
	if hc := bar.High.Sub(e.prevClose).Abs(); hc.GreaterThan(tr) {
		tr = hc
	}
	if lc := bar.Low.Sub(e.prevClose).Abs(); lc.GreaterThan(tr) {
		tr = lc
	}

	e.trueRanges = append(e.trueRanges, tr)
	if len(e.trueRanges) > e.cfg.ATRPeriod {
		e.trueRanges = e.trueRanges[len(e.trueRanges)-e.cfg.ATRPeriod:]
	}

	if len(e.trueRanges) < e.cfg.ATRPeriod {
		return optional.None[decimal.Decimal]()
	}

	return optional.Some(mean(e.trueRanges))
}
