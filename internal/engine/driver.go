// Package engine drives the per-bar decision loop. One iteration per bar:
// ingest, compute indicators, mark the portfolio, check protective exits,
// evaluate the strategy, gate through risk, execute, apply the fill. The
// same loop serves backtests and live sessions; only the bar source and
// execution client differ.
package engine

import (
	"context"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tidemark-lab/tidemark/internal/broker"
	"github.com/tidemark-lab/tidemark/internal/config"
	"github.com/tidemark-lab/tidemark/internal/datasource"
	"github.com/tidemark-lab/tidemark/internal/indicator"
	"github.com/tidemark-lab/tidemark/internal/ledger"
	"github.com/tidemark-lab/tidemark/internal/logger"
	"github.com/tidemark-lab/tidemark/internal/portfolio"
	"github.com/tidemark-lab/tidemark/internal/risk"
	"github.com/tidemark-lab/tidemark/internal/strategy"
	"github.com/tidemark-lab/tidemark/internal/types"
	"github.com/tidemark-lab/tidemark/pkg/errors"
)

// Status of a driver. A driver runs once; a new run needs a new driver.
type Status string

const (
	StatusInitialized Status = "INITIALIZED"
	StatusRunning     Status = "RUNNING"
	StatusCompleted   Status = "COMPLETED"
	StatusFailed      Status = "FAILED"
)

// ProgressFunc is called after every processed bar.
type ProgressFunc func(processed int, bar types.Bar)

// barUpdater is satisfied by execution clients that price fills off the
// current bar (the simulated broker).
type barUpdater interface {
	UpdateBar(bar types.Bar)
}

// Driver owns one run. Not safe for concurrent use; Run is called once from
// a single goroutine.
type Driver struct {
	cfg        config.Config
	source     datasource.BarSource
	client     broker.ExecutionClient
	indicators *indicator.Engine
	strategy   strategy.Strategy
	risk       *risk.Controller
	state      *portfolio.State
	ledger     *ledger.Ledger
	logger     *logger.Logger
	onProgress ProgressFunc

	status        Status
	prevSnapshot  indicator.Snapshot
	hasPrev       bool
	barsProcessed int
}

// Option configures optional driver collaborators.
type Option func(*Driver)

// WithLedger attaches a persistent audit ledger.
func WithLedger(l *ledger.Ledger) Option {
	return func(d *Driver) { d.ledger = l }
}

// WithProgress attaches a per-bar progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(d *Driver) { d.onProgress = fn }
}

// New wires a driver from configuration. The portfolio starts at the
// configured initial capital.
func New(cfg config.Config, source datasource.BarSource, client broker.ExecutionClient, state *portfolio.State, log *logger.Logger, opts ...Option) (*Driver, error) {
	strat, err := strategy.New(cfg.Symbol, cfg.Strategy)
	if err != nil {
		return nil, err
	}

	driver := &Driver{
		cfg:        cfg,
		source:     source,
		client:     client,
		indicators: indicator.NewEngine(cfg.Indicators),
		strategy:   strat,
		risk:       risk.NewController(cfg.Risk),
		state:      state,
		logger:     log,
		status:     StatusInitialized,
	}

	for _, opt := range opts {
		opt(driver)
	}

	return driver, nil
}

func (d *Driver) Status() Status {
	return d.status
}

// Run replays bars until the source ends or the context is cancelled.
// Cancellation finishes the in-flight bar and then stops cleanly with a
// report over the bars processed so far. A data error fails the run.
func (d *Driver) Run(ctx context.Context) (Report, error) {
	if d.status != StatusInitialized {
		return Report{}, errors.Newf(errors.ErrCodeNotRunnable, "driver is %s, a run needs a fresh driver", d.status)
	}

	d.status = StatusRunning
	d.logger.Info("run started",
		zap.String("symbol", d.cfg.Symbol),
		zap.String("strategy", d.strategy.Name()))

	for {
		bar, err := d.source.Next(ctx)
		if err != nil {
			if err == datasource.ErrEndOfData || ctx.Err() != nil {
				break
			}

			return d.fail(errors.Wrap(errors.ErrCodeRunFailed, "bar source failed", err))
		}

		if err := d.processBar(ctx, bar); err != nil {
			return d.fail(err)
		}

		d.barsProcessed++

		if d.onProgress != nil {
			d.onProgress(d.barsProcessed, bar)
		}

		if ctx.Err() != nil {
			// Finish the in-flight bar, then stop.
			break
		}
	}

	d.status = StatusCompleted

	fills := d.collectFills()
	report := buildReport(d.cfg.Backtest, d.state, d.barsProcessed, fills)

	d.logger.Info("run completed",
		zap.Int("bars", d.barsProcessed),
		zap.String("final_equity", report.FinalEquity.StringFixed(2)),
		zap.String("total_return", report.TotalReturn.StringFixed(4)))

	return report, nil
}

func (d *Driver) processBar(ctx context.Context, bar types.Bar) error {
	snapshot, err := d.indicators.Append(bar)
	if err != nil {
		// Malformed or out-of-order bars halt the run; skipping one
		// would desynchronize every later decision.
		return err
	}

	if updater, ok := d.client.(barUpdater); ok {
		updater.UpdateBar(bar)
	}

	d.state.Mark(bar.Time, bar.Close)
	d.risk.Limits().RollOver(bar.Time, d.state.Equity())
	d.recordEquity()

	intent := d.decide(snapshot, bar)
	if intent.IsSome() {
		d.execute(ctx, intent.Unwrap())
	}

	d.prevSnapshot = snapshot
	d.hasPrev = true

	return nil
}

// decide picks at most one intent for the bar. Protective exits run first
// and override whatever the strategy would have said.
func (d *Driver) decide(snapshot indicator.Snapshot, bar types.Bar) optional.Option[types.OrderIntent] {
	hold := types.Hold(d.cfg.Symbol, bar.Time, d.strategy.Name())

	if exit := d.risk.CheckExit(hold, snapshot, d.state); exit.IsSome() {
		d.logger.Info("protective exit",
			zap.String("reason", exit.Unwrap().Reason),
			zap.Time("bar", bar.Time))

		return exit
	}

	if !d.hasPrev {
		return optional.None[types.OrderIntent]()
	}

	signal, err := d.strategy.Evaluate(d.prevSnapshot, snapshot)
	if err != nil {
		d.logger.Warn("strategy evaluation failed", zap.Error(err))

		return optional.None[types.OrderIntent]()
	}

	verdict, err := d.risk.Evaluate(signal, snapshot, d.state)
	if err != nil {
		d.logger.Warn("risk evaluation failed", zap.Error(err))

		return optional.None[types.OrderIntent]()
	}

	if verdict.Veto.IsSome() {
		veto := verdict.Veto.Unwrap()
		d.logger.Info("signal vetoed",
			zap.String("reason", string(veto.Reason)),
			zap.String("detail", veto.Message),
			zap.Time("bar", bar.Time))

		return optional.None[types.OrderIntent]()
	}

	return verdict.Intent
}

// execute submits one intent. An execution failure is logged and dropped;
// the stale intent is never retried on a later bar.
func (d *Driver) execute(ctx context.Context, intent types.OrderIntent) {
	fill, err := d.client.SubmitOrder(ctx, intent)
	if err != nil {
		d.logger.Warn("order failed",
			zap.String("order_id", intent.ID),
			zap.String("side", string(intent.Side)),
			zap.Error(err))

		return
	}

	if err := d.state.Apply(fill); err != nil {
		// A fill the portfolio cannot absorb means broker and account
		// state disagree; log loudly and drop the fill.
		d.logger.Error("fill rejected by portfolio",
			zap.String("order_id", fill.OrderID),
			zap.Error(err))

		return
	}

	d.risk.Limits().RecordTrade()

	d.logger.Info("filled",
		zap.String("side", string(fill.Side)),
		zap.String("quantity", fill.Quantity.String()),
		zap.String("price", fill.Price.String()),
		zap.String("reason", fill.Reason))

	if d.ledger != nil {
		if err := d.ledger.RecordFill(fill); err != nil {
			d.logger.Error("ledger write failed", zap.Error(err))
		}
	}
}

func (d *Driver) recordEquity() {
	if d.ledger == nil {
		return
	}

	curve := d.state.EquityCurve()
	if len(curve) == 0 {
		return
	}

	if err := d.ledger.RecordEquity(curve[len(curve)-1]); err != nil {
		d.logger.Error("ledger equity write failed", zap.Error(err))
	}
}

func (d *Driver) collectFills() []types.Fill {
	if d.ledger == nil {
		return nil
	}

	fills, err := d.ledger.Fills()
	if err != nil {
		d.logger.Error("failed to read fills from ledger", zap.Error(err))

		return nil
	}

	return fills
}

func (d *Driver) fail(err error) (Report, error) {
	d.status = StatusFailed
	d.logger.Error("run failed", zap.Error(err))

	return Report{}, err
}

// InitialState builds the starting portfolio for a configuration.
func InitialState(cfg config.Config) *portfolio.State {
	return portfolio.NewState(decimal.NewFromFloat(cfg.Backtest.InitialCapital))
}
