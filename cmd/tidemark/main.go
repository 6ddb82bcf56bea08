package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moznion/go-optional"
	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/tidemark-lab/tidemark/internal/broker"
	"github.com/tidemark-lab/tidemark/internal/broker/commission"
	"github.com/tidemark-lab/tidemark/internal/config"
	"github.com/tidemark-lab/tidemark/internal/datasource"
	"github.com/tidemark-lab/tidemark/internal/engine"
	"github.com/tidemark-lab/tidemark/internal/ledger"
	"github.com/tidemark-lab/tidemark/internal/logger"
	"github.com/tidemark-lab/tidemark/internal/marketdata"
	"github.com/tidemark-lab/tidemark/internal/types"
	"github.com/tidemark-lab/tidemark/pkg/errors"
)

const dateLayout = "2006-01-02"

func main() {
	cmd := &cli.Command{
		Name:  "tidemark",
		Usage: "Single-instrument trading decision and simulation pipeline",
		Commands: []*cli.Command{
			backtestCommand(),
			liveCommand(),
			fetchCommand(),
			schemaCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func backtestCommand() *cli.Command {
	return &cli.Command{
		Name:  "backtest",
		Usage: "Replay historical bars through the decision pipeline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the YAML configuration file",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "data",
				Aliases:  []string{"d"},
				Usage:    "Path to the bar data file (CSV or parquet)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "ledger",
				Usage: "Path for the audit ledger database (in-memory when empty)",
			},
			&cli.StringFlag{
				Name:  "export",
				Usage: "Export executed fills to this parquet file after the run",
			},
		},
		Action: backtestAction,
	}
}

func backtestAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	log, err := logger.NewLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	source, err := datasource.NewDuckDBSource(cmd.String("data"), cfg.Symbol, log)
	if err != nil {
		return err
	}
	defer source.Close()

	start, end, err := backtestRange(cfg.Backtest)
	if err != nil {
		return err
	}

	total, err := source.Count(start, end)
	if err != nil {
		return err
	}

	if err := source.Begin(start, end); err != nil {
		return err
	}

	auditLedger, err := ledger.New(cmd.String("ledger"), log)
	if err != nil {
		return err
	}
	defer auditLedger.Close()

	state := engine.InitialState(cfg)
	client := broker.NewSimulated(cfg.Execution, commissionSchedule(cfg.Execution), state)

	bar := progressbar.Default(int64(total), "replaying")

	driver, err := engine.New(cfg, source, client, state, log,
		engine.WithLedger(auditLedger),
		engine.WithProgress(func(int, types.Bar) {
			_ = bar.Add(1)
		}))
	if err != nil {
		return err
	}

	report, err := driver.Run(ctx)
	if err != nil {
		return err
	}

	_ = bar.Finish()
	printReport(report)

	if exportPath := cmd.String("export"); exportPath != "" {
		if err := auditLedger.ExportParquet(exportPath); err != nil {
			return err
		}

		fmt.Printf("fills exported to %s\n", exportPath)
	}

	return nil
}

func liveCommand() *cli.Command {
	return &cli.Command{
		Name:  "live",
		Usage: "Run the decision pipeline against live Binance bars",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the YAML configuration file",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "interval",
				Usage: "Kline interval",
				Value: "1m",
			},
			&cli.DurationFlag{
				Name:  "poll",
				Usage: "Kline poll interval",
				Value: 5 * time.Second,
			},
			&cli.StringFlag{
				Name:  "ledger",
				Usage: "Path for the audit ledger database",
				Value: "tidemark-live.duckdb",
			},
			&cli.BoolFlag{
				Name:  "paper",
				Usage: "Simulate executions locally instead of sending orders",
			},
		},
		Action: liveAction,
	}
}

func liveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	log, err := logger.NewLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	source := datasource.NewBinanceSource(cfg.Symbol, cmd.String("interval"), cmd.Duration("poll"), log)
	defer source.Close()

	auditLedger, err := ledger.New(cmd.String("ledger"), log)
	if err != nil {
		return err
	}
	defer auditLedger.Close()

	state := engine.InitialState(cfg)

	var client broker.ExecutionClient
	if cmd.Bool("paper") {
		client = broker.NewSimulated(cfg.Execution, commissionSchedule(cfg.Execution), state)
	} else {
		apiKey := os.Getenv("BINANCE_API_KEY")
		secretKey := os.Getenv("BINANCE_SECRET_KEY")

		if apiKey == "" || secretKey == "" {
			return errors.New(errors.ErrCodeInvalidConfiguration,
				"BINANCE_API_KEY and BINANCE_SECRET_KEY must be set for live trading")
		}

		client = broker.NewBinance(cfg.Execution, apiKey, secretKey)
	}

	driver, err := engine.New(cfg, source, client, state, log, engine.WithLedger(auditLedger))
	if err != nil {
		return err
	}

	log.Info("live session started", zap.String("symbol", cfg.Symbol))

	report, err := driver.Run(ctx)
	if err != nil {
		return err
	}

	printReport(report)

	return nil
}

func fetchCommand() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Download historical bars into a parquet file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "symbol",
				Aliases:  []string{"s"},
				Usage:    "Instrument symbol",
				Required: true,
			},
			&cli.TimestampFlag{
				Name:     "start",
				Usage:    "Start date in `YYYY-MM-DD` format",
				Required: true,
				Config: cli.TimestampConfig{
					Layouts: []string{dateLayout},
				},
			},
			&cli.TimestampFlag{
				Name:  "end",
				Usage: "End date in `YYYY-MM-DD` format, defaults to today",
				Value: time.Now(),
				Config: cli.TimestampConfig{
					Layouts: []string{dateLayout},
				},
			},
			&cli.StringFlag{
				Name:  "provider",
				Usage: "Data provider: polygon or binance",
				Value: "polygon",
			},
			&cli.StringFlag{
				Name:  "interval",
				Usage: "Bar interval for the binance provider",
				Value: "1d",
			},
			&cli.StringFlag{
				Name:     "out",
				Aliases:  []string{"o"},
				Usage:    "Output parquet file",
				Required: true,
			},
		},
		Action: fetchAction,
	}
}

func fetchAction(ctx context.Context, cmd *cli.Command) error {
	symbol := cmd.String("symbol")
	start := cmd.Timestamp("start")
	end := cmd.Timestamp("end")

	var (
		provider marketdata.Provider
		err      error
	)

	switch cmd.String("provider") {
	case "polygon":
		provider, err = marketdata.NewPolygonProvider(os.Getenv("POLYGON_API_KEY"))
		if err != nil {
			return err
		}
	case "binance":
		provider = marketdata.NewBinanceProvider(cmd.String("interval"))
	default:
		return errors.Newf(errors.ErrCodeInvalidParameter, "unknown provider %q", cmd.String("provider"))
	}

	store, err := marketdata.NewStore()
	if err != nil {
		return err
	}
	defer store.Close()

	bar := progressbar.Default(-1, fmt.Sprintf("fetching %s", symbol))

	err = provider.Fetch(ctx, symbol, start, end, store.Append, func(received int) {
		_ = bar.Set(received)
	})
	if err != nil {
		return err
	}

	if err := store.Finalize(cmd.String("out")); err != nil {
		return err
	}

	_ = bar.Finish()
	fmt.Printf("bars written to %s\n", cmd.String("out"))

	return nil
}

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:   "schema",
		Usage:  "Print the JSON schema of the configuration file",
		Action: schemaAction,
	}
}

func schemaAction(_ context.Context, _ *cli.Command) error {
	var cfg config.Config

	schema, err := cfg.GenerateSchemaJSON()
	if err != nil {
		return err
	}

	fmt.Println(schema)

	return nil
}

func backtestRange(cfg config.BacktestConfig) (start, end optional.Option[time.Time], err error) {
	start = optional.None[time.Time]()
	end = optional.None[time.Time]()

	if cfg.Start != "" {
		t, perr := time.Parse(dateLayout, cfg.Start)
		if perr != nil {
			return start, end, errors.Wrapf(errors.ErrCodeInvalidConfiguration, perr, "invalid backtest start %q", cfg.Start)
		}

		start = optional.Some(t)
	}

	if cfg.End != "" {
		t, perr := time.Parse(dateLayout, cfg.End)
		if perr != nil {
			return start, end, errors.Wrapf(errors.ErrCodeInvalidConfiguration, perr, "invalid backtest end %q", cfg.End)
		}

		end = optional.Some(t)
	}

	return start, end, nil
}

func commissionSchedule(cfg config.ExecutionConfig) commission.Schedule {
	if cfg.CommissionRate == 0 && cfg.MinCommission == 0 {
		return commission.NewZero()
	}

	return commission.NewRateWithMinimum(
		decimal.NewFromFloat(cfg.CommissionRate),
		decimal.NewFromFloat(cfg.MinCommission),
	)
}

func printReport(report engine.Report) {
	fmt.Println()
	fmt.Printf("bars processed:    %d\n", report.BarsProcessed)
	fmt.Printf("fills:             %d (%d closed trades)\n", report.FillCount, report.ClosedTrades)
	fmt.Printf("final equity:      %s\n", report.FinalEquity.StringFixed(2))
	fmt.Printf("total return:      %s%%\n", report.TotalReturn.Mul(decimal.NewFromFloat(100)).StringFixed(2))
	fmt.Printf("annualized return: %s%%\n", report.AnnualizedReturn.Mul(decimal.NewFromFloat(100)).StringFixed(2))
	fmt.Printf("max drawdown:      %s%%\n", report.MaxDrawdown.Mul(decimal.NewFromFloat(100)).StringFixed(2))
	fmt.Printf("sharpe ratio:      %s\n", report.SharpeRatio.StringFixed(2))
	fmt.Printf("win rate:          %s%%\n", report.WinRate.Mul(decimal.NewFromFloat(100)).StringFixed(2))
	fmt.Printf("realized pnl:      %s\n", report.RealizedPnL.StringFixed(2))
}
