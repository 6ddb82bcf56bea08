// Package ledger persists the audit trail of a run: every fill and the
// per-bar equity curve, in a DuckDB database that can be queried after the
// fact or exported to parquet.
package ledger

import (
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tidemark-lab/tidemark/internal/logger"
	"github.com/tidemark-lab/tidemark/internal/portfolio"
	"github.com/tidemark-lab/tidemark/internal/types"
	"github.com/tidemark-lab/tidemark/pkg/errors"
)

// Ledger is append-only: rows are written as events happen and never
// updated, so the trail replays exactly in insertion order.
type Ledger struct {
	db     *sql.DB
	sq     squirrel.StatementBuilderType
	logger *logger.Logger
}

// New opens (or creates) the ledger database. An empty path keeps the
// ledger in memory, which is what tests and throwaway runs use.
func New(path string, log *logger.Logger) (*Ledger, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLedgerFailed, "failed to open ledger database", err)
	}

	ledger := &Ledger{
		db:     db,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		logger: log,
	}

	if err := ledger.createTables(); err != nil {
		db.Close()

		return nil, err
	}

	return ledger, nil
}

func (l *Ledger) createTables() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS fills (
			id VARCHAR PRIMARY KEY,
			order_id VARCHAR NOT NULL,
			symbol VARCHAR NOT NULL,
			side VARCHAR NOT NULL,
			quantity DOUBLE NOT NULL,
			price DOUBLE NOT NULL,
			commission DOUBLE NOT NULL,
			time TIMESTAMP NOT NULL,
			reason VARCHAR NOT NULL,
			strategy VARCHAR
		);`,
		`CREATE TABLE IF NOT EXISTS equity_curve (
			time TIMESTAMP NOT NULL,
			equity DOUBLE NOT NULL
		);`,
	}

	for _, statement := range statements {
		if _, err := l.db.Exec(statement); err != nil {
			return errors.Wrap(errors.ErrCodeLedgerFailed, "failed to create ledger tables", err)
		}
	}

	return nil
}

// RecordFill appends one executed fill.
func (l *Ledger) RecordFill(fill types.Fill) error {
	query, args, err := l.sq.
		Insert("fills").
		Columns("id", "order_id", "symbol", "side", "quantity", "price", "commission", "time", "reason", "strategy").
		Values(
			uuid.NewString(),
			fill.OrderID,
			fill.Symbol,
			string(fill.Side),
			fill.Quantity.InexactFloat64(),
			fill.Price.InexactFloat64(),
			fill.Commission.InexactFloat64(),
			fill.Time,
			fill.Reason,
			fill.Strategy,
		).
		ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeLedgerFailed, "failed to build fill insert", err)
	}

	if _, err := l.db.Exec(query, args...); err != nil {
		return errors.Wrap(errors.ErrCodeLedgerFailed, "failed to record fill", err)
	}

	l.logger.Debug("recorded fill",
		zap.String("order_id", fill.OrderID),
		zap.String("side", string(fill.Side)),
		zap.String("quantity", fill.Quantity.String()))

	return nil
}

// RecordEquity appends one equity curve sample.
func (l *Ledger) RecordEquity(point portfolio.EquityPoint) error {
	query, args, err := l.sq.
		Insert("equity_curve").
		Columns("time", "equity").
		Values(point.Time, point.Equity.InexactFloat64()).
		ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeLedgerFailed, "failed to build equity insert", err)
	}

	if _, err := l.db.Exec(query, args...); err != nil {
		return errors.Wrap(errors.ErrCodeLedgerFailed, "failed to record equity", err)
	}

	return nil
}

// Fills returns all recorded fills in time order.
func (l *Ledger) Fills() ([]types.Fill, error) {
	query, args, err := l.sq.
		Select("order_id", "symbol", "side", "quantity", "price", "commission", "time", "reason", "strategy").
		From("fills").
		OrderBy("time ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLedgerFailed, "failed to build fills query", err)
	}

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLedgerFailed, "failed to query fills", err)
	}
	defer rows.Close()

	var fills []types.Fill

	for rows.Next() {
		var (
			fill                        types.Fill
			side                        string
			quantity, price, commission float64
		)

		if err := rows.Scan(&fill.OrderID, &fill.Symbol, &side, &quantity, &price, &commission, &fill.Time, &fill.Reason, &fill.Strategy); err != nil {
			return nil, errors.Wrap(errors.ErrCodeLedgerFailed, "failed to scan fill row", err)
		}

		fill.Side = types.Side(side)
		fill.Quantity = decimal.NewFromFloat(quantity)
		fill.Price = decimal.NewFromFloat(price)
		fill.Commission = decimal.NewFromFloat(commission)
		fills = append(fills, fill)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeLedgerFailed, "fill scan failed", err)
	}

	return fills, nil
}

// ExportParquet writes the fills table to a parquet file at the given path.
func (l *Ledger) ExportParquet(path string) error {
	query := fmt.Sprintf(`COPY fills TO '%s' (FORMAT PARQUET);`, path)
	if _, err := l.db.Exec(query); err != nil {
		return errors.Wrap(errors.ErrCodeLedgerFailed, "failed to export fills to parquet", err)
	}

	return nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}
