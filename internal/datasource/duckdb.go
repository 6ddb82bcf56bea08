package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tidemark-lab/tidemark/internal/logger"
	"github.com/tidemark-lab/tidemark/internal/types"
	"github.com/tidemark-lab/tidemark/pkg/errors"
)

// DuckDBSource streams bars out of a CSV or parquet file through an
// in-process DuckDB view, ordered by timestamp. DuckDB does the file
// parsing; this type only walks the cursor.
type DuckDBSource struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
	symbol string

	rows     *sql.Rows
	lastTime time.Time
	started  bool
}

// NewDuckDBSource opens an in-memory DuckDB and exposes the data file as a
// view. CSV and parquet are both accepted, chosen by file extension.
func NewDuckDBSource(dataPath, symbol string, log *logger.Logger) (*DuckDBSource, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to open duckdb", err)
	}

	reader := "read_csv_auto"
	if strings.EqualFold(filepath.Ext(dataPath), ".parquet") {
		reader = "read_parquet"
	}

	query := fmt.Sprintf(`CREATE VIEW bars AS SELECT * FROM %s('%s');`, reader, dataPath)
	if _, err := db.Exec(query); err != nil {
		db.Close()

		return nil, errors.Wrapf(errors.ErrCodeDataNotFound, err, "failed to read bar data from %s", dataPath)
	}

	log.Debug("opened bar data", zap.String("path", dataPath), zap.String("reader", reader))

	return &DuckDBSource{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		symbol: symbol,
	}, nil
}

// Count returns the number of bars in the requested range, for progress
// reporting.
func (d *DuckDBSource) Count(start, end optional.Option[time.Time]) (int, error) {
	builder := d.sq.Select("COUNT(*)").From("bars")
	builder = d.applyRange(builder, start, end)

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build count query", err)
	}

	var count int
	if err := d.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count bars", err)
	}

	return count, nil
}

// Begin opens the ordered cursor over the requested range. It must be called
// once before Next.
func (d *DuckDBSource) Begin(start, end optional.Option[time.Time]) error {
	builder := d.sq.
		Select("time", "open", "high", "low", "close", "volume").
		From("bars").
		OrderBy("time ASC")
	builder = d.applyRange(builder, start, end)

	query, args, err := builder.ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to build scan query", err)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan bars", err)
	}

	d.rows = rows
	d.started = true

	return nil
}

func (d *DuckDBSource) applyRange(builder squirrel.SelectBuilder, start, end optional.Option[time.Time]) squirrel.SelectBuilder {
	if start.IsSome() {
		builder = builder.Where(squirrel.GtOrEq{"time": start.Unwrap()})
	}

	if end.IsSome() {
		builder = builder.Where(squirrel.LtOrEq{"time": end.Unwrap()})
	}

	return builder
}

func (d *DuckDBSource) Next(ctx context.Context) (types.Bar, error) {
	if err := ctx.Err(); err != nil {
		return types.Bar{}, err
	}

	if !d.started {
		if err := d.Begin(optional.None[time.Time](), optional.None[time.Time]()); err != nil {
			return types.Bar{}, err
		}
	}

	if !d.rows.Next() {
		if err := d.rows.Err(); err != nil {
			return types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "bar scan failed", err)
		}

		return types.Bar{}, ErrEndOfData
	}

	var (
		t                       time.Time
		open, high, low, close_ float64
		volume                  float64
	)

	if err := d.rows.Scan(&t, &open, &high, &low, &close_, &volume); err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan bar row", err)
	}

	// ORDER BY guarantees ordering but not uniqueness; a duplicate
	// timestamp in the file is corrupt input and halts the run.
	if d.lastTime.Equal(t) && !d.lastTime.IsZero() {
		return types.Bar{}, errors.Newf(errors.ErrCodeDuplicateTimestamp, "duplicate bar timestamp %s in data file", t)
	}

	d.lastTime = t

	return types.Bar{
		Symbol: d.symbol,
		Time:   t.UTC(),
		Open:   decimal.NewFromFloat(open),
		High:   decimal.NewFromFloat(high),
		Low:    decimal.NewFromFloat(low),
		Close:  decimal.NewFromFloat(close_),
		Volume: decimal.NewFromFloat(volume),
	}, nil
}

func (d *DuckDBSource) Close() error {
	if d.rows != nil {
		d.rows.Close()
	}

	return d.db.Close()
}
