// Package marketdata acquires historical bars from external providers and
// persists them for replay.
package marketdata

import (
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"

	"github.com/tidemark-lab/tidemark/internal/types"
	"github.com/tidemark-lab/tidemark/pkg/errors"
)

// Store accumulates downloaded bars in DuckDB and exports them as a parquet
// file the backtest datasource can read directly.
type Store struct {
	db *sql.DB
	tx *sql.Tx
	sq squirrel.StatementBuilderType
}

func NewStore() (*Store, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to open staging database", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			id VARCHAR PRIMARY KEY,
			time TIMESTAMP NOT NULL,
			symbol VARCHAR NOT NULL,
			open DOUBLE NOT NULL,
			high DOUBLE NOT NULL,
			low DOUBLE NOT NULL,
			close DOUBLE NOT NULL,
			volume DOUBLE NOT NULL
		);`)
	if err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to create staging table", err)
	}

	tx, err := db.Begin()
	if err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to begin staging transaction", err)
	}

	return &Store{
		db: db,
		tx: tx,
		sq: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// Append stages one bar.
func (s *Store) Append(bar types.Bar) error {
	query, args, err := s.sq.
		Insert("bars").
		Columns("id", "time", "symbol", "open", "high", "low", "close", "volume").
		Values(
			uuid.NewString(),
			bar.Time,
			bar.Symbol,
			bar.Open.InexactFloat64(),
			bar.High.InexactFloat64(),
			bar.Low.InexactFloat64(),
			bar.Close.InexactFloat64(),
			bar.Volume.InexactFloat64(),
		).
		ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to build bar insert", err)
	}

	if _, err := s.tx.Exec(query, args...); err != nil {
		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to stage bar", err)
	}

	return nil
}

// Finalize commits the staged bars and writes them, time-ordered and
// deduplicated, to a parquet file.
func (s *Store) Finalize(outputPath string) error {
	if err := s.tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to commit staged bars", err)
	}

	query := fmt.Sprintf(`
		COPY (
			SELECT DISTINCT ON (time) time, symbol, open, high, low, close, volume
			FROM bars
			ORDER BY time ASC
		) TO '%s' (FORMAT PARQUET);`, outputPath)

	if _, err := s.db.Exec(query); err != nil {
		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to export parquet", err)
	}

	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
