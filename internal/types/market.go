package types

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tidemark-lab/tidemark/pkg/errors"
)

// Bar is one OHLCV record for a fixed interval. Bars are immutable once
// recorded and ordered by timestamp; a series never contains two bars with
// the same timestamp for the same symbol.
type Bar struct {
	Symbol string          `yaml:"symbol" json:"symbol"`
	Time   time.Time       `yaml:"time" json:"time"`
	Open   decimal.Decimal `yaml:"open" json:"open"`
	High   decimal.Decimal `yaml:"high" json:"high"`
	Low    decimal.Decimal `yaml:"low" json:"low"`
	Close  decimal.Decimal `yaml:"close" json:"close"`
	Volume decimal.Decimal `yaml:"volume" json:"volume"`
}

// Validate rejects bars the pipeline must not act on. A malformed bar halts
// a replay rather than being skipped, since a silently dropped bar would
// desynchronize every indicator computed after it.
func (b Bar) Validate() error {
	if b.Time.IsZero() {
		return errors.New(errors.ErrCodeMalformedBar, "bar has zero timestamp")
	}

	if b.Open.Sign() <= 0 || b.High.Sign() <= 0 || b.Low.Sign() <= 0 || b.Close.Sign() <= 0 {
		return errors.Newf(errors.ErrCodeMalformedBar, "bar at %s has non-positive price", b.Time)
	}

	if b.Volume.Sign() < 0 {
		return errors.Newf(errors.ErrCodeMalformedBar, "bar at %s has negative volume", b.Time)
	}

	if b.High.LessThan(b.Low) {
		return errors.Newf(errors.ErrCodeMalformedBar, "bar at %s has high below low", b.Time)
	}

	return nil
}
