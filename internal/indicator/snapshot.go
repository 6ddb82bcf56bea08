package indicator

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
)

// MACDValue bundles the MACD line, its signal line and the histogram.
type MACDValue struct {
	Line      decimal.Decimal
	Signal    decimal.Decimal
	Histogram decimal.Decimal
}

// BollingerValue bundles the three Bollinger bands.
type BollingerValue struct {
	Upper  decimal.Decimal
	Middle decimal.Decimal
	Lower  decimal.Decimal
}

// Snapshot maps each configured indicator to its value at one bar. A field
// is None until the indicator's lookback window has filled; it is never a
// placeholder zero. Snapshots are derived data: recomputable from the bar
// sequence alone, never a source of truth.
type Snapshot struct {
	Time   time.Time
	Close  decimal.Decimal
	Volume decimal.Decimal

	MAShort   optional.Option[decimal.Decimal]
	MALong    optional.Option[decimal.Decimal]
	RSI       optional.Option[decimal.Decimal]
	MACD      optional.Option[MACDValue]
	Bollinger optional.Option[BollingerValue]
	VolumeMA  optional.Option[decimal.Decimal]
	ATR       optional.Option[decimal.Decimal]
	// ChangeRate is the fractional close-to-close change over the
	// configured change period.
	ChangeRate optional.Option[decimal.Decimal]
}

// HasTrend reports whether both moving averages are defined, the minimum
// for any crossing logic.
func (s Snapshot) HasTrend() bool {
	return s.MAShort.IsSome() && s.MALong.IsSome()
}
