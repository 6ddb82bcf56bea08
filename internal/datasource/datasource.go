// Package datasource feeds bars into the engine. The backtest and live
// implementations satisfy the same interface; the engine replays history and
// follows a live feed through identical code.
package datasource

import (
	"context"
	"errors"

	"github.com/tidemark-lab/tidemark/internal/types"
)

// ErrEndOfData signals the orderly end of a bar stream. A backtest driver
// finishes on it; it is not a failure.
var ErrEndOfData = errors.New("end of bar data")

// BarSource produces bars in strictly increasing timestamp order.
type BarSource interface {
	// Next blocks until the next bar is available, the stream ends
	// (ErrEndOfData) or the context is cancelled.
	Next(ctx context.Context) (types.Bar, error)
	Close() error
}

// SliceSource replays an in-memory bar slice. Used by tests and for small
// ad-hoc runs.
type SliceSource struct {
	bars []types.Bar
	pos  int
}

func NewSliceSource(bars []types.Bar) *SliceSource {
	return &SliceSource{bars: bars}
}

func (s *SliceSource) Next(ctx context.Context) (types.Bar, error) {
	if err := ctx.Err(); err != nil {
		return types.Bar{}, err
	}

	if s.pos >= len(s.bars) {
		return types.Bar{}, ErrEndOfData
	}

	bar := s.bars[s.pos]
	s.pos++

	return bar, nil
}

func (s *SliceSource) Close() error {
	return nil
}
