package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/tidemark-lab/tidemark/internal/logger"
	"github.com/tidemark-lab/tidemark/internal/portfolio"
	"github.com/tidemark-lab/tidemark/internal/types"
)

type LedgerTestSuite struct {
	suite.Suite
	ledger *Ledger
}

func TestLedgerTestSuite(t *testing.T) {
	suite.Run(t, new(LedgerTestSuite))
}

func (s *LedgerTestSuite) SetupTest() {
	ledger, err := New("", logger.NewNopLogger())
	s.Require().NoError(err)
	s.ledger = ledger
}

func (s *LedgerTestSuite) TearDownTest() {
	s.Require().NoError(s.ledger.Close())
}

func (s *LedgerTestSuite) fill(t time.Time, side types.Side) types.Fill {
	return types.Fill{
		OrderID:    uuid.NewString(),
		Symbol:     "TEST",
		Side:       side,
		Quantity:   decimal.NewFromInt(100),
		Price:      decimal.NewFromFloat(50.5),
		Commission: decimal.NewFromFloat(1.5),
		Time:       t,
		Reason:     types.OrderReasonStrategy,
		Strategy:   "technical",
	}
}

func (s *LedgerTestSuite) TestFillsRoundTripInTimeOrder() {
	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	// Insert out of order; the query orders by time.
	s.Require().NoError(s.ledger.RecordFill(s.fill(base.Add(24*time.Hour), types.SideSell)))
	s.Require().NoError(s.ledger.RecordFill(s.fill(base, types.SideBuy)))

	fills, err := s.ledger.Fills()
	s.Require().NoError(err)
	s.Require().Len(fills, 2)

	s.Equal(types.SideBuy, fills[0].Side)
	s.Equal(types.SideSell, fills[1].Side)
	s.True(fills[0].Quantity.Equal(decimal.NewFromInt(100)))
	s.True(fills[0].Price.Equal(decimal.NewFromFloat(50.5)))
	s.Equal("technical", fills[0].Strategy)
}

func (s *LedgerTestSuite) TestEmptyLedger() {
	fills, err := s.ledger.Fills()
	s.Require().NoError(err)
	s.Empty(fills)
}

func (s *LedgerTestSuite) TestRecordEquity() {
	point := portfolio.EquityPoint{
		Time:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Equity: decimal.NewFromInt(100000),
	}
	s.Require().NoError(s.ledger.RecordEquity(point))
}

func (s *LedgerTestSuite) TestExportParquet() {
	s.Require().NoError(s.ledger.RecordFill(s.fill(time.Now(), types.SideBuy)))

	path := filepath.Join(s.T().TempDir(), "fills.parquet")
	s.Require().NoError(s.ledger.ExportParquet(path))
	s.FileExists(path)
}
