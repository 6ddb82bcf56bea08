package commission

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type CommissionTestSuite struct {
	suite.Suite
}

func TestCommissionTestSuite(t *testing.T) {
	suite.Run(t, new(CommissionTestSuite))
}

func (s *CommissionTestSuite) TestRateAboveMinimum() {
	schedule := NewRateWithMinimum(decimal.NewFromFloat(0.0003), decimal.NewFromInt(5))

	fee := schedule.Calculate(decimal.NewFromInt(100000))
	s.True(fee.Equal(decimal.NewFromInt(30)))
}

func (s *CommissionTestSuite) TestMinimumFloor() {
	schedule := NewRateWithMinimum(decimal.NewFromFloat(0.0003), decimal.NewFromInt(5))

	fee := schedule.Calculate(decimal.NewFromInt(1000))
	s.True(fee.Equal(decimal.NewFromInt(5)))
}

func (s *CommissionTestSuite) TestZeroSchedule() {
	fee := NewZero().Calculate(decimal.NewFromInt(100000))
	s.True(fee.IsZero())
}
