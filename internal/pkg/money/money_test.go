package money_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lukashofer/reisekosten/internal/pkg/money"
)

func TestDailyAllowance(t *testing.T) {
	assert.Equal(t, 63.75, money.DailyAllowance(93.752, 0.68))
	assert.Equal(t, 35.00, money.DailyAllowance(50, 0.70))
	assert.Equal(t, 0.00, money.DailyAllowance(0, 0.68))
}

func TestDailyAllowance_RoundsHalfUp(t *testing.T) {
	// 14.715 * 0.68 = 10.0062
	assert.Equal(t, 10.01, money.DailyAllowance(14.715, 0.68))
	// 0.01 * 0.5 = 0.005 rounds up to the cent
	assert.Equal(t, 0.01, money.DailyAllowance(0.01, 0.5))
}

func TestMultiDayAllowance(t *testing.T) {
	assert.Equal(t, 318.75, money.MultiDayAllowance(63.75, 5))
	assert.Equal(t, 175.00, money.MultiDayAllowance(35.00, 5))
	assert.Equal(t, 63.75, money.MultiDayAllowance(63.75, 1))
}

func TestMultiDayAllowance_TwoStageRounding(t *testing.T) {
	// The per-day figure is rounded before multiplying. Collapsing the two
	// roundings into one would give 14.715*0.68*3 = 30.0186 -> 30.02; the
	// stored behavior rounds 10.0062 -> 10.01 first, then 10.01*3 = 30.03.
	daily := money.DailyAllowance(14.715, 0.68)
	assert.Equal(t, 10.01, daily)
	assert.Equal(t, 30.03, money.MultiDayAllowance(daily, 3))
}

func TestWeeklyEstimate(t *testing.T) {
	assert.Equal(t, 318.75, money.WeeklyEstimate(63.75))
}

func TestMonthlyEstimate(t *testing.T) {
	assert.Equal(t, 1402.50, money.MonthlyEstimate(63.75))
}
