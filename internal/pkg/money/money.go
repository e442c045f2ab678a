// Package money implements the allowance arithmetic with currency precision.
//
// Amounts are computed with decimal arithmetic and rounded half-up to the
// nearest cent. Multi-day totals round the per-day figure first and then
// round again after multiplying by the day count. Collapsing the two
// roundings into one produces different cent-level results and would
// disagree with historically issued figures, so the two-stage behavior is
// deliberate and load-bearing.
package money

import (
	"github.com/shopspring/decimal"
)

// Workday approximations used system-wide for estimates.
const (
	WorkdaysPerWeek  = 5
	WorkdaysPerMonth = 22
)

// DailyAllowance returns distanceKm * costPerKm rounded to two decimals.
func DailyAllowance(distanceKm, costPerKm float64) float64 {
	d := decimal.NewFromFloat(distanceKm).
		Mul(decimal.NewFromFloat(costPerKm)).
		Round(2)
	f, _ := d.Float64()
	return f
}

// MultiDayAllowance multiplies an already-rounded daily allowance by the day
// count and rounds the product again.
func MultiDayAllowance(dailyAllowance float64, days int) float64 {
	d := decimal.NewFromFloat(dailyAllowance).
		Mul(decimal.NewFromInt(int64(days))).
		Round(2)
	f, _ := d.Float64()
	return f
}

// WeeklyEstimate is the daily allowance projected over a working week.
func WeeklyEstimate(dailyAllowance float64) float64 {
	return MultiDayAllowance(dailyAllowance, WorkdaysPerWeek)
}

// MonthlyEstimate is the daily allowance projected over a working month.
func MonthlyEstimate(dailyAllowance float64) float64 {
	return MultiDayAllowance(dailyAllowance, WorkdaysPerMonth)
}
