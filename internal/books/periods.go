package books

import (
	"math"
	"time"
)

const (
	PeriodThisMonth      = "this_month"
	PeriodLastMonth      = "last_month"
	PeriodTwoMonthsAgo   = "two_months_ago"
	PeriodThisQuarter    = "this_quarter"
	PeriodLastQuarter    = "last_quarter"
	PeriodTwoQuartersAgo = "two_quarters_ago"
	PeriodThisYear       = "this_year"
	PeriodLastYear       = "last_year"
)

const dateLayout = "2006-01-02"

// previousPeriods maps a period to the one it is compared against.
var previousPeriods = map[string]string{
	PeriodThisMonth:   PeriodLastMonth,
	PeriodLastMonth:   PeriodTwoMonthsAgo,
	PeriodThisQuarter: PeriodLastQuarter,
	PeriodLastQuarter: PeriodTwoQuartersAgo,
	PeriodThisYear:    PeriodLastYear,
}

type TimeRange struct {
	FromDate string `json:"from_date"`
	ToDate   string `json:"to_date"`
}

// PreviousPeriod returns the comparison period, or "" when there is none.
func PreviousPeriod(period string) string {
	return previousPeriods[period]
}

// DateRangeForPeriod resolves a named period to a date range relative to now.
// Unknown periods resolve to the current month.
func DateRangeForPeriod(period string, now time.Time) TimeRange {
	year, month, _ := now.Date()
	loc := now.Location()
	date := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
	quarterStart := month - (month-1)%3

	from, to := date(year, month, 1), now
	switch period {
	case PeriodLastMonth:
		from, to = date(year, month-1, 1), date(year, month, 0)
	case PeriodTwoMonthsAgo:
		from, to = date(year, month-2, 1), date(year, month-1, 0)
	case PeriodThisQuarter:
		from = date(year, quarterStart, 1)
	case PeriodLastQuarter:
		from, to = date(year, quarterStart-3, 1), date(year, quarterStart, 0)
	case PeriodTwoQuartersAgo:
		from, to = date(year, quarterStart-6, 1), date(year, quarterStart-3, 0)
	case PeriodThisYear:
		from = date(year, time.January, 1)
	case PeriodLastYear:
		from, to = date(year-1, time.January, 1), date(year-1, time.December, 31)
	}
	return TimeRange{FromDate: from.Format(dateLayout), ToDate: to.Format(dateLayout)}
}

// PercentageChange is the relative change from previous to current in percent.
// A zero previous value yields 100 for growth and 0 otherwise.
func PercentageChange(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return (current - previous) / previous * 100
}

// DaysOverdue counts whole days between dueDate and now, never negative.
// Unparseable or empty dates count as not overdue.
func DaysOverdue(dueDate string, now time.Time) int {
	due, err := time.ParseInLocation(dateLayout, dueDate, now.Location())
	if err != nil {
		return 0
	}
	year, month, day := now.Date()
	today := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	days := int(math.Ceil(today.Sub(due).Hours() / 24))
	return max(0, days)
}
