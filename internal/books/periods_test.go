package books

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDateRangeForPeriod(t *testing.T) {
	now := time.Date(2024, time.May, 15, 10, 30, 0, 0, time.UTC)
	tests := []struct {
		period string
		from   string
		to     string
	}{
		{PeriodThisMonth, "2024-05-01", "2024-05-15"},
		{PeriodLastMonth, "2024-04-01", "2024-04-30"},
		{PeriodTwoMonthsAgo, "2024-03-01", "2024-03-31"},
		{PeriodThisQuarter, "2024-04-01", "2024-05-15"},
		{PeriodLastQuarter, "2024-01-01", "2024-03-31"},
		{PeriodTwoQuartersAgo, "2023-10-01", "2023-12-31"},
		{PeriodThisYear, "2024-01-01", "2024-05-15"},
		{PeriodLastYear, "2023-01-01", "2023-12-31"},
		{"next_decade", "2024-05-01", "2024-05-15"},
	}
	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			assert.Equal(t, TimeRange{FromDate: tt.from, ToDate: tt.to}, DateRangeForPeriod(tt.period, now))
		})
	}
}

func TestDateRangeForPeriod_YearBoundary(t *testing.T) {
	now := time.Date(2024, time.January, 20, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, TimeRange{FromDate: "2023-12-01", ToDate: "2023-12-31"}, DateRangeForPeriod(PeriodLastMonth, now))
	assert.Equal(t, TimeRange{FromDate: "2023-11-01", ToDate: "2023-11-30"}, DateRangeForPeriod(PeriodTwoMonthsAgo, now))
	assert.Equal(t, TimeRange{FromDate: "2023-10-01", ToDate: "2023-12-31"}, DateRangeForPeriod(PeriodLastQuarter, now))
	assert.Equal(t, TimeRange{FromDate: "2023-07-01", ToDate: "2023-09-30"}, DateRangeForPeriod(PeriodTwoQuartersAgo, now))
}

func TestPreviousPeriod(t *testing.T) {
	assert.Equal(t, PeriodLastMonth, PreviousPeriod(PeriodThisMonth))
	assert.Equal(t, PeriodTwoMonthsAgo, PreviousPeriod(PeriodLastMonth))
	assert.Equal(t, PeriodLastQuarter, PreviousPeriod(PeriodThisQuarter))
	assert.Equal(t, PeriodTwoQuartersAgo, PreviousPeriod(PeriodLastQuarter))
	assert.Equal(t, PeriodLastYear, PreviousPeriod(PeriodThisYear))
	assert.Empty(t, PreviousPeriod(PeriodLastYear))
}

func TestPercentageChange(t *testing.T) {
	assert.InDelta(t, 25.0, PercentageChange(125, 100), 1e-9)
	assert.InDelta(t, -50.0, PercentageChange(50, 100), 1e-9)
	assert.Equal(t, 100.0, PercentageChange(10, 0))
	assert.Equal(t, 0.0, PercentageChange(0, 0))
}

func TestDaysOverdue(t *testing.T) {
	now := time.Date(2024, time.May, 15, 18, 0, 0, 0, time.UTC)

	assert.Equal(t, 5, DaysOverdue("2024-05-10", now))
	assert.Equal(t, 0, DaysOverdue("2024-05-15", now))
	assert.Equal(t, 0, DaysOverdue("2024-06-01", now))
	assert.Equal(t, 0, DaysOverdue("", now))
}
