package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBounds(t *testing.T) {
	cases := []struct {
		periodType PeriodType
		number     int
		start, end time.Time
	}{
		{PeriodMonth, 2, date(2024, 2, 1), date(2024, 2, 29)},
		{PeriodMonth, 12, date(2024, 12, 1), date(2024, 12, 31)},
		{PeriodQuarter, 3, date(2024, 7, 1), date(2024, 9, 30)},
		{PeriodSemester, 2, date(2024, 7, 1), date(2024, 12, 31)},
		{PeriodYear, 1, date(2024, 1, 1), date(2024, 12, 31)},
	}
	for _, tc := range cases {
		start, end, err := Bounds(2024, tc.periodType, tc.number)
		require.NoError(t, err)
		assert.Equal(t, tc.start, start, "%s %d", tc.periodType, tc.number)
		assert.Equal(t, tc.end, end, "%s %d", tc.periodType, tc.number)
	}
}

func TestBoundsRejectsOutOfRange(t *testing.T) {
	_, _, err := Bounds(2024, PeriodQuarter, 5)
	assert.ErrorIs(t, err, ErrInvalidPeriodNumber)

	_, _, err = Bounds(2024, PeriodMonth, 0)
	assert.ErrorIs(t, err, ErrInvalidPeriodNumber)

	_, _, err = Bounds(12, PeriodMonth, 1)
	assert.ErrorIs(t, err, ErrInvalidYear)

	_, _, err = Bounds(2024, PeriodType("week"), 1)
	assert.ErrorIs(t, err, ErrInvalidPeriodType)
}

func TestEnsureOpen(t *testing.T) {
	assert.NoError(t, CollectionPeriod{Status: StatusOpen}.EnsureOpen())
	assert.ErrorIs(t, CollectionPeriod{Status: StatusClosed}.EnsureOpen(), ErrPeriodClosed)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "2025-month-06", CollectionPeriod{Year: 2025, PeriodType: PeriodMonth, PeriodNumber: 6}.Label())
}
