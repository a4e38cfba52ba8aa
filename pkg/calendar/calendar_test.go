package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func TestMidnight(t *testing.T) {
	ts := time.Date(2024, 3, 7, 15, 42, 9, 123, time.UTC)
	assert.Equal(t, d(2024, 3, 7), Midnight(ts))

	// Non-UTC times normalize to the UTC day.
	loc := time.FixedZone("UTC+9", 9*3600)
	late := time.Date(2024, 3, 8, 2, 0, 0, 0, loc) // still March 7 in UTC
	assert.Equal(t, d(2024, 3, 7), Midnight(late))
}

func TestDaily(t *testing.T) {
	dates := Daily(d(2024, 2, 27), d(2024, 3, 2))
	require.Len(t, dates, 5) // leap year, February 29 included
	assert.Equal(t, d(2024, 2, 29), dates[2])

	assert.Nil(t, Daily(d(2024, 3, 2), d(2024, 3, 1)))
	assert.Len(t, Daily(d(2024, 3, 1), d(2024, 3, 1)), 1)
}

func TestIsBusinessDay(t *testing.T) {
	assert.True(t, IsBusinessDay(d(2024, 3, 7)))   // Thursday
	assert.True(t, IsBusinessDay(d(2024, 3, 8)))   // Friday
	assert.False(t, IsBusinessDay(d(2024, 3, 9)))  // Saturday
	assert.False(t, IsBusinessDay(d(2024, 3, 10))) // Sunday
	assert.True(t, IsBusinessDay(d(2024, 3, 11)))  // Monday
}

func TestAddBusinessDays(t *testing.T) {
	// Friday plus one business day is Monday.
	assert.Equal(t, d(2024, 3, 11), AddBusinessDays(d(2024, 3, 8), 1))
	// Monday minus one business day is Friday.
	assert.Equal(t, d(2024, 3, 8), AddBusinessDays(d(2024, 3, 11), -1))
	// A Saturday start rolls forward before counting.
	assert.Equal(t, d(2024, 3, 12), AddBusinessDays(d(2024, 3, 9), 1))
	// Five business days span a full week.
	assert.Equal(t, d(2024, 3, 14), AddBusinessDays(d(2024, 3, 7), 5))
	assert.Equal(t, d(2024, 3, 7), AddBusinessDays(d(2024, 3, 7), 0))
}

func TestLastPerWeek(t *testing.T) {
	// Wednesday 2024-03-06 through Tuesday 2024-03-12 crosses one ISO
	// week boundary (Sunday the 10th to Monday the 11th).
	dates := Daily(d(2024, 3, 6), d(2024, 3, 12))
	idx := LastPerWeek(dates)
	require.Len(t, idx, 2)
	assert.Equal(t, d(2024, 3, 10), dates[idx[0]])
	assert.Equal(t, d(2024, 3, 12), dates[idx[1]])

	assert.Nil(t, LastPerWeek(nil))
	single := LastPerWeek([]time.Time{d(2024, 3, 6)})
	require.Len(t, single, 1)
	assert.Zero(t, single[0])
}
