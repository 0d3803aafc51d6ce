package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWeekBoundsMidweek(t *testing.T) {
	// Wednesday 2026-03-04 belongs to the week Sunday 2026-03-01 ..
	// Sunday 2026-03-08 (exclusive).
	start, end := WeekBounds(time.Date(2026, 3, 4, 15, 45, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), end)
}

func TestWeekBoundsOnSunday(t *testing.T) {
	// A Sunday starts its own week, whatever the clock says.
	start, end := WeekBounds(time.Date(2026, 3, 1, 23, 59, 59, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), end)
}

func TestWeekBoundsHalfOpen(t *testing.T) {
	start, end := WeekBounds(time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)) // Saturday
	saturday := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	nextSunday := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	assert.False(t, saturday.Before(start))
	assert.True(t, saturday.Before(end))
	assert.False(t, nextSunday.Before(end), "next Sunday is outside the interval")
}

func TestWeekBoundsKeepsLocation(t *testing.T) {
	loc := time.FixedZone("minus7", -7*3600)
	start, end := WeekBounds(time.Date(2026, 3, 4, 8, 0, 0, 0, loc))
	assert.Equal(t, loc, start.Location())
	assert.Equal(t, 7*24*time.Hour, end.Sub(start))
}
