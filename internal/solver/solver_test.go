package solver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icclab/loadshift/internal/dtw"
)

func hour(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(dtw.PriceTimeLayout, value)
	require.NoError(t, err)
	return ts
}

// testCurve is the two-day spot-market snapshot used across the suite:
// intra-day prices for 2016-07-06 and day-ahead prices for 2016-07-07.
func testCurve(t *testing.T) *dtw.PriceCurve {
	t.Helper()
	day := func(date string, prices []float64) dtw.HourlyPrices {
		out := make(dtw.HourlyPrices, len(prices))
		for h, p := range prices {
			out[hour(t, date).Add(time.Duration(h)*time.Hour)] = p
		}
		return out
	}
	return &dtw.PriceCurve{
		IntraDay: day("2016-07-06T00:00:00", []float64{
			24.0, 23, 17.4, 18.5, 20, 26, 28.2, 30.8, 32.3, 32, 39.6, 44.9,
			32, 33, 31.8, 29.5, 30.5, 30.6, 31, 32, 36.2, 29.2, 34.4, 33.6,
		}),
		DayAhead: day("2016-07-07T00:00:00", []float64{
			30.4, 27.3, 27, 19, 20.5, 27.2, 30.4, 34.8, 36.2, 35.4, 36.5, 46,
			42, 34, 43, 33.8, 34.55, 36, 37.6, 38.1, 33.5, 37.5, 37, 35,
		}),
	}
}

func TestOptimalStart_Afternoon(t *testing.T) {
	now := hour(t, "2016-07-06T15:00:00").Add(43 * time.Minute)
	deadline := hour(t, "2016-07-06T23:00:00")

	start, ok := OptimalStart(now, testCurve(t), 75, deadline)
	require.True(t, ok)
	assert.Equal(t, hour(t, "2016-07-06T21:00:00"), start)
}

func TestOptimalStart_Morning(t *testing.T) {
	now := hour(t, "2016-07-06T07:00:00").Add(43 * time.Minute)
	deadline := hour(t, "2016-07-06T23:00:00")

	start, ok := OptimalStart(now, testCurve(t), 150, deadline)
	require.True(t, ok)
	assert.Equal(t, hour(t, "2016-07-06T15:00:00"), start)
}

func TestOptimalStart_Deterministic(t *testing.T) {
	now := hour(t, "2016-07-06T07:00:00").Add(43 * time.Minute)
	deadline := hour(t, "2016-07-06T23:00:00")

	first, ok := OptimalStart(now, testCurve(t), 150, deadline)
	require.True(t, ok)
	for i := 0; i < 50; i++ {
		again, ok := OptimalStart(now, testCurve(t), 150, deadline)
		require.True(t, ok)
		assert.Equal(t, first, again)
	}
}

func TestOptimalStart_ResultBounds(t *testing.T) {
	curve := testCurve(t)
	now := hour(t, "2016-07-06T03:00:00").Add(17 * time.Minute)
	deadline := hour(t, "2016-07-07T06:00:00")
	duration := 180

	start, ok := OptimalStart(now, curve, duration, deadline)
	require.True(t, ok)
	assert.True(t, start.After(now), "start must be in the future")
	assert.Equal(t, 0, start.Minute(), "start must be hour-aligned")
	finish := start.Add(time.Duration(duration/60) * time.Hour)
	assert.False(t, finish.After(deadline), "footprint must end by the deadline")
}

func TestOptimalStart_TieBreaksEarliest(t *testing.T) {
	flat := &dtw.PriceCurve{
		IntraDay: dtw.HourlyPrices{
			hour(t, "2016-07-06T10:00:00"): 20,
			hour(t, "2016-07-06T11:00:00"): 20,
			hour(t, "2016-07-06T12:00:00"): 20,
		},
	}
	now := hour(t, "2016-07-06T08:00:00").Add(5 * time.Minute)
	deadline := hour(t, "2016-07-06T23:00:00")

	start, ok := OptimalStart(now, flat, 60, deadline)
	require.True(t, ok)
	assert.Equal(t, hour(t, "2016-07-06T10:00:00"), start)
}

func TestOptimalStart_RejectsFootprintPastHorizon(t *testing.T) {
	// Only the final two hours of the horizon remain; a 3-hour footprint
	// cannot fit anywhere.
	curve := &dtw.PriceCurve{
		DayAhead: dtw.HourlyPrices{
			hour(t, "2016-07-07T22:00:00"): 10,
			hour(t, "2016-07-07T23:00:00"): 11,
		},
	}
	now := hour(t, "2016-07-06T12:00:00")
	deadline := hour(t, "2016-07-09T00:00:00")

	_, ok := OptimalStart(now, curve, 180, deadline)
	assert.False(t, ok)
}

func TestOptimalStart_NoEligibleHours(t *testing.T) {
	now := hour(t, "2016-07-06T15:43:00")
	// Deadline so tight every remaining hour is excluded.
	deadline := hour(t, "2016-07-06T16:00:00")

	_, ok := OptimalStart(now, testCurve(t), 120, deadline)
	assert.False(t, ok)
}

func TestOptimalStart_SubHourDurationCostsZeroHours(t *testing.T) {
	// A 30-minute job has an empty integer-hour footprint: every eligible
	// hour costs zero and the earliest wins.
	now := hour(t, "2016-07-06T15:43:00")
	deadline := hour(t, "2016-07-06T23:00:00")

	start, ok := OptimalStart(now, testCurve(t), 30, deadline)
	require.True(t, ok)
	assert.Equal(t, hour(t, "2016-07-06T16:00:00"), start)
}

func TestOptimalStart_CurrentHourWindowExcluded(t *testing.T) {
	now := hour(t, "2016-07-06T02:00:00") // exactly on the hour
	deadline := hour(t, "2016-07-06T23:00:00")

	start, ok := OptimalStart(now, testCurve(t), 60, deadline)
	require.True(t, ok)
	// 02:00 (17.4) is the global minimum but falls in the current window;
	// 03:00 (18.5) is the cheapest eligible hour.
	assert.Equal(t, hour(t, "2016-07-06T03:00:00"), start)
}
