package histogram_test

import (
	"fmt"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hermannm.dev/datehistogram/histogram"
)

func utcMillis(year int, month time.Month, day int, hour int) int64 {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC).UnixMilli()
}

func newRounder(t *testing.T, interval string, timeZone string, offset time.Duration) histogram.Rounder {
	t.Helper()

	parsed, err := histogram.ParseInterval(interval)
	require.NoError(t, err)

	rounder, err := histogram.NewRounder(parsed, timeZone, offset)
	require.NoError(t, err)
	return rounder
}

func TestMonthlyRoundingUTC(t *testing.T) {
	rounder := newRounder(t, "month", "", 0)

	testCases := []struct {
		instant     int64
		expectedKey int64
	}{
		{utcMillis(2012, time.January, 2, 0), utcMillis(2012, time.January, 1, 0)},
		{utcMillis(2012, time.February, 2, 0), utcMillis(2012, time.February, 1, 0)},
		{utcMillis(2012, time.February, 15, 0), utcMillis(2012, time.February, 1, 0)},
		{utcMillis(2012, time.March, 23, 13), utcMillis(2012, time.March, 1, 0)},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.expectedKey, rounder.RoundDown(testCase.instant))
	}
}

func TestDailyRoundingInFixedOffsetZone(t *testing.T) {
	rounder := newRounder(t, "day", "+01:00", 0)

	// Local midnight in +01:00 is 23:00 the previous day in UTC.
	key := rounder.RoundDown(utcMillis(2012, time.January, 2, 0))
	assert.Equal(t, utcMillis(2012, time.January, 1, 23), key)

	// An instant just before local midnight stays in the previous local day.
	key = rounder.RoundDown(utcMillis(2012, time.January, 2, 22))
	assert.Equal(t, utcMillis(2012, time.January, 1, 23), key)
	key = rounder.RoundDown(utcMillis(2012, time.January, 2, 23))
	assert.Equal(t, utcMillis(2012, time.January, 2, 23), key)
}

func TestWeekQuarterAndYearRounding(t *testing.T) {
	// 2012-03-23 was a Friday; ISO weeks start on Monday.
	week := newRounder(t, "week", "", 0)
	assert.Equal(
		t,
		utcMillis(2012, time.March, 19, 0),
		week.RoundDown(utcMillis(2012, time.March, 23, 13)),
	)

	quarter := newRounder(t, "quarter", "", 0)
	assert.Equal(
		t,
		utcMillis(2012, time.April, 1, 0),
		quarter.RoundDown(utcMillis(2012, time.May, 15, 7)),
	)

	year := newRounder(t, "year", "", 0)
	assert.Equal(
		t,
		utcMillis(2012, time.January, 1, 0),
		year.RoundDown(utcMillis(2012, time.November, 30, 23)),
	)
}

func TestFixedIntervalKeepsLocalMidnightAlignment(t *testing.T) {
	// Kathmandu's +05:45 offset is not a whole number of hours, so flooring raw UTC millis by 24h
	// would misalign buckets from local midnight.
	rounder := newRounder(t, "2d", "Asia/Kathmandu", 0)

	kathmandu, err := time.LoadLocation("Asia/Kathmandu")
	require.NoError(t, err)

	noon := time.Date(2020, time.June, 10, 12, 0, 0, 0, kathmandu)
	key := rounder.RoundDown(noon.UnixMilli())

	keyInZone := time.UnixMilli(key).In(kathmandu)
	assert.Equal(t, 0, keyInZone.Hour())
	assert.Equal(t, 0, keyInZone.Minute())
}

func TestOffsetShiftsBucketGrid(t *testing.T) {
	rounder := newRounder(t, "1d", "", 6*time.Hour)

	// With a +6h offset, daily buckets start at 06:00, so 05:00 belongs to the previous bucket.
	key := rounder.RoundDown(utcMillis(2016, time.January, 3, 8))
	assert.Equal(t, utcMillis(2016, time.January, 3, 6), key)

	key = rounder.RoundDown(utcMillis(2016, time.January, 3, 5))
	assert.Equal(t, utcMillis(2016, time.January, 2, 6), key)
}

func TestHourlyRoundingAcrossFallBack(t *testing.T) {
	// Europe/Oslo fell back from +02:00 to +01:00 at 2015-10-25 01:00 UTC, repeating the 02:00
	// wall-clock hour. Each pass of the repeated hour is its own bucket.
	rounder := newRounder(t, "hour", "Europe/Oslo", 0)

	firstPass := rounder.RoundDown(utcMillis(2015, time.October, 25, 0) + 30*60*1000)
	assert.Equal(t, utcMillis(2015, time.October, 25, 0), firstPass)

	secondPass := rounder.RoundDown(utcMillis(2015, time.October, 25, 1) + 30*60*1000)
	assert.Equal(t, utcMillis(2015, time.October, 25, 1), secondPass)
}

func TestNextKeyAcrossDSTTransitions(t *testing.T) {
	rounder := newRounder(t, "day", "Europe/Oslo", 0)

	// The fall-back day 2015-10-25 lasts 25 hours in UTC terms.
	octoberKey := rounder.RoundDown(utcMillis(2015, time.October, 24, 12))
	assert.Equal(t, utcMillis(2015, time.October, 23, 22), octoberKey)

	next := rounder.NextKey(octoberKey)
	assert.Equal(t, utcMillis(2015, time.October, 24, 22), next)

	afterFallBack := rounder.NextKey(next)
	assert.Equal(t, utcMillis(2015, time.October, 25, 23), afterFallBack)
	assert.Equal(t, int64(25*60*60*1000), afterFallBack-next)

	// The spring-forward day 2015-03-29 lasts 23 hours.
	marchKey := rounder.RoundDown(utcMillis(2015, time.March, 29, 12))
	assert.Equal(t, utcMillis(2015, time.March, 28, 23), marchKey)

	afterSpringForward := rounder.NextKey(marchKey)
	assert.Equal(t, utcMillis(2015, time.March, 29, 22), afterSpringForward)
	assert.Equal(t, int64(23*60*60*1000), afterSpringForward-marchKey)
}

func TestRoundingProperties(t *testing.T) {
	intervals := []string{"hour", "day", "month", "30m", "12h"}
	timeZones := []string{"", "Europe/Oslo", "Asia/Kathmandu", "+05:30"}

	// Windows around Europe/Oslo's 2015 DST transitions, plus a DST-free stretch.
	windows := [][2]int64{
		{utcMillis(2015, time.March, 28, 20), utcMillis(2015, time.March, 29, 6)},
		{utcMillis(2015, time.October, 24, 20), utcMillis(2015, time.October, 25, 6)},
		{utcMillis(2012, time.January, 1, 0), utcMillis(2012, time.January, 3, 0)},
	}

	const stepMillis = 13 * 60 * 1000

	for _, interval := range intervals {
		for _, timeZone := range timeZones {
			rounder := newRounder(t, interval, timeZone, 0)
			name := fmt.Sprintf("%s in '%s'", interval, timeZone)

			for _, window := range windows {
				previousKey := int64(0)
				first := true

				for instant := window[0]; instant <= window[1]; instant += stepMillis {
					key := rounder.RoundDown(instant)

					assert.LessOrEqualf(t, key, instant, "%s: round down at %d", name, instant)
					assert.Equalf(
						t, key, rounder.RoundDown(key), "%s: idempotence at %d", name, instant,
					)

					if !first {
						assert.LessOrEqualf(
							t, previousKey, key, "%s: monotonicity at %d", name, instant,
						)
					}
					previousKey = key
					first = false
				}
			}
		}
	}
}

func TestNextKeyAlwaysAdvances(t *testing.T) {
	intervals := []string{"hour", "day", "week", "month", "quarter", "year", "30m", "12h", "2d"}

	for _, interval := range intervals {
		rounder := newRounder(t, interval, "Europe/Oslo", 0)

		key := rounder.RoundDown(utcMillis(2015, time.January, 1, 0))
		for i := 0; i < 500; i++ {
			next := rounder.NextKey(key)
			require.Greaterf(t, next, key, "interval '%s' at key %d", interval, key)
			require.Equalf(
				t, next, rounder.RoundDown(next),
				"interval '%s': next key %d is not interval-aligned", interval, next,
			)
			key = next
		}
	}
}

func TestInvalidTimeZones(t *testing.T) {
	interval, err := histogram.ParseInterval("day")
	require.NoError(t, err)

	for _, timeZone := range []string{"Bogus/Nowhere", "+25:00", "+5:30", "+0a:00"} {
		_, err := histogram.NewRounder(interval, timeZone, 0)
		require.Errorf(t, err, "time zone '%s'", timeZone)

		var timeZoneErr histogram.InvalidTimeZoneError
		require.ErrorAsf(t, err, &timeZoneErr, "time zone '%s'", timeZone)
		assert.Equal(t, timeZone, timeZoneErr.TimeZone)
	}
}

func TestFixedOffsetTimeZones(t *testing.T) {
	for _, timeZone := range []string{"+01:00", "-02:00", "+07", "+05:30", "-11:30"} {
		_, err := histogram.LoadLocation(timeZone)
		require.NoErrorf(t, err, "time zone '%s'", timeZone)
	}
}
