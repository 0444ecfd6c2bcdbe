package datemath_test

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hermannm.dev/datehistogram/datemath"
)

func TestNowAnchoredExpressions(t *testing.T) {
	// 2012-03-15 was a Thursday.
	now := time.Date(2012, time.March, 15, 14, 30, 45, 0, time.UTC)

	testCases := []struct {
		expression string
		expected   time.Time
	}{
		{"now", now},
		{"now/d", time.Date(2012, time.March, 15, 0, 0, 0, 0, time.UTC)},
		{"now-1d/d", time.Date(2012, time.March, 14, 0, 0, 0, 0, time.UTC)},
		{"now/w", time.Date(2012, time.March, 12, 0, 0, 0, 0, time.UTC)},
		{"now/M", time.Date(2012, time.March, 1, 0, 0, 0, 0, time.UTC)},
		{"now/y", time.Date(2012, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{"now+1M/M", time.Date(2012, time.April, 1, 0, 0, 0, 0, time.UTC)},
		{"now-2w", now.AddDate(0, 0, -14)},
		{"now+3h", now.Add(3 * time.Hour)},
		{"now-30m/h", time.Date(2012, time.March, 15, 14, 0, 0, 0, time.UTC)},
		{"now+s", now.Add(time.Second)},
	}

	for _, testCase := range testCases {
		resolved, err := datemath.Resolve(testCase.expression, now, time.UTC)
		require.NoErrorf(t, err, "expression '%s'", testCase.expression)
		assert.Equalf(
			t, testCase.expected.UnixMilli(), resolved, "expression '%s'", testCase.expression,
		)
	}
}

func TestRoundingUsesWallClockInLocation(t *testing.T) {
	oslo, err := time.LoadLocation("Europe/Oslo")
	require.NoError(t, err)

	// 23:30 UTC is already past midnight in Oslo, so "now/d" gives the start of the next UTC day's
	// local counterpart: 2012-03-15 23:00 UTC.
	now := time.Date(2012, time.March, 15, 23, 30, 0, 0, time.UTC)

	resolved, err := datemath.Resolve("now/d", now, oslo)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2012, time.March, 15, 23, 0, 0, 0, time.UTC).UnixMilli(), resolved)
}

func TestLiteralExpressions(t *testing.T) {
	now := time.Now()

	resolved, err := datemath.Resolve("2012-03-15", now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2012, time.March, 15, 0, 0, 0, 0, time.UTC).UnixMilli(), resolved)

	// Integer literals are epoch milliseconds.
	resolved, err = datemath.Resolve("1330560000000", now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, int64(1330560000000), resolved)

	resolved, err = datemath.Resolve("2012-03-15T10:00:00Z||+1M", now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2012, time.April, 15, 10, 0, 0, 0, time.UTC).UnixMilli(), resolved)

	resolved, err = datemath.Resolve("2012-03-15||/M+1d", now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2012, time.March, 2, 0, 0, 0, 0, time.UTC).UnixMilli(), resolved)
}

func TestInvalidExpressions(t *testing.T) {
	now := time.Now()

	invalidExpressions := []string{
		"not a date",
		"now*3",
		"now+1x",
		"now/",
		"now/q",
		"2012-03-15||+1",
		"||/d",
	}
	for _, expression := range invalidExpressions {
		_, err := datemath.Resolve(expression, now, time.UTC)
		require.Errorf(t, err, "expression '%s'", expression)
	}
}
