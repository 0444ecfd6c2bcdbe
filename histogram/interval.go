package histogram

import (
	"strconv"
	"strings"
	"time"

	"hermannm.dev/enumnames"
)

type CalendarUnit int8

const (
	CalendarUnitSecond CalendarUnit = iota + 1
	CalendarUnitMinute
	CalendarUnitHour
	CalendarUnitDay
	CalendarUnitWeek
	CalendarUnitMonth
	CalendarUnitQuarter
	CalendarUnitYear
)

var calendarUnitMap = enumnames.NewMap(map[CalendarUnit]string{
	CalendarUnitSecond:  "SECOND",
	CalendarUnitMinute:  "MINUTE",
	CalendarUnitHour:    "HOUR",
	CalendarUnitDay:     "DAY",
	CalendarUnitWeek:    "WEEK",
	CalendarUnitMonth:   "MONTH",
	CalendarUnitQuarter: "QUARTER",
	CalendarUnitYear:    "YEAR",
})

func (unit CalendarUnit) IsValid() bool {
	return calendarUnitMap.ContainsEnumValue(unit)
}

func (unit CalendarUnit) String() string {
	return calendarUnitMap.GetNameOrFallback(unit, "INVALID_CALENDAR_UNIT")
}

func (unit CalendarUnit) MarshalJSON() ([]byte, error) {
	return calendarUnitMap.MarshalToNameJSON(unit)
}

func (unit *CalendarUnit) UnmarshalJSON(bytes []byte) error {
	return calendarUnitMap.UnmarshalFromNameJSON(bytes, unit)
}

// Interval is the resolved form of an interval specification: either a calendar unit (truncated on
// wall-clock fields in the target time zone), or a fixed duration (floored on a zone-relative
// epoch). Exactly one of the two is set.
type Interval struct {
	Calendar CalendarUnit  `json:"calendar,omitempty"`
	Fixed    time.Duration `json:"fixed,omitempty"`
}

func CalendarInterval(unit CalendarUnit) Interval {
	return Interval{Calendar: unit}
}

func FixedInterval(duration time.Duration) (Interval, error) {
	if duration <= 0 {
		return Interval{}, InvalidIntervalError{
			Interval: duration.String(),
			Reason:   "fixed interval must be a positive duration",
		}
	}
	return Interval{Fixed: duration}, nil
}

func (interval Interval) IsCalendar() bool {
	return interval.Calendar != 0
}

func (interval Interval) String() string {
	if interval.IsCalendar() {
		return interval.Calendar.String()
	}
	return interval.Fixed.String()
}

var calendarUnitKeywords = map[string]CalendarUnit{
	"second":  CalendarUnitSecond,
	"1s":      CalendarUnitSecond,
	"minute":  CalendarUnitMinute,
	"1m":      CalendarUnitMinute,
	"hour":    CalendarUnitHour,
	"1h":      CalendarUnitHour,
	"day":     CalendarUnitDay,
	"1d":      CalendarUnitDay,
	"week":    CalendarUnitWeek,
	"1w":      CalendarUnitWeek,
	"month":   CalendarUnitMonth,
	"1M":      CalendarUnitMonth,
	"quarter": CalendarUnitQuarter,
	"1q":      CalendarUnitQuarter,
	"year":    CalendarUnitYear,
	"1y":      CalendarUnitYear,
}

var fixedUnitDurations = map[string]time.Duration{
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  24 * time.Hour,
	"w":  7 * 24 * time.Hour,
}

// ParseInterval resolves a raw interval specification to an Interval. Bare calendar keywords
// ("month") and single calendar units ("1M") give calendar intervals; a number with a unit suffix
// ("90s", "12h", "3d") gives a fixed duration. Months, quarters and years are only defined as
// multiplier-1 calendar units, since e.g. "2 months" is not a uniform fixed duration.
func ParseInterval(raw string) (Interval, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Interval{}, InvalidIntervalError{Interval: raw, Reason: "interval is empty"}
	}

	if unit, isCalendar := calendarUnitKeywords[trimmed]; isCalendar {
		return CalendarInterval(unit), nil
	}

	numberEnd := len(trimmed)
	for i, char := range trimmed {
		if char < '0' || char > '9' {
			numberEnd = i
			break
		}
	}

	number, err := strconv.ParseInt(trimmed[:numberEnd], 10, 64)
	if err != nil {
		return Interval{}, InvalidIntervalError{
			Interval: raw,
			Reason:   "expected a calendar unit keyword or a number followed by a unit",
		}
	}

	unitSuffix := trimmed[numberEnd:]
	switch unitSuffix {
	case "M", "q", "y":
		// Single calendar units of these are caught by the keyword table above, so the
		// multiplier here must be != 1.
		return Interval{}, InvalidIntervalError{
			Interval: raw,
			Reason:   "months, quarters and years do not support multipliers",
		}
	}

	unitDuration, recognized := fixedUnitDurations[unitSuffix]
	if !recognized {
		return Interval{}, InvalidIntervalError{
			Interval: raw,
			Reason:   "unrecognized interval unit '" + unitSuffix + "'",
		}
	}
	if number <= 0 {
		return Interval{}, InvalidIntervalError{
			Interval: raw,
			Reason:   "interval must be greater than 0",
		}
	}

	return Interval{Fixed: time.Duration(number) * unitDuration}, nil
}
