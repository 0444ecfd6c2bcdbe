package histogram

import (
	"time"
)

// Rounder computes bucket keys: UTC millisecond instants floored to the start of their interval in
// a target time zone, with an optional signed offset shifting the bucket grid.
//
// Wall-clock arithmetic uses the UTC offset in effect at each instant. This means that during a
// fall-back transition, the repeated wall-clock hour forms two distinct buckets (one per UTC
// offset), and that wall-clock times skipped by a spring-forward transition resolve to the first
// instant after the gap. Both choices are deterministic for a given time zone database.
type Rounder struct {
	interval Interval
	location *time.Location
	// Grid offset in milliseconds. Keys are computed as round(instant-offset)+offset, so a +6h
	// offset with a daily interval gives buckets starting at 06:00 local time.
	offset int64
}

func NewRounder(interval Interval, timeZone string, offset time.Duration) (Rounder, error) {
	location, err := LoadLocation(timeZone)
	if err != nil {
		return Rounder{}, err
	}

	return Rounder{
		interval: interval,
		location: location,
		offset:   offset.Milliseconds(),
	}, nil
}

// LoadLocation resolves a time zone identifier: a tz database name ("Europe/Oslo"), a fixed offset
// ("+01:00", "-05:30", "+07"), or empty for UTC. Fails with InvalidTimeZoneError for identifiers
// that resolve to neither.
func LoadLocation(timeZone string) (*time.Location, error) {
	if timeZone == "" {
		return time.UTC, nil
	}

	// Fixed-offset identifiers like "+01:00" are valid time zones, but not present in the tz
	// database.
	if fixed, isFixed, err := parseFixedOffsetZone(timeZone); err != nil {
		return nil, err
	} else if isFixed {
		return fixed, nil
	}

	location, err := time.LoadLocation(timeZone)
	if err != nil {
		return nil, InvalidTimeZoneError{TimeZone: timeZone, Cause: err}
	}
	return location, nil
}

func parseFixedOffsetZone(timeZone string) (*time.Location, bool, error) {
	if len(timeZone) == 0 || (timeZone[0] != '+' && timeZone[0] != '-') {
		return nil, false, nil
	}

	var hours, minutes int
	switch len(timeZone) {
	case 6: // e.g. "+05:30"
		if timeZone[3] != ':' {
			return nil, false, InvalidTimeZoneError{TimeZone: timeZone}
		}
		hours = int(timeZone[1]-'0')*10 + int(timeZone[2]-'0')
		minutes = int(timeZone[4]-'0')*10 + int(timeZone[5]-'0')
	case 3: // e.g. "+07"
		hours = int(timeZone[1]-'0')*10 + int(timeZone[2]-'0')
	default:
		return nil, false, InvalidTimeZoneError{TimeZone: timeZone}
	}

	for _, char := range timeZone[1:] {
		if char != ':' && (char < '0' || char > '9') {
			return nil, false, InvalidTimeZoneError{TimeZone: timeZone}
		}
	}
	if hours > 18 || minutes > 59 {
		return nil, false, InvalidTimeZoneError{TimeZone: timeZone}
	}

	offsetSeconds := hours*3600 + minutes*60
	if timeZone[0] == '-' {
		offsetSeconds = -offsetSeconds
	}
	return time.FixedZone(timeZone, offsetSeconds), true, nil
}

func (rounder Rounder) Location() *time.Location {
	return rounder.location
}

// RoundDown computes the bucket key for the given UTC millisecond instant: the greatest
// interval-aligned instant in the target zone that does not exceed it.
func (rounder Rounder) RoundDown(utcMillis int64) int64 {
	return rounder.roundWithoutOffset(utcMillis-rounder.offset) + rounder.offset
}

func (rounder Rounder) roundWithoutOffset(utcMillis int64) int64 {
	zoneOffset := rounder.zoneOffsetMillis(utcMillis)
	local := utcMillis + zoneOffset
	truncated := rounder.truncateLocal(local)
	return rounder.localToUTC(truncated, zoneOffset)
}

// truncateLocal floors a wall-clock instant (local milliseconds since epoch) to the start of its
// interval. Second/minute/hour units and fixed durations are plain floors on the local timeline,
// which keeps local-midnight-aligned buckets aligned even under non-whole-hour zone offsets.
// Larger calendar units truncate on date fields.
func (rounder Rounder) truncateLocal(local int64) int64 {
	if !rounder.interval.IsCalendar() {
		return floorTo(local, rounder.interval.Fixed.Milliseconds())
	}

	switch rounder.interval.Calendar {
	case CalendarUnitSecond:
		return floorTo(local, millisPerSecond)
	case CalendarUnitMinute:
		return floorTo(local, millisPerMinute)
	case CalendarUnitHour:
		return floorTo(local, millisPerHour)
	}

	// Decomposing the local timeline as if it were UTC gives us wall-clock date fields without
	// involving the zone's offset again.
	wallClock := time.UnixMilli(local).UTC()
	year, month, day := wallClock.Date()

	switch rounder.interval.Calendar {
	case CalendarUnitDay:
	case CalendarUnitWeek:
		// ISO weeks, starting on Monday.
		daysFromMonday := (int(wallClock.Weekday()) + 6) % 7
		day -= daysFromMonday
	case CalendarUnitMonth:
		day = 1
	case CalendarUnitQuarter:
		month = time.Month((int(month)-1)/3*3 + 1)
		day = 1
	case CalendarUnitYear:
		month = time.January
		day = 1
	}

	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC).UnixMilli()
}

// localToUTC converts a wall-clock instant back to UTC milliseconds, using the zone offset valid
// at the converted instant itself. The hint is the offset the wall-clock instant was derived with,
// so that instants in a fall-back overlap stay on their own side of the transition. Wall-clock
// times inside a spring-forward gap resolve to the end of the gap.
func (rounder Rounder) localToUTC(local int64, hintOffset int64) int64 {
	if utc := local - hintOffset; rounder.zoneOffsetMillis(utc) == hintOffset {
		return utc
	}

	offsetA := rounder.zoneOffsetMillis(local - hintOffset)
	if utc := local - offsetA; rounder.zoneOffsetMillis(utc) == offsetA {
		return utc
	}

	offsetB := rounder.zoneOffsetMillis(local - offsetA)
	if utc := local - offsetB; rounder.zoneOffsetMillis(utc) == offsetB {
		return utc
	}

	// No offset is self-consistent, so the wall-clock time does not exist in this zone. The later
	// of the two candidates is the first instant after the transition.
	return max64(local-offsetA, local-offsetB)
}

// NextKey returns the bucket key one interval after the given key. Across DST transitions,
// consecutive keys may be more or less than the nominal interval duration apart in UTC terms.
func (rounder Rounder) NextKey(key int64) int64 {
	base := key - rounder.offset

	if rounder.interval.IsCalendar() {
		switch rounder.interval.Calendar {
		case CalendarUnitDay, CalendarUnitWeek, CalendarUnitMonth, CalendarUnitQuarter,
			CalendarUnitYear:
			return rounder.nextCalendarDate(base) + rounder.offset
		}
	}

	// Sub-day and fixed intervals step on the absolute timeline, so that e.g. hourly buckets
	// across a fall-back transition cover both passes of the repeated wall-clock hour.
	step := rounder.nominalStepMillis()
	next := rounder.roundWithoutOffset(base + step)
	for next <= base {
		// A fall-back transition stretched this bucket beyond its nominal duration.
		step += millisPerHour
		next = rounder.roundWithoutOffset(base + step)
	}
	return next + rounder.offset
}

func (rounder Rounder) nextCalendarDate(key int64) int64 {
	zoneOffset := rounder.zoneOffsetMillis(key)
	wallClock := time.UnixMilli(key + zoneOffset).UTC()

	var next time.Time
	switch rounder.interval.Calendar {
	case CalendarUnitDay:
		next = wallClock.AddDate(0, 0, 1)
	case CalendarUnitWeek:
		next = wallClock.AddDate(0, 0, 7)
	case CalendarUnitMonth:
		next = wallClock.AddDate(0, 1, 0)
	case CalendarUnitQuarter:
		next = wallClock.AddDate(0, 3, 0)
	default:
		next = wallClock.AddDate(1, 0, 0)
	}

	return rounder.localToUTC(next.UnixMilli(), zoneOffset)
}

func (rounder Rounder) nominalStepMillis() int64 {
	if rounder.interval.IsCalendar() {
		switch rounder.interval.Calendar {
		case CalendarUnitSecond:
			return millisPerSecond
		case CalendarUnitMinute:
			return millisPerMinute
		default:
			return millisPerHour
		}
	}
	return rounder.interval.Fixed.Milliseconds()
}

func (rounder Rounder) zoneOffsetMillis(utcMillis int64) int64 {
	_, offsetSeconds := time.UnixMilli(utcMillis).In(rounder.location).Zone()
	return int64(offsetSeconds) * millisPerSecond
}

const (
	millisPerSecond int64 = 1000
	millisPerMinute int64 = 60 * millisPerSecond
	millisPerHour   int64 = 60 * millisPerMinute
)

func floorTo(value int64, step int64) int64 {
	quotient := value / step
	if value%step < 0 {
		quotient--
	}
	return quotient * step
}

func max64(a int64, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
