package histogram

import "fmt"

// InvalidIntervalError is returned when an interval specification cannot be resolved to a valid
// calendar unit or fixed duration.
type InvalidIntervalError struct {
	Interval string
	Reason   string
}

func (err InvalidIntervalError) Error() string {
	return fmt.Sprintf("invalid interval '%s': %s", err.Interval, err.Reason)
}

// InvalidTimeZoneError is returned when a time zone identifier cannot be resolved against the time
// zone database.
type InvalidTimeZoneError struct {
	TimeZone string
	Cause    error
}

func (err InvalidTimeZoneError) Error() string {
	if err.Cause == nil {
		return fmt.Sprintf("invalid time zone '%s'", err.TimeZone)
	}
	return fmt.Sprintf("invalid time zone '%s': %v", err.TimeZone, err.Cause)
}

func (err InvalidTimeZoneError) Unwrap() error {
	return err.Cause
}

// InvalidDateValueError is returned when a raw document value cannot be interpreted as an instant.
// It fails the whole aggregation request.
type InvalidDateValueError struct {
	Value any
	Cause error
}

func (err InvalidDateValueError) Error() string {
	if err.Cause == nil {
		return fmt.Sprintf("failed to parse '%v' as a date", err.Value)
	}
	return fmt.Sprintf("failed to parse '%v' as a date: %v", err.Value, err.Cause)
}

func (err InvalidDateValueError) Unwrap() error {
	return err.Cause
}

// InvalidBoundsError is returned when the min extended bound rounds to a later bucket than the max
// bound.
type InvalidBoundsError struct {
	Min int64
	Max int64
}

func (err InvalidBoundsError) Error() string {
	return fmt.Sprintf(
		"extended bounds min (%d) is greater than max (%d) after rounding", err.Min, err.Max,
	)
}

// InvalidOrderPathError is returned when a bucket order path does not resolve to a single numeric
// value on every bucket.
type InvalidOrderPathError struct {
	Path   string
	Reason string
}

func (err InvalidOrderPathError) Error() string {
	return fmt.Sprintf("invalid aggregation order path '%s': %s", err.Path, err.Reason)
}
