// Package datemath resolves date-math expressions of the form used in search requests: a "now"
// anchor or a "<date>||"-prefixed literal, followed by arithmetic like "+1M", "-2w" and rounding
// like "/d". Plain literal dates (without math) are also accepted.
package datemath

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"hermannm.dev/wrap"
)

const anchorSeparator = "||"

// Resolve evaluates a date-math expression to UTC milliseconds. Arithmetic and rounding are
// performed on the wall clock in the given location, so "now/d" is the start of today in that
// zone.
func Resolve(expression string, now time.Time, location *time.Location) (int64, error) {
	if location == nil {
		location = time.UTC
	}

	var anchor time.Time
	var math string

	switch {
	case strings.HasPrefix(expression, "now"):
		anchor = now.In(location)
		math = expression[len("now"):]
	case strings.Contains(expression, anchorSeparator):
		literal, remainder, _ := strings.Cut(expression, anchorSeparator)
		parsed, err := parseLiteral(literal, location)
		if err != nil {
			return 0, err
		}
		anchor = parsed
		math = remainder
	default:
		parsed, err := parseLiteral(expression, location)
		if err != nil {
			return 0, err
		}
		return parsed.UnixMilli(), nil
	}

	result, err := applyMath(anchor, math)
	if err != nil {
		return 0, wrap.Errorf(err, "invalid date math expression '%s'", expression)
	}
	return result.UnixMilli(), nil
}

func parseLiteral(literal string, location *time.Location) (time.Time, error) {
	if millis, err := strconv.ParseInt(literal, 10, 64); err == nil {
		return time.UnixMilli(millis), nil
	}

	parsed, err := dateparse.ParseIn(literal, location)
	if err != nil {
		return time.Time{}, wrap.Errorf(err, "failed to parse date '%s'", literal)
	}
	return parsed, nil
}

func applyMath(anchor time.Time, math string) (time.Time, error) {
	result := anchor

	runes := []rune(math)
	for i := 0; i < len(runes); {
		switch runes[i] {
		case '/':
			if i+1 == len(runes) {
				return time.Time{}, fmt.Errorf("missing unit after '/' at position %d", i)
			}
			rounded, err := roundDownTo(result, runes[i+1])
			if err != nil {
				return time.Time{}, err
			}
			result = rounded
			i += 2

		case '+', '-':
			sign := 1
			if runes[i] == '-' {
				sign = -1
			}
			i++

			numberStart := i
			for i < len(runes) && runes[i] >= '0' && runes[i] <= '9' {
				i++
			}
			amount := 1
			if i > numberStart {
				amount, _ = strconv.Atoi(string(runes[numberStart:i]))
			}
			if i == len(runes) {
				return time.Time{}, fmt.Errorf("missing unit at position %d", i)
			}

			shifted, err := addUnits(result, sign*amount, runes[i])
			if err != nil {
				return time.Time{}, err
			}
			result = shifted
			i++

		default:
			return time.Time{}, fmt.Errorf("unexpected character '%c' at position %d", runes[i], i)
		}
	}

	return result, nil
}

func addUnits(value time.Time, amount int, unit rune) (time.Time, error) {
	switch unit {
	case 'y':
		return value.AddDate(amount, 0, 0), nil
	case 'M':
		return value.AddDate(0, amount, 0), nil
	case 'w':
		return value.AddDate(0, 0, 7*amount), nil
	case 'd':
		return value.AddDate(0, 0, amount), nil
	case 'h', 'H':
		return value.Add(time.Duration(amount) * time.Hour), nil
	case 'm':
		return value.Add(time.Duration(amount) * time.Minute), nil
	case 's':
		return value.Add(time.Duration(amount) * time.Second), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported date math unit '%c'", unit)
	}
}

func roundDownTo(value time.Time, unit rune) (time.Time, error) {
	year, month, day := value.Date()
	location := value.Location()

	switch unit {
	case 'y':
		return time.Date(year, time.January, 1, 0, 0, 0, 0, location), nil
	case 'M':
		return time.Date(year, month, 1, 0, 0, 0, 0, location), nil
	case 'w':
		daysFromMonday := (int(value.Weekday()) + 6) % 7
		return time.Date(year, month, day-daysFromMonday, 0, 0, 0, 0, location), nil
	case 'd':
		return time.Date(year, month, day, 0, 0, 0, 0, location), nil
	case 'h', 'H':
		return time.Date(year, month, day, value.Hour(), 0, 0, 0, location), nil
	case 'm':
		return time.Date(year, month, day, value.Hour(), value.Minute(), 0, 0, location), nil
	case 's':
		return time.Date(year, month, day, value.Hour(), value.Minute(), value.Second(), 0,
			location), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported rounding unit '%c'", unit)
	}
}
