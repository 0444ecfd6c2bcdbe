// Package dateformat formats bucket keys with Java-style date patterns (the pattern dialect used
// by search clients, e.g. "yyyy-MM-dd"), plus the named formats "epoch_millis" and "epoch_second".
package dateformat

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"hermannm.dev/wrap"
)

// DefaultPattern is the layout keys are formatted with when a request gives no format: an ISO 8601
// timestamp with millisecond precision, e.g. "2012-01-01T00:00:00.000Z". Already a Go layout, not
// a Java pattern.
const DefaultPattern = "2006-01-02T15:04:05.000Z07:00"

const (
	formatEpochMillis = "epoch_millis"
	formatEpochSecond = "epoch_second"
)

// Formatter formats UTC millisecond instants in a fixed time zone. The zero Formatter is not
// usable; construct with New.
type Formatter struct {
	layout   string
	epoch    string
	location *time.Location
}

func New(pattern string, location *time.Location) (Formatter, error) {
	if location == nil {
		location = time.UTC
	}

	switch pattern {
	case "":
		return Formatter{layout: DefaultPattern, location: location}, nil
	case formatEpochMillis, formatEpochSecond:
		return Formatter{epoch: pattern, location: location}, nil
	}

	layout, err := javaPatternToGoLayout(pattern)
	if err != nil {
		return Formatter{}, wrap.Errorf(err, "invalid date format pattern '%s'", pattern)
	}
	return Formatter{layout: layout, location: location}, nil
}

func (formatter Formatter) Format(utcMillis int64) string {
	switch formatter.epoch {
	case formatEpochMillis:
		return strconv.FormatInt(utcMillis, 10)
	case formatEpochSecond:
		return strconv.FormatInt(utcMillis/1000, 10)
	}

	return time.UnixMilli(utcMillis).In(formatter.location).Format(formatter.layout)
}

// javaPatternToGoLayout translates the subset of Java date patterns we support to a Go time
// layout. Unsupported pattern letters give an error rather than silently formatting wrong.
func javaPatternToGoLayout(pattern string) (string, error) {
	var layout strings.Builder

	runes := []rune(pattern)
	for i := 0; i < len(runes); {
		char := runes[i]

		// Quoted literals: 'T', with '' as an escaped quote.
		if char == '\'' {
			if i+1 < len(runes) && runes[i+1] == '\'' {
				layout.WriteRune('\'')
				i += 2
				continue
			}
			end := i + 1
			for end < len(runes) && runes[end] != '\'' {
				end++
			}
			if end == len(runes) {
				return "", fmt.Errorf("unterminated quote at position %d", i)
			}
			layout.WriteString(string(runes[i+1 : end]))
			i = end + 1
			continue
		}

		if !isPatternLetter(char) {
			layout.WriteRune(char)
			i++
			continue
		}

		runLength := 1
		for i+runLength < len(runes) && runes[i+runLength] == char {
			runLength++
		}

		translated, err := translatePatternRun(char, runLength)
		if err != nil {
			return "", err
		}
		layout.WriteString(translated)
		i += runLength
	}

	return layout.String(), nil
}

func isPatternLetter(char rune) bool {
	return (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z')
}

func translatePatternRun(char rune, length int) (string, error) {
	switch char {
	case 'y':
		if length == 2 {
			return "06", nil
		}
		return "2006", nil
	case 'M':
		switch {
		case length >= 4:
			return "January", nil
		case length == 3:
			return "Jan", nil
		case length == 2:
			return "01", nil
		default:
			return "1", nil
		}
	case 'd':
		if length >= 2 {
			return "02", nil
		}
		return "2", nil
	case 'E':
		if length >= 4 {
			return "Monday", nil
		}
		return "Mon", nil
	case 'H':
		return "15", nil
	case 'h':
		if length >= 2 {
			return "03", nil
		}
		return "3", nil
	case 'm':
		if length >= 2 {
			return "04", nil
		}
		return "4", nil
	case 's':
		if length >= 2 {
			return "05", nil
		}
		return "5", nil
	case 'S':
		// Fractional seconds; must follow a '.' in the pattern, which Go's layout includes in the
		// fraction itself.
		return strings.Repeat("0", length), nil
	case 'a':
		return "PM", nil
	case 'z':
		return "MST", nil
	case 'Z':
		if length >= 2 {
			return "-07:00", nil
		}
		return "-0700", nil
	default:
		return "", fmt.Errorf("unsupported pattern letter '%c'", char)
	}
}
