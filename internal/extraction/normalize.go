package extraction

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoDateRe   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	fullTimeRe  = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}$`)
	shortTimeRe = regexp.MustCompile(`^\d{2}:\d{2}$`)
	looseTimeRe = regexp.MustCompile(`(\d{1,2}):?(\d{2})?`)
)

// NormalizeDate coerces a raw extracted date into strict YYYY-MM-DD.
// Partial dates are reinterpreted best-effort: a two-part value is assumed
// to be month-day in now's year; a three-part value whose first part is not
// a 4-digit year is treated the same way. Values that survive no
// reinterpretation are rejected with ok=false, never an error.
func NormalizeDate(raw string, now time.Time) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if isoDateRe.MatchString(raw) {
		return raw, true
	}

	year := now.Year()
	parts := strings.Split(raw, "-")
	var month, day string
	switch len(parts) {
	case 2:
		month, day = parts[0], parts[1]
	case 3:
		if len(parts[0]) == 4 {
			// 4-digit year but malformed month/day
			year64, err := strconv.Atoi(parts[0])
			if err != nil {
				return "", false
			}
			year = year64
		}
		month, day = parts[1], parts[2]
	default:
		return "", false
	}

	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return "", false
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return "", false
	}

	candidate := fmt.Sprintf("%04d-%02d-%02d", year, m, d)
	if _, err := time.Parse("2006-01-02", candidate); err != nil {
		return "", false
	}
	return candidate, true
}

// NormalizeTime coerces a raw extracted time into strict HH:MM:SS.
// HH:MM values gain seconds. Anything else goes through a loose H[:MM]
// reparse with a 12-hour heuristic: a literal "pm" or the Urdu period
// marker "bajay" bumps hours below 12 into the afternoon. Unparseable
// values are rejected with ok=false, never an error.
func NormalizeTime(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if fullTimeRe.MatchString(raw) {
		if validClock(raw[:2], raw[3:5]) {
			return raw, true
		}
		return "", false
	}
	if shortTimeRe.MatchString(raw) {
		if validClock(raw[:2], raw[3:5]) {
			return raw + ":00", true
		}
		return "", false
	}

	match := looseTimeRe.FindStringSubmatch(raw)
	if match == nil {
		return "", false
	}
	hours, err := strconv.Atoi(match[1])
	if err != nil {
		return "", false
	}
	minutes := 0
	if match[2] != "" {
		if minutes, err = strconv.Atoi(match[2]); err != nil {
			return "", false
		}
	}

	lower := strings.ToLower(raw)
	if hours < 12 && (strings.Contains(lower, "pm") || strings.Contains(lower, "bajay")) {
		hours += 12
	}
	if hours > 23 || minutes > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d:00", hours, minutes), true
}

func validClock(hh, mm string) bool {
	h, err := strconv.Atoi(hh)
	if err != nil || h > 23 {
		return false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m > 59 {
		return false
	}
	return true
}
