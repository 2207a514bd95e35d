// Package cron evaluates 5-field cron expressions against a point in time.
//
// The matching semantics are deliberately narrow and stable: scheduled
// workflows created by operators depend on them verbatim. Matching resolution
// is one minute; callers own both the tick cadence and any timezone
// normalization, since no conversion is performed here.
package cron

import (
	"strconv"
	"strings"
	"time"
)

// Matches reports whether the expression matches the given time. The
// expression has five space-separated fields: minute (0-59), hour (0-23),
// day-of-month (1-31), month (1-12) and day-of-week (0-6, Sunday=0). All
// five fields must match. A malformed expression never matches and never
// panics.
func Matches(expression string, at time.Time) bool {
	fields := strings.Fields(expression)
	if len(fields) != 5 {
		return false
	}
	values := []int{
		at.Minute(),
		at.Hour(),
		at.Day(),
		int(at.Month()),
		int(at.Weekday()),
	}
	for i, field := range fields {
		if !fieldMatches(field, values[i]) {
			return false
		}
	}
	return true
}

// fieldMatches evaluates one cron field against a value. Supported forms:
// "*", "*/N" (divisibility), comma lists of sub-terms, "a-b" inclusive
// ranges, and bare integers.
func fieldMatches(field string, value int) bool {
	if field == "*" {
		return true
	}
	if step, ok := strings.CutPrefix(field, "*/"); ok {
		n, err := strconv.Atoi(step)
		if err != nil || n <= 0 {
			return false
		}
		return value%n == 0
	}
	if strings.Contains(field, ",") {
		for _, term := range strings.Split(field, ",") {
			if fieldMatches(term, value) {
				return true
			}
		}
		return false
	}
	if lo, hi, ok := strings.Cut(field, "-"); ok {
		a, errA := strconv.Atoi(lo)
		b, errB := strconv.Atoi(hi)
		if errA != nil || errB != nil {
			return false
		}
		return a <= value && value <= b
	}
	n, err := strconv.Atoi(field)
	if err != nil {
		return false
	}
	return value == n
}
