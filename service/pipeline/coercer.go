/*
 * @module service/pipeline/coercer
 * @description Type coercion of raw scalars into numbers, dates and fixed-width codes, with an explicit missing marker instead of errors
 * @architecture Utility function pattern - pure stateless functions
 * @documentReference service/meta/datasets.go
 * @stateFlow Stateless: raw scalar -> (typed value, ok)
 * @rules Unparseable input yields (zero, false), never an error; integer-valued floats used as keys must not drift
 * @dependencies math, strconv, strings, time, github.com/spf13/cast
 * @refs service/pipeline/cleaner.go
 */

package pipeline

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// dateLayouts are tried in order. Socrata floating timestamps first, then
// plain dates.
var dateLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
	"02/01/2006",
}

// ToNumber coerces a raw scalar to a float64. Strings are parsed as plain
// decimals first; when that fails the locale separators ("." as thousands
// separator, "," and spaces) are stripped and the parse retried, so
// "1.234.567" becomes 1234567 while "87.23" stays 87.23. The second return
// value is false for missing or unparseable input.
func ToNumber(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n, true
		}
		stripped := strings.NewReplacer(".", "", ",", "", " ", "").Replace(s)
		if stripped == "" {
			return 0, false
		}
		if n, err := strconv.ParseFloat(stripped, 64); err == nil {
			return n, true
		}
		return 0, false
	default:
		n, err := cast.ToFloat64E(raw)
		if err != nil {
			return 0, false
		}
		return n, true
	}
}

// ToNumberGrouped coerces like ToNumber but treats ".", "," and spaces as
// grouping separators unconditionally, so "32.733" becomes 32733 rather than
// a decimal. Meant for columns whose source renders whole numbers with dotted
// thousands groups, like the DANE population projections.
func ToNumberGrouped(raw interface{}) (float64, bool) {
	s, ok := raw.(string)
	if !ok {
		return ToNumber(raw)
	}
	stripped := strings.NewReplacer(".", "", ",", "", " ", "").Replace(strings.TrimSpace(s))
	if stripped == "" {
		return 0, false
	}
	if n, err := strconv.ParseFloat(stripped, 64); err == nil {
		return n, true
	}
	return 0, false
}

// ToDate coerces a raw scalar to a calendar date. The second return value is
// false for missing or unparseable input.
func ToDate(raw interface{}) (time.Time, bool) {
	switch v := raw.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return v, true
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// ToYear coerces a raw scalar to an integer year. Values with a fractional
// part are rejected rather than truncated.
func ToYear(raw interface{}) (int, bool) {
	n, ok := ToNumber(raw)
	if !ok || math.Trunc(n) != n {
		return 0, false
	}
	return int(n), true
}

// ZeroPadCode renders a raw scalar as a fixed-width, zero-padded code string,
// e.g. 5 or "5.0" with width 2 become "05". Integer-valued floats coerce
// without fractional drift; non-numeric input is padded as-is.
func ZeroPadCode(raw interface{}, width int) string {
	s := strings.TrimSpace(cast.ToString(raw))
	if n, ok := ToNumber(raw); ok && math.Trunc(n) == n {
		s = strconv.FormatInt(int64(n), 10)
	}
	if s == "" {
		return s
	}
	for len(s) < width {
		s = "0" + s
	}
	return s
}
