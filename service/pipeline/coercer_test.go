package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToNumber(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected float64
		ok       bool
	}{
		{"plain decimal", "87.23", 87.23, true},
		{"thousands separators", "1.234.567", 1234567, true},
		{"comma separators", "1,234,567", 1234567, true},
		{"internal spaces", "1 234 567", 1234567, true},
		{"integer string", "45000", 45000, true},
		{"padded", "  12.5 ", 12.5, true},
		{"native float", 3.14, 3.14, true},
		{"native int", 42, 42, true},
		{"nil", nil, 0, false},
		{"empty string", "", 0, false},
		{"text", "no disponible", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := ToNumber(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, n)
			}
		})
	}
}

func TestToNumberGrouped(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected float64
		ok       bool
	}{
		// A single dot group is a thousands separator here, not a decimal.
		{"single dot group", "32.733", 32733, true},
		{"multiple dot groups", "1.234.567", 1234567, true},
		{"plain integer", "45000", 45000, true},
		{"native float", 2500000.0, 2500000, true},
		{"nil", nil, 0, false},
		{"text", "no disponible", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := ToNumberGrouped(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, n)
			}
		})
	}
}

func TestToDate(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected time.Time
		ok       bool
	}{
		{"socrata floating timestamp", "2020-03-15T00:00:00.000",
			time.Date(2020, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"plain date", "2021-08-05",
			time.Date(2021, 8, 5, 0, 0, 0, 0, time.UTC), true},
		{"day first", "05/08/2021",
			time.Date(2021, 8, 5, 0, 0, 0, 0, time.UTC), true},
		{"nil", nil, time.Time{}, false},
		{"empty", "", time.Time{}, false},
		{"garbage", "sin fecha", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := ToDate(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.expected.Equal(d))
			}
		})
	}
}

func TestToDatePassesThroughTime(t *testing.T) {
	now := time.Now()
	d, ok := ToDate(now)
	assert.True(t, ok)
	assert.Equal(t, now, d)
}

func TestToYear(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected int
		ok       bool
	}{
		{"string year", "2020", 2020, true},
		{"float-rendered year", "2020.0", 2020, true},
		{"native float", float64(2021), 2021, true},
		{"fractional rejected", 2020.5, 0, false},
		{"text", "dos mil", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			y, ok := ToYear(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, y)
			}
		})
	}
}

func TestZeroPadCode(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		width    int
		expected string
	}{
		{"single digit string", "5", 2, "05"},
		{"already padded", "05", 2, "05"},
		{"native int", 8, 2, "08"},
		{"integer-valued float", 5.0, 2, "05"},
		{"wider than width", "101", 2, "101"},
		{"non-numeric padded as-is", "x", 2, "0x"},
		{"empty stays empty", "", 2, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ZeroPadCode(tt.input, tt.width))
		})
	}
}
