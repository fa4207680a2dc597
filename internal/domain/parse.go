package domain

import (
	"math"
	"strconv"
	"strings"
)

// absentMarker is what the provider sends for fields it has no value for.
const absentMarker = "N/A"

// IsAbsent reports whether a raw provider field carries no value.
func IsAbsent(raw string) bool {
	value := strings.TrimSpace(raw)
	return value == "" || strings.EqualFold(value, absentMarker)
}

// ParseRating reads a rating such as "7.5" or "7.5/10". Absent or malformed text yields 0.
func ParseRating(raw string) float64 {
	return leadingNumber(raw, true)
}

// ParseRuntime reads a runtime such as "142 min" as minutes. Absent or malformed text yields 0.
func ParseRuntime(raw string) float64 {
	return leadingNumber(raw, true)
}

// maxYear bounds ParseYear; longer digit runs are malformed, not far-future years.
const maxYear = 9999

// ParseYear reads the first year of values like "2008" or "2008–2012".
// Absent, malformed or out-of-range text yields 0.
func ParseYear(raw string) int {
	year := leadingNumber(raw, false)
	if year > maxYear {
		return 0
	}
	return int(year)
}

func leadingNumber(raw string, allowFraction bool) float64 {
	if IsAbsent(raw) {
		return 0
	}
	value := strings.TrimSpace(raw)

	end := 0
	if end < len(value) && (value[end] == '+' || value[end] == '-') {
		end++
	}
	digits := 0
	seenDot := false
	for end < len(value) {
		c := value[end]
		if c >= '0' && c <= '9' {
			digits++
			end++
			continue
		}
		if c == '.' && allowFraction && !seenDot {
			seenDot = true
			end++
			continue
		}
		break
	}
	if digits == 0 {
		return 0
	}

	number := strings.TrimSuffix(value[:end], ".")
	parsed, err := strconv.ParseFloat(number, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) || parsed < 0 {
		return 0
	}
	return parsed
}
