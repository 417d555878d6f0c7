package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidPincode = errors.New("pincode must be a 6-digit number")
	ErrInvalidCadence = errors.New("cadence must be instant, hourly or daily")
	ErrInvalidHour    = errors.New("hour must be 0..23")
)

// ParsePincode validates a 6-digit Indian postal code.
func ParsePincode(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) != 6 || !isAllDigits(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPincode, s)
	}
	return s, nil
}

// ParseCadence parses a delivery cadence name, case-insensitively.
func ParseCadence(s string) (Cadence, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "instant":
		return CadenceInstant, nil
	case "hourly":
		return CadenceHourly, nil
	case "daily":
		return CadenceDaily, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCadence, s)
	}
}

// ParseHour parses an hour of day. Accepts "22" and "22:00"; minutes other
// than :00 are rejected since quiet hours are hour-granular.
func ParseHour(s string) (int, error) {
	s = strings.TrimSpace(s)
	if h, rest, found := strings.Cut(s, ":"); found {
		if rest != "00" {
			return 0, fmt.Errorf("%w: %q (minutes not supported)", ErrInvalidHour, s)
		}
		s = h
	}
	h, err := strconv.Atoi(s)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidHour, s)
	}
	return h, nil
}

// ParseQuietHours parses a start/end hour pair. start == end is rejected;
// use disabled quiet hours (0, 0) for that instead.
func ParseQuietHours(startStr, endStr string) (start, end int, err error) {
	start, err = ParseHour(startStr)
	if err != nil {
		return 0, 0, fmt.Errorf("start: %w", err)
	}
	end, err = ParseHour(endStr)
	if err != nil {
		return 0, 0, fmt.Errorf("end: %w", err)
	}
	if start == end {
		return 0, 0, errors.New("quiet hours start and end must differ")
	}
	return start, end, nil
}

// ParseDays parses a positive day count with an inclusive upper bound.
func ParseDays(s string, max int) (int, error) {
	d, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || d < 1 || d > max {
		return 0, fmt.Errorf("days must be 1..%d", max)
	}
	return d, nil
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
