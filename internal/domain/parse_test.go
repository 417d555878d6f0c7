package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePincode(t *testing.T) {
	got, err := ParsePincode(" 411001 ")
	assert.NoError(t, err)
	assert.Equal(t, "411001", got)

	for _, bad := range []string{"", "41100", "4110011", "41100a", "pune"} {
		_, err := ParsePincode(bad)
		assert.ErrorIs(t, err, ErrInvalidPincode, "input %q", bad)
	}
}

func TestParseCadence(t *testing.T) {
	for in, want := range map[string]Cadence{
		"instant": CadenceInstant,
		"Hourly":  CadenceHourly,
		" DAILY ": CadenceDaily,
	} {
		got, err := ParseCadence(in)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseCadence("weekly")
	assert.ErrorIs(t, err, ErrInvalidCadence)
}

func TestParseHour(t *testing.T) {
	for in, want := range map[string]int{"0": 0, "23": 23, "7": 7, "22:00": 22} {
		got, err := ParseHour(in)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}
	for _, bad := range []string{"24", "-1", "7:30", "ten", ""} {
		_, err := ParseHour(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestParseQuietHours(t *testing.T) {
	start, end, err := ParseQuietHours("22", "7")
	assert.NoError(t, err)
	assert.Equal(t, 22, start)
	assert.Equal(t, 7, end)

	_, _, err = ParseQuietHours("8", "8")
	assert.Error(t, err, "degenerate window must be rejected")
}

func TestParseDays(t *testing.T) {
	d, err := ParseDays("7", 30)
	assert.NoError(t, err)
	assert.Equal(t, 7, d)

	for _, bad := range []string{"0", "31", "abc", "-2"} {
		_, err := ParseDays(bad, 30)
		assert.Error(t, err, "input %q", bad)
	}
}
