package utils

import (
	"slices"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/amirphl/smsflow/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := map[string]string{
		"+1 (415) 555-1023": "+14155551023",
		"  4155551023 ":     "4155551023",
		"415+555+1023":      "4155551023",
		"":                  "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePhone(in), in)
	}
}

func TestIsValidPhone(t *testing.T) {
	assert.True(t, IsValidPhone("+1 (415) 555-1023"))
	assert.True(t, IsValidPhone("4155551023"))
	assert.False(t, IsValidPhone("555-1023"))
	assert.False(t, IsValidPhone("   "))
	assert.Equal(t, 11, PhoneDigitCount("+1 (415) 555-1023"))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0.0, Percent(5, 0, 2))
	assert.Equal(t, 50.0, Percent(1, 2, 2))
	assert.Equal(t, 33.33, Percent(1, 3, 2))
	assert.Equal(t, 66.7, Percent(2, 3, 1))
	assert.Equal(t, 100.0, Percent(7, 7, 0))
}

func TestParseInZone(t *testing.T) {
	t.Run("wall clock in zone", func(t *testing.T) {
		got, loc, err := ParseInZone("2026-03-01 09:00", "America/New_York")
		require.NoError(t, err)
		assert.Equal(t, "America/New_York", loc.String())
		assert.Equal(t, time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC), got)
	})

	t.Run("explicit offset wins", func(t *testing.T) {
		got, _, err := ParseInZone("2026-03-01T09:00:00+02:00", "America/New_York")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC), got)
	})

	t.Run("empty zone is UTC", func(t *testing.T) {
		got, loc, err := ParseInZone("2026-03-01T09:00", "")
		require.NoError(t, err)
		assert.Equal(t, "UTC", loc.String())
		assert.Equal(t, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), got)
	})

	t.Run("unknown zone", func(t *testing.T) {
		_, _, err := ParseInZone("2026-03-01 09:00", "Mars/Olympus_Mons")
		assert.ErrorContains(t, err, "unknown timezone")
	})

	t.Run("bad value", func(t *testing.T) {
		_, _, err := ParseInZone("next tuesday", "UTC")
		assert.ErrorContains(t, err, "invalid time")
	})
}

func TestTimezones(t *testing.T) {
	zones := Timezones()
	require.NotEmpty(t, zones)
	assert.True(t, slices.IsSorted(zones))
	assert.Contains(t, zones, "UTC")
	for _, z := range zones {
		assert.NotContains(t, z, "posix/")
	}

	zones[0] = "mutated"
	assert.NotEqual(t, "mutated", Timezones()[0])
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(config.LoggingConfig{Level: "debug", Format: "console", Output: "stdout"})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = NewLogger(config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestDeref(t *testing.T) {
	assert.Equal(t, "", Deref[string](nil))
	assert.Equal(t, "x", Deref(ToPtr("x")))
	assert.True(t, IsTrue(ToPtr(true)))
	assert.False(t, IsTrue(nil))
}
