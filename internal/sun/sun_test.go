package sun

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarworks/sunray/internal/scene"
)

// London Gatwick EPW header.
const epwHeader = "LOCATION,London Gatwick,ENG,GBR,IWEC Data,037760,51.15,-0.18,0.0,62.0\n"

func writeEPW(t *testing.T, header string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "site.epw")
	require.NoError(t, os.WriteFile(path, []byte(header), 0o644))
	return path
}

func TestReadLocation(t *testing.T) {
	loc, err := ReadLocation(writeEPW(t, epwHeader))
	require.NoError(t, err)
	assert.Equal(t, "London Gatwick", loc.City)
	assert.Equal(t, 51.15, loc.Latitude)
	assert.Equal(t, -0.18, loc.Longitude)
	assert.Equal(t, 0.0, loc.TimeZone)
	assert.Equal(t, 62.0, loc.Elevation)
}

func TestReadLocationErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := ReadLocation(filepath.Join(t.TempDir(), "nope.epw"))
		assert.Error(t, err)
	})
	t.Run("empty file", func(t *testing.T) {
		_, err := ReadLocation(writeEPW(t, ""))
		assert.Error(t, err)
	})
	t.Run("wrong header", func(t *testing.T) {
		_, err := ReadLocation(writeEPW(t, "DESIGN CONDITIONS,1,2,3\n"))
		assert.ErrorContains(t, err, "LOCATION")
	})
	t.Run("non-numeric latitude", func(t *testing.T) {
		_, err := ReadLocation(writeEPW(t, "LOCATION,x,x,x,x,x,abc,0,0,0\n"))
		assert.Error(t, err)
	})
}

func TestVectorsSummerNoon(t *testing.T) {
	path := writeEPW(t, epwHeader)

	// June 21st, noon only, one sample per hour.
	p := scene.Params{
		MonthStart: 6, MonthEnd: 6,
		DayStart: 21, DayEnd: 21,
		HourStart: 12, HourEnd: 12,
		Timestep: 1,
	}
	vectors, err := Vectors(path, p)
	require.NoError(t, err)
	require.Len(t, vectors, 1)

	v := vectors[0]
	assert.InDelta(t, 1.0, v.Length(), 1e-9)
	// Sun above the horizon: the incident direction points downward.
	assert.Less(t, v.Z, 0.0)
}

func TestVectorsNightWindowIsEmpty(t *testing.T) {
	path := writeEPW(t, epwHeader)

	// Around local midnight in midwinter the sun never rises.
	p := scene.Params{
		MonthStart: 12, MonthEnd: 12,
		DayStart: 21, DayEnd: 21,
		HourStart: 0, HourEnd: 2,
		Timestep: 1,
	}
	vectors, err := Vectors(path, p)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestVectorsTimestepMultiplies(t *testing.T) {
	path := writeEPW(t, epwHeader)

	base := scene.Params{
		MonthStart: 6, MonthEnd: 6,
		DayStart: 21, DayEnd: 21,
		HourStart: 10, HourEnd: 14,
		Timestep: 1,
	}
	one, err := Vectors(path, base)
	require.NoError(t, err)

	base.Timestep = 4
	four, err := Vectors(path, base)
	require.NoError(t, err)

	assert.Equal(t, len(one)*4, len(four))
	for _, v := range four {
		assert.InDelta(t, 1.0, v.Length(), 1e-9)
	}
}

func TestVectorsClampsDayToMonthLength(t *testing.T) {
	path := writeEPW(t, epwHeader)

	// February has no day 30; the window must clamp, not error.
	p := scene.Params{
		MonthStart: 2, MonthEnd: 2,
		DayStart: 27, DayEnd: 30,
		HourStart: 12, HourEnd: 12,
		Timestep: 1,
	}
	vectors, err := Vectors(path, p)
	require.NoError(t, err)
	assert.Len(t, vectors, 2) // Feb 27 and 28
}

func TestVectorsRejectsBadPeriod(t *testing.T) {
	path := writeEPW(t, epwHeader)
	p := scene.Params{
		MonthStart: 0, MonthEnd: 6,
		DayStart: 1, DayEnd: 1,
		HourStart: 12, HourEnd: 12,
		Timestep: 1,
	}
	_, err := Vectors(path, p)
	assert.ErrorContains(t, err, "month bounds")
}

func TestRangeWrap(t *testing.T) {
	assert.Equal(t, []int{3, 4, 5}, rangeWrap(3, 5, 12))
	assert.Equal(t, []int{11, 12, 1, 2}, rangeWrap(11, 2, 12))
	assert.Equal(t, []int{22, 23, 0, 1}, rangeWrap(22, 1, 23))
	assert.Equal(t, []int{7}, rangeWrap(7, 7, 12))
}

func TestDayOfYear(t *testing.T) {
	assert.Equal(t, 1, dayOfYear(1, 1))
	assert.Equal(t, 32, dayOfYear(2, 1))
	assert.Equal(t, 172, dayOfYear(6, 21))
	assert.Equal(t, 365, dayOfYear(12, 31))
}

func TestValidate(t *testing.T) {
	ok := scene.Params{MonthStart: 1, MonthEnd: 12, DayStart: 1, DayEnd: 31, HourStart: 0, HourEnd: 23, Timestep: 1}
	assert.NoError(t, Validate(ok))

	bad := ok
	bad.MonthEnd = 13
	assert.Error(t, Validate(bad))

	bad = ok
	bad.DayStart = 0
	assert.Error(t, Validate(bad))

	bad = ok
	bad.HourEnd = 24
	assert.Error(t, Validate(bad))
}

func TestPositionSummerHigherThanWinter(t *testing.T) {
	loc := Location{Latitude: 51.15, Longitude: -0.18, TimeZone: 0}
	summer, _ := position(loc, dayOfYear(6, 21), 12)
	winter, _ := position(loc, dayOfYear(12, 21), 12)
	assert.Greater(t, summer, winter)
	assert.Greater(t, summer, 50.0)
	assert.Less(t, winter, 20.0)
}
