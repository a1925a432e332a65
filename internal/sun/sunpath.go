package sun

import (
	"fmt"
	"math"

	"github.com/solarworks/sunray/internal/geom"
	"github.com/solarworks/sunray/internal/scene"
)

var monthDays = [13]int{0, 31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// Vectors computes the ordered sequence of sun direction vectors for the
// analysis period described by p, using the site location from the EPW file.
// Each vector is a unit vector pointing from the sun toward the ground in a
// Z-up, Y-north frame. Instants where the sun is below the horizon are
// skipped; an empty result is valid (the whole window falls at night).
func Vectors(epwPath string, p scene.Params) ([]geom.Vec3, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}
	loc, err := ReadLocation(epwPath)
	if err != nil {
		return nil, err
	}

	var vectors []geom.Vec3
	for _, month := range rangeWrap(p.MonthStart, p.MonthEnd, 12) {
		dayEnd := p.DayEnd
		if dayEnd > monthDays[month] {
			dayEnd = monthDays[month]
		}
		for day := p.DayStart; day <= dayEnd; day++ {
			for _, hour := range rangeWrap(p.HourStart, p.HourEnd, 23) {
				for step := 0; step < p.Timestep; step++ {
					h := float64(hour) + float64(step)/float64(p.Timestep)
					alt, az := position(loc, dayOfYear(month, day), h)
					if alt <= 0 {
						continue
					}
					vectors = append(vectors, direction(alt, az))
				}
			}
		}
	}
	return vectors, nil
}

// rangeWrap yields the inclusive sequence from start to end, wrapping past
// max back to the range minimum (1 for months, 0 for hours).
func rangeWrap(start, end, max int) []int {
	min := 0
	if max == 12 {
		min = 1
	}
	if start < min {
		start = min
	}
	if end > max {
		end = max
	}
	var out []int
	v := start
	for {
		out = append(out, v)
		if v == end {
			return out
		}
		v++
		if v > max {
			v = min
		}
		if len(out) > max+1 {
			return out
		}
	}
}

func dayOfYear(month, day int) int {
	n := day
	for m := 1; m < month; m++ {
		n += monthDays[m]
	}
	return n
}

// position returns solar altitude and azimuth in degrees for the given day
// of year and local standard-time hour. NOAA's simplified ephemeris: the
// fractional-year angle drives the equation of time and declination, the
// hour angle the final altitude/azimuth.
func position(loc Location, doy int, hour float64) (altitude, azimuth float64) {
	gamma := 2 * math.Pi / 365 * (float64(doy-1) + (hour-12)/24)

	eqTime := 229.18 * (0.000075 +
		0.001868*math.Cos(gamma) - 0.032077*math.Sin(gamma) -
		0.014615*math.Cos(2*gamma) - 0.040849*math.Sin(2*gamma))

	decl := 0.006918 -
		0.399912*math.Cos(gamma) + 0.070257*math.Sin(gamma) -
		0.006758*math.Cos(2*gamma) + 0.000907*math.Sin(2*gamma) -
		0.002697*math.Cos(3*gamma) + 0.00148*math.Sin(3*gamma)

	timeOffset := eqTime + 4*loc.Longitude - 60*loc.TimeZone
	trueSolarMinutes := hour*60 + timeOffset
	hourAngle := trueSolarMinutes/4 - 180

	latRad := loc.Latitude * math.Pi / 180
	haRad := hourAngle * math.Pi / 180

	cosZenith := math.Sin(latRad)*math.Sin(decl) +
		math.Cos(latRad)*math.Cos(decl)*math.Cos(haRad)
	cosZenith = clamp(cosZenith, -1, 1)
	zenith := math.Acos(cosZenith)
	altitude = 90 - zenith*180/math.Pi

	sinZenith := math.Sin(zenith)
	if sinZenith == 0 {
		return altitude, 0
	}
	cosAz := (math.Sin(decl) - math.Sin(latRad)*cosZenith) /
		(math.Cos(latRad) * sinZenith)
	cosAz = clamp(cosAz, -1, 1)
	azimuth = math.Acos(cosAz) * 180 / math.Pi
	if hourAngle > 0 {
		azimuth = 360 - azimuth
	}
	return altitude, azimuth
}

// direction converts altitude/azimuth (degrees, azimuth clockwise from
// north) into the unit vector pointing from the sun toward the ground.
func direction(altitude, azimuth float64) geom.Vec3 {
	altRad := altitude * math.Pi / 180
	azRad := azimuth * math.Pi / 180

	toSun := geom.Vec3{
		X: math.Cos(altRad) * math.Sin(azRad),
		Y: math.Cos(altRad) * math.Cos(azRad),
		Z: math.Sin(altRad),
	}
	return toSun.Neg().Normalize()
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// Validate sanity-checks period bounds before any work is scheduled.
func Validate(p scene.Params) error {
	if p.MonthStart < 1 || p.MonthStart > 12 || p.MonthEnd < 1 || p.MonthEnd > 12 {
		return fmt.Errorf("month bounds out of range: %d..%d", p.MonthStart, p.MonthEnd)
	}
	if p.DayStart < 1 || p.DayStart > 31 || p.DayEnd < 1 || p.DayEnd > 31 {
		return fmt.Errorf("day bounds out of range: %d..%d", p.DayStart, p.DayEnd)
	}
	if p.HourStart < 0 || p.HourStart > 23 || p.HourEnd < 0 || p.HourEnd > 23 {
		return fmt.Errorf("hour bounds out of range: %d..%d", p.HourStart, p.HourEnd)
	}
	return nil
}
