// Package sun turns an EPW weather file and an analysis period into the
// ordered sequence of incident sun direction vectors the compute engines
// consume.
package sun

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Location is the site position read from an EPW file header.
type Location struct {
	City      string
	Latitude  float64 // degrees, north positive
	Longitude float64 // degrees, east positive
	TimeZone  float64 // hours offset from UTC
	Elevation float64 // meters
}

// ReadLocation parses the LOCATION header line of an EPW file.
// Layout: LOCATION,city,state,country,source,wmo,lat,lon,tz,elevation
func ReadLocation(path string) (Location, error) {
	f, err := os.Open(path)
	if err != nil {
		return Location{}, fmt.Errorf("open epw: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return Location{}, fmt.Errorf("epw %s: empty file", path)
	}
	line := scanner.Text()

	fields := strings.Split(line, ",")
	if len(fields) < 10 || !strings.EqualFold(strings.TrimSpace(fields[0]), "LOCATION") {
		return Location{}, fmt.Errorf("epw %s: malformed LOCATION header", path)
	}

	loc := Location{City: strings.TrimSpace(fields[1])}
	for i, dst := range map[int]*float64{
		6: &loc.Latitude,
		7: &loc.Longitude,
		8: &loc.TimeZone,
		9: &loc.Elevation,
	} {
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[i]), 64)
		if err != nil {
			return Location{}, fmt.Errorf("epw %s: LOCATION field %d: %w", path, i, err)
		}
		*dst = v
	}
	return loc, nil
}
