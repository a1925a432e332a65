package scene

import (
	"fmt"
	"strconv"
	"strings"
)

// Params are the analysis parameters carried in the scene's "solar:params"
// metadata key as eight comma-separated values:
// month_start,month_end,day_start,day_end,hour_start,hour_end,timestep,offset
type Params struct {
	MonthStart int
	MonthEnd   int
	DayStart   int
	DayEnd     int
	HourStart  int
	HourEnd    int
	Timestep   int
	Offset     float64
}

// ParseParams parses the comma-separated parameter string.
func ParseParams(s string) (Params, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 8 {
		return Params{}, fmt.Errorf("solar:params needs 8 values, got %d", len(parts))
	}

	ints := make([]int, 7)
	for i := 0; i < 7; i++ {
		v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return Params{}, fmt.Errorf("solar:params field %d: %w", i+1, err)
		}
		ints[i] = v
	}
	offset, err := strconv.ParseFloat(strings.TrimSpace(parts[7]), 64)
	if err != nil {
		return Params{}, fmt.Errorf("solar:params offset: %w", err)
	}

	p := Params{
		MonthStart: ints[0],
		MonthEnd:   ints[1],
		DayStart:   ints[2],
		DayEnd:     ints[3],
		HourStart:  ints[4],
		HourEnd:    ints[5],
		Timestep:   ints[6],
		Offset:     offset,
	}
	if p.Timestep < 1 {
		return Params{}, fmt.Errorf("solar:params timestep must be >= 1, got %d", p.Timestep)
	}
	return p, nil
}

// String renders the parameters back into the metadata wire form.
func (p Params) String() string {
	return fmt.Sprintf("%d,%d,%d,%d,%d,%d,%d,%g",
		p.MonthStart, p.MonthEnd, p.DayStart, p.DayEnd,
		p.HourStart, p.HourEnd, p.Timestep, p.Offset)
}
