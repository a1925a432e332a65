package pipeline

import "math"

// DefaultColormap is the mapping used when the configuration does not name
// one.
const DefaultColormap = "ecotect"

// ecotectStops is Ecotect colorset 3: blue through purple and red to yellow.
var ecotectStops = [11][3]float64{
	{0, 0, 255.0 / 255},             // blue (minimum)
	{53.0 / 255, 0, 202.0 / 255},    // blue-purple
	{107.0 / 255, 0, 148.0 / 255},   // purple
	{160.0 / 255, 0, 95.0 / 255},    // purple-red
	{214.0 / 255, 0, 41.0 / 255},    // red-purple
	{1, 12.0 / 255, 0},              // red
	{1, 66.0 / 255, 0},              // red-orange
	{1, 119.0 / 255, 0},             // orange
	{1, 173.0 / 255, 0},             // orange-yellow
	{1, 226.0 / 255, 0},             // light yellow
	{1, 1, 0},                       // yellow (maximum)
}

// Normalize maps each result onto [0,1] using (v-min)/(max-min). A constant
// sequence maps every value to 0.5.
func Normalize(results []float64) []float64 {
	if len(results) == 0 {
		return nil
	}
	lo, hi := results[0], results[0]
	for _, v := range results[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	out := make([]float64, len(results))
	if hi <= lo {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}
	for i, v := range results {
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}

// Colors maps results to per-face RGB colors (components in [0,1]) using the
// named colormap. Unknown names fall back to a two-stop blue-to-red ramp.
func Colors(results []float64, colormap string) [][3]float64 {
	normalized := Normalize(results)
	colors := make([][3]float64, len(normalized))
	for i, v := range normalized {
		colors[i] = mapValue(v, colormap)
	}
	return colors
}

func mapValue(v float64, colormap string) [3]float64 {
	switch colormap {
	case "ecotect":
		return ecotectColor(v)
	case "viridis":
		return [3]float64{v, math.Sqrt(v), 1 - v}
	case "plasma":
		return [3]float64{v, v * v, 1 - v}
	case "hot":
		return [3]float64{
			clamp01(v * 3),
			clamp01((v - 0.33) * 3),
			clamp01((v - 0.66) * 3),
		}
	case "cool":
		return [3]float64{v, 1 - math.Abs(v-0.5)*2, 1 - v}
	default:
		// blue (low) to red (high)
		return [3]float64{v, 0, 1 - v}
	}
}

// ecotectColor interpolates the 11-stop gradient over 10 equal segments.
// Values at or beyond the ends clamp to the endpoint stops.
func ecotectColor(v float64) [3]float64 {
	v = clamp01(v)
	if v <= 0 {
		return ecotectStops[0]
	}
	if v >= 1 {
		return ecotectStops[len(ecotectStops)-1]
	}

	segments := len(ecotectStops) - 1
	pos := v * float64(segments)
	idx := int(pos)
	if idx >= segments {
		return ecotectStops[len(ecotectStops)-1]
	}

	t := pos - float64(idx)
	a, b := ecotectStops[idx], ecotectStops[idx+1]
	return [3]float64{
		a[0] + t*(b[0]-a[0]),
		a[1] + t*(b[1]-a[1]),
		a[2] + t*(b[2]-a[2]),
	}
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
