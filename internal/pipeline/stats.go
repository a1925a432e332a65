package pipeline

// Stats summarizes a result sequence.
type Stats struct {
	Min     float64
	Max     float64
	Mean    float64
	Total   float64
	NonZero int
}

// Summarize computes min/max/mean/total and the count of non-zero faces.
func Summarize(results []float64) Stats {
	if len(results) == 0 {
		return Stats{}
	}
	s := Stats{Min: results[0], Max: results[0]}
	for _, v := range results {
		s.Total += v
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
		if v != 0 {
			s.NonZero++
		}
	}
	s.Mean = s.Total / float64(len(results))
	return s
}
