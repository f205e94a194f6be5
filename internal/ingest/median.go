package ingest

import (
	"sort"
)

// medianDelay returns the median of samples (averaging the two central
// order statistics for an even sample count, matching `np.median`'s
// behaviour), clamped at zero: negative ("early running") delay is
// never modeled, matching `update_times.py`'s
// `if delay_per_stop < 0: delay_per_stop = 0`.
func medianDelay(samples []float64) int {
	if len(samples) == 0 {
		return 0
	}
	m := quantileMedian(samples)
	if m < 0 {
		m = 0
	}
	return int(m)
}

// quantileMedian is the plain median (no zero-clamp), used for the
// tube ingestor's interval-alignment delay, which the source allows to
// go negative (`np.median(differences)` with no clip). An even sample
// count averages its two central values, matching `np.median`.
func quantileMedian(samples []float64) float64 {
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// medianTime is the unweighted median across candidate predicted
// times for one stop, used by the tube ingestor's multi-interval
// aggregation (Open Question #2: unweighted, matching the source).
// An even count averages the two central candidates, matching
// `np.median([p[0] for p in predictions])`.
func medianTime(samples []int64) int64 {
	if len(samples) == 0 {
		return 0
	}
	floats := make([]float64, len(samples))
	for i, s := range samples {
		floats[i] = float64(s)
	}
	return int64(quantileMedian(floats))
}
