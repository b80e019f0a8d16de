package stage

// Level buckets a value against an ascending threshold list: the index of the
// first threshold the value does not exceed, or len(thresholds) when it
// exceeds them all. The result is monotonically non-decreasing in v and lies
// in [0, len(thresholds)].
func Level(v float64, thresholds []float64) int {
	for i, t := range thresholds {
		if v <= t {
			return i
		}
	}
	return len(thresholds)
}
