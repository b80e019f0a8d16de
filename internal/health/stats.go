package health

import (
	"math"
	"sort"
)

// Cleaning and smoothing method names accepted in configuration.
const (
	cleanRemoveEdges = "remove_edges"
	cleanPercentile  = "percentile_cleaning"

	smoothMean = "mean"
	smoothMin  = "min"
	smoothMax  = "max"
)

// removeEdges drops the first and last sample. Windows of four or fewer
// samples are too short to trim and pass through unchanged.
func removeEdges(vals []float64) []float64 {
	if len(vals) <= 4 {
		return vals
	}
	out := make([]float64, len(vals)-2)
	copy(out, vals[1:len(vals)-1])
	return out
}

// percentileClean clips every sample into the [p5, p95] band.
func percentileClean(vals []float64) []float64 {
	if len(vals) == 0 {
		return vals
	}
	lo := percentile(vals, 0.05)
	hi := percentile(vals, 0.95)
	out := make([]float64, len(vals))
	for i, v := range vals {
		switch {
		case v < lo:
			out[i] = lo
		case v > hi:
			out[i] = hi
		default:
			out[i] = v
		}
	}
	return out
}

// percentile interpolates the q-th quantile of vals (q in [0,1]).
func percentile(vals []float64, q float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// smooth applies a centered sliding-window aggregate. The window is clamped
// at both edges so the output has the same length as the input.
func smooth(vals []float64, method string, winLength int) []float64 {
	if winLength <= 1 || len(vals) == 0 {
		return vals
	}
	half := winLength / 2
	out := make([]float64, len(vals))
	for i := range vals {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half + 1
		if hi > len(vals) {
			hi = len(vals)
		}
		window := vals[lo:hi]
		switch method {
		case smoothMin:
			out[i] = minOf(window)
		case smoothMax:
			out[i] = maxOf(window)
		default:
			out[i] = meanOf(window)
		}
	}
	return out
}

// validStatistic reports whether name is an accepted statistic.
func validStatistic(name string) bool {
	switch name {
	case "mean", "std", "max", "min", "median":
		return true
	}
	return false
}

// validSmooth reports whether name is an accepted smoothing method.
func validSmooth(name string) bool {
	switch name {
	case smoothMean, smoothMin, smoothMax:
		return true
	}
	return false
}

// statistic computes one named summary over vals. Supported names are mean,
// std, max, min and median; names are checked at stage setup.
func statistic(name string, vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	switch name {
	case "std":
		return stddevOf(vals)
	case "max":
		return maxOf(vals)
	case "min":
		return minOf(vals)
	case "median":
		return percentile(vals, 0.5)
	default:
		return meanOf(vals)
	}
}

// ladderScore maps a value onto the descending 100..0 score ladder: the
// first threshold the value fits under decides the rung, values beyond every
// threshold (or past upperLimit when it is set) score zero.
func ladderScore(v float64, thresholds []float64, upperLimit float64) float64 {
	if upperLimit > 0 && v > upperLimit {
		return 0
	}
	if len(thresholds) == 0 {
		return 100
	}
	step := 100 / float64(len(thresholds))
	for i, t := range thresholds {
		if v <= t {
			return 100 - float64(i)*step
		}
	}
	return 0
}

func meanOf(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func stddevOf(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	m := meanOf(vals)
	sum := 0.0
	for _, v := range vals {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(vals)-1))
}

func minOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
