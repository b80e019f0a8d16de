package extract

import (
	"math"

	"github.com/machinepulse/machinepulse/internal/stage"
)

// dcCutoffHz bounds the band treated as DC interference.
const dcCutoffHz = 0.1

// spectrum computes the single-sided DFT amplitude spectrum of wave.
// Bin i sits at frequency i*rate/n; amplitudes are normalized by n.
func spectrum(wave []float64, rate int) (freqs, amps []float64, err error) {
	n := len(wave)
	if n < 2 {
		return nil, nil, stage.Computationf("spectrum", "series too short: %d samples", n)
	}

	resolution := float64(rate) / float64(n)
	bins := n / 2
	freqs = make([]float64, bins)
	amps = make([]float64, bins)

	for i := 0; i < bins; i++ {
		freqs[i] = float64(i) * resolution

		var re, im float64
		for j := 0; j < n; j++ {
			angle := -2 * math.Pi * float64(i) * float64(j) / float64(n)
			re += wave[j] * math.Cos(angle)
			im += wave[j] * math.Sin(angle)
		}
		amps[i] = math.Sqrt(re*re+im*im) / float64(n)
	}
	return freqs, amps, nil
}

// dcEstimate sums spectral amplitude at and below the DC cutoff.
func dcEstimate(freqs, amps []float64) float64 {
	var dc float64
	for i, f := range freqs {
		if f > dcCutoffHz {
			break
		}
		dc += amps[i]
	}
	return dc
}

func peakFrequency(freqs, amps []float64) float64 {
	if len(amps) == 0 {
		return 0
	}
	best := 0
	for i, a := range amps {
		if a > amps[best] {
			best = i
		}
	}
	return freqs[best]
}

func peakPower(amps []float64) float64 {
	var max float64
	for _, a := range amps {
		if a > max {
			max = a
		}
	}
	return max
}

func spectrumEnergy(amps []float64) float64 {
	var e float64
	for _, a := range amps {
		e += a * a
	}
	return e
}

func mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	var sum float64
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

// stddev is the sample standard deviation (n−1 denominator).
func stddev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	m := mean(data)
	var sq float64
	for _, v := range data {
		d := v - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(data)-1))
}
