package extract

import (
	"math"
	"time"

	"github.com/machinepulse/machinepulse/internal/record"
	"github.com/machinepulse/machinepulse/internal/stage"
)

// Operating-condition codes assigned to waveform windows.
const (
	condStopped    = 0
	condRunning    = 1
	condTransition = 2
)

// Speed buckets separating the operating conditions (mean window speed).
const (
	stoppedBelow    = 10.0
	transitionBelow = 50.0
)

// windowSeconds is the fixed width of one operating-condition window.
const windowSeconds = 30

// Stage extracts features from waveform batches and sensor snapshots.
// It carries no per-device state; all configuration is fixed at Init.
type Stage struct {
	samplingRate  int
	durationLimit int // seconds
	dcThreshold   float64 // ≤0 disables the DC gate
	channel       string  // snapshot channel name
}

// New returns an uninitialized extraction stage.
func New() *Stage { return &Stage{} }

func (s *Stage) Init(p *stage.Params) error {
	s.samplingRate = p.Int("sampling_rate", 0)
	if s.samplingRate <= 0 {
		return stage.Validationf("sampling_rate", "must be a positive integer")
	}
	s.durationLimit = p.Int("duration_limit", 10)
	if s.durationLimit <= 0 {
		return stage.Validationf("duration_limit", "must be a positive number of seconds")
	}
	s.dcThreshold = p.Float("dc_threshold", 500)
	s.channel = p.String("channel", "current")
	return nil
}

func (s *Stage) Cleanup() {}

// Process dispatches on the input variant. Waveform batches take the spectral
// path; snapshots take the single-point path. Any other variant is an input
// error.
func (s *Stage) Process(rec record.Record, now time.Time) (record.Record, error) {
	switch r := rec.(type) {
	case *record.WaveformBatch:
		return s.extractWaveform(r)
	case *record.SensorSnapshot:
		return s.extractSnapshot(r)
	default:
		return nil, stage.Inputf("extract: unsupported record type %T", rec)
	}
}

func (s *Stage) extractWaveform(b *record.WaveformBatch) (record.Record, error) {
	wave := b.Waveform
	if b.Stop > b.Start && b.Stop <= len(wave) {
		wave = wave[b.Start:b.Stop]
	}

	duration := float64(len(wave)) / float64(s.samplingRate)
	if duration < float64(s.durationLimit) {
		return nil, stage.Inputf("waveform duration %.2fs below limit %ds", duration, s.durationLimit)
	}

	if s.dcThreshold > 0 {
		freqs, amps, err := spectrum(wave, s.samplingRate)
		if err != nil {
			return nil, err
		}
		if dc := dcEstimate(freqs, amps); dc >= s.dcThreshold {
			return nil, stage.Inputf("DC interference %.2f exceeds threshold %.2f", dc, s.dcThreshold)
		}
	}

	segments, conditions := s.segment(wave, b.Speed)

	var merged []map[string]float64
	for i, seg := range segments {
		if len(seg)/s.samplingRate < s.durationLimit {
			continue
		}
		feats, err := s.segmentFeatures(seg, conditions[i])
		if err != nil {
			return nil, err
		}
		merged = append(merged, feats)
	}
	if len(merged) == 0 {
		return nil, stage.Inputf("no operating-condition window survived the %ds duration filter", s.durationLimit)
	}

	return &record.FeatureSet{
		DeviceID:  b.DeviceID,
		Timestamp: b.Timestamp,
		Features:  mergeByMean(merged),
	}, nil
}

// segment splits wave into fixed 30 s windows and tags each with the
// operating condition derived from the mean of the overlapping span of the
// speed series. Speed and waveform may differ in length; a window with no
// speed samples defaults to running.
func (s *Stage) segment(wave, speed []float64) (segments [][]float64, conditions []int) {
	step := s.samplingRate * windowSeconds
	for start := 0; start < len(wave); start += step {
		end := start + step
		if end > len(wave) {
			end = len(wave)
		}
		segments = append(segments, wave[start:end])
		conditions = append(conditions, condition(speed, start, end))
	}
	return segments, conditions
}

func condition(speed []float64, start, end int) int {
	var sum float64
	var n int
	for i := start; i < end && i < len(speed); i++ {
		sum += speed[i]
		n++
	}
	if n == 0 {
		return condRunning
	}
	switch avg := sum / float64(n); {
	case avg < stoppedBelow:
		return condStopped
	case avg < transitionBelow:
		return condTransition
	default:
		return condRunning
	}
}

func (s *Stage) segmentFeatures(seg []float64, cond int) (map[string]float64, error) {
	m := mean(seg)
	feats := map[string]float64{
		"mean":    m,
		"std":     stddev(seg),
		"mean_hf": m,
		"mean_lf": m,
		"load":    float64(cond),
	}

	freqs, amps, err := spectrum(seg, s.samplingRate)
	if err != nil {
		return nil, err
	}
	feats["peak_freq"] = peakFrequency(freqs, amps)
	feats["peak_power"] = peakPower(amps)
	feats["spectrum_energy"] = spectrumEnergy(amps)
	return feats, nil
}

// mergeByMean averages each key across the per-window feature maps. A key
// missing from some windows is averaged over the windows that have it.
func mergeByMean(maps []map[string]float64) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, feats := range maps {
		for k, v := range feats {
			sums[k] += v
			counts[k]++
		}
	}
	out := make(map[string]float64, len(sums))
	for k, sum := range sums {
		out[k] = sum / float64(counts[k])
	}
	return out
}

func (s *Stage) extractSnapshot(snap *record.SensorSnapshot) (record.Record, error) {
	v, ok := snap.Channel(s.channel)
	if !ok {
		return nil, stage.Inputf("snapshot missing channel %q", s.channel)
	}

	rms := math.Abs(v)
	peak := math.Abs(v)
	crest := 0.0
	if rms > 0 {
		crest = peak / rms
	}

	prefix := s.channel + "_"
	return &record.FeatureSet{
		DeviceID:  snap.DeviceID,
		Timestamp: snap.Timestamp,
		Features: map[string]float64{
			prefix + "rms":   rms,
			prefix + "peak":  peak,
			prefix + "mean":  v,
			prefix + "std":   0,
			prefix + "crest": crest,
		},
	}, nil
}
