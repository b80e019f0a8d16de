package record

import "time"

// Record is the sealed union of all data variants a stage can consume or
// produce. Only the types in this package implement it.
type Record interface {
	Device() string
	Time() time.Time

	// sealed prevents implementations outside this package.
	sealed()
}

// SensorSnapshot is a single-point reading from a device: a fixed set of
// named scalar channels plus an open-ended map of custom channels.
// Snapshots are immutable once produced; stages must not modify them.
type SensorSnapshot struct {
	DeviceID  string
	Timestamp time.Time

	MeanHF      float64
	MeanLF      float64
	Mean        float64
	Std         float64
	Temperature float64
	Speed       float64

	Custom map[string]float64
}

func (s *SensorSnapshot) Device() string  { return s.DeviceID }
func (s *SensorSnapshot) Time() time.Time { return s.Timestamp }
func (s *SensorSnapshot) sealed()         {}

// Channel returns the named scalar channel. Custom channels shadow the fixed
// ones so payloads can override a well-known name.
func (s *SensorSnapshot) Channel(name string) (float64, bool) {
	if v, ok := s.Custom[name]; ok {
		return v, true
	}
	switch name {
	case "mean_hf":
		return s.MeanHF, true
	case "mean_lf":
		return s.MeanLF, true
	case "mean":
		return s.Mean, true
	case "std":
		return s.Std, true
	case "temperature":
		return s.Temperature, true
	case "speed":
		return s.Speed, true
	}
	return 0, false
}

// WaveformBatch is an ordered waveform capture with a parallel speed series.
// Waveform and Speed may differ in length; consumers must not assume they
// line up one-to-one.
type WaveformBatch struct {
	DeviceID  string
	Timestamp time.Time

	Waveform     []float64
	Speed        []float64
	SamplingRate int

	// Status is a coarse tag attached by the collector ("running", "test", …).
	Status string

	// Start/Stop are optional sample indices bounding the region of interest;
	// both zero means the whole capture.
	Start int
	Stop  int
}

func (w *WaveformBatch) Device() string  { return w.DeviceID }
func (w *WaveformBatch) Time() time.Time { return w.Timestamp }
func (w *WaveformBatch) sealed()         {}

// FeatureSet maps feature names to scalar values. Produced by the extraction
// stage; keys are unique by construction of the map type.
type FeatureSet struct {
	DeviceID  string
	Timestamp time.Time
	Features  map[string]float64
}

func (f *FeatureSet) Device() string  { return f.DeviceID }
func (f *FeatureSet) Time() time.Time { return f.Timestamp }
func (f *FeatureSet) sealed()         {}

// StatusRecord is a discrete operating-state observation.
type StatusRecord struct {
	DeviceID  string
	Timestamp time.Time

	Code  int
	Label string

	// Mapping optionally carries the full code→label table.
	Mapping map[int]string
}

func (s *StatusRecord) Device() string  { return s.DeviceID }
func (s *StatusRecord) Time() time.Time { return s.Timestamp }
func (s *StatusRecord) sealed()         {}

// Result is the uniform stage output: a bag of typed values keyed by name.
type Result struct {
	DeviceID  string
	Timestamp time.Time
	Values    map[string]Value
}

// NewResult returns an empty Result for the given device and timestamp.
func NewResult(device string, ts time.Time) *Result {
	return &Result{DeviceID: device, Timestamp: ts, Values: make(map[string]Value)}
}

func (r *Result) Device() string  { return r.DeviceID }
func (r *Result) Time() time.Time { return r.Timestamp }
func (r *Result) sealed()         {}

func (r *Result) SetString(key, v string) { r.Values[key] = String(v) }
func (r *Result) SetInt(key string, v int64) {
	r.Values[key] = Int(v)
}
func (r *Result) SetFloat(key string, v float64) {
	r.Values[key] = Float(v)
}

// Float returns the float value stored under key. Integer values are widened;
// other kinds report ok=false.
func (r *Result) Float(key string) (float64, bool) {
	v, ok := r.Values[key]
	if !ok {
		return 0, false
	}
	return v.AsFloat()
}

// Int returns the integer value stored under key.
func (r *Result) Int(key string) (int64, bool) {
	v, ok := r.Values[key]
	if !ok {
		return 0, false
	}
	return v.AsInt()
}

// String returns the string value stored under key.
func (r *Result) String(key string) (string, bool) {
	v, ok := r.Values[key]
	if !ok || v.Kind() != KindString {
		return "", false
	}
	s, _ := v.AsString()
	return s, true
}

// Floats extracts every scalar numeric value into a plain feature map.
// Downstream stages use this to treat a Result as a feature source.
func (r *Result) Floats() map[string]float64 {
	out := make(map[string]float64, len(r.Values))
	for k, v := range r.Values {
		if f, ok := v.AsFloat(); ok {
			out[k] = f
		}
	}
	return out
}

// Features returns the scalar feature view of a record, if it has one:
// the feature map of a FeatureSet, the numeric values of a Result, or the
// channels of a SensorSnapshot.
func Features(rec Record) (map[string]float64, bool) {
	switch r := rec.(type) {
	case *FeatureSet:
		return r.Features, true
	case *Result:
		return r.Floats(), true
	case *SensorSnapshot:
		m := map[string]float64{
			"mean_hf":     r.MeanHF,
			"mean_lf":     r.MeanLF,
			"mean":        r.Mean,
			"std":         r.Std,
			"temperature": r.Temperature,
			"speed":       r.Speed,
		}
		for k, v := range r.Custom {
			m[k] = v
		}
		return m, true
	default:
		return nil, false
	}
}
