// Package record defines the closed set of data variants that flow through a
// processing chain: raw inputs (SensorSnapshot, WaveformBatch), the extraction
// output (FeatureSet), a discrete status observation (StatusRecord), and the
// uniform stage output (Result).
//
// Record is a sealed interface. Stages dispatch with an exhaustive type
// switch rather than open runtime casts, so an unhandled variant is a visible
// default case, not silent fallthrough.
//
// Result values are typed variants (string/int/float, scalar or slice); see
// value.go.
package record
