// Package extract turns raw device captures into named scalar features.
//
// The waveform path (WaveformBatch input) gates the capture on minimum
// duration and DC interference, splits it into 30-second operating-condition
// windows using the parallel speed series, computes per-window statistics and
// DFT spectral features, and merges surviving windows by per-key arithmetic
// mean. The snapshot path (SensorSnapshot input) derives single-point
// rms/peak/mean/crest features from one named channel.
//
// Every failure is terminal for the call: no partial feature set is emitted.
package extract
