package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/machinepulse/machinepulse/internal/record"
)

func TestDecodePayload_Snapshot(t *testing.T) {
	payload := []byte(`{
		"device": "pump-1",
		"time": "2026-01-01T00:00:00Z",
		"kind": "snapshot",
		"snapshot": {
			"mean_hf": 1.5, "mean_lf": 1.2, "mean": 1.3, "std": 0.1,
			"temperature": 40, "speed": 1500,
			"custom": {"current": 3.2}
		}
	}`)

	rec, err := DecodePayload(payload)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	snap, ok := rec.(*record.SensorSnapshot)
	if !ok {
		t.Fatalf("decoded record: got %T, want *record.SensorSnapshot", rec)
	}
	if snap.DeviceID != "pump-1" {
		t.Errorf("device: got %q", snap.DeviceID)
	}
	if snap.Speed != 1500 || snap.Temperature != 40 {
		t.Errorf("fields: speed=%v temperature=%v", snap.Speed, snap.Temperature)
	}
	if v, ok := snap.Channel("current"); !ok || v != 3.2 {
		t.Errorf("custom channel: got %v (present=%v)", v, ok)
	}
	want := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if !snap.Timestamp.Equal(want) {
		t.Errorf("timestamp: got %v, want %v", snap.Timestamp, want)
	}
}

func TestDecodePayload_Waveform(t *testing.T) {
	payload := []byte(`{
		"device": "pump-1",
		"kind": "waveform",
		"waveform": {
			"waveform": [0.1, 0.2, 0.3],
			"speed": [1500, 1500, 1500],
			"sampling_rate": 1000,
			"status": "running",
			"start": 0,
			"stop": 3
		}
	}`)

	rec, err := DecodePayload(payload)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	wf, ok := rec.(*record.WaveformBatch)
	if !ok {
		t.Fatalf("decoded record: got %T, want *record.WaveformBatch", rec)
	}
	if len(wf.Waveform) != 3 || wf.SamplingRate != 1000 {
		t.Errorf("waveform: %d samples at %d Hz", len(wf.Waveform), wf.SamplingRate)
	}
	// Missing time falls back to arrival time.
	if wf.Timestamp.IsZero() {
		t.Error("timestamp not defaulted")
	}
}

func TestDecodePayload_Errors(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		wantErr string
	}{
		{"broken json", `{`, "decode envelope"},
		{"missing device", `{"kind":"snapshot","snapshot":{}}`, "missing device"},
		{"unknown kind", `{"device":"d","kind":"video"}`, "unknown kind"},
		{"kind body mismatch", `{"device":"d","kind":"waveform"}`, "without waveform body"},
		{"empty waveform", `{"device":"d","kind":"waveform","waveform":{"waveform":[]}}`, "empty waveform"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodePayload([]byte(tc.payload))
			if err == nil {
				t.Fatal("DecodePayload: expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not contain %q", err, tc.wantErr)
			}
		})
	}
}
