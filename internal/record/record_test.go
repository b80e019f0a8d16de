package record

import (
	"testing"
	"time"
)

var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestSnapshotChannel(t *testing.T) {
	snap := &SensorSnapshot{
		DeviceID:  "pump-1",
		Timestamp: baseTime,
		Mean:      1.5,
		Speed:     1500,
		Custom:    map[string]float64{"current": 3.2, "speed": 99},
	}

	if v, ok := snap.Channel("mean"); !ok || v != 1.5 {
		t.Errorf("fixed channel mean: got %v (present=%v)", v, ok)
	}
	if v, ok := snap.Channel("current"); !ok || v != 3.2 {
		t.Errorf("custom channel: got %v (present=%v)", v, ok)
	}
	// Custom entries shadow the fixed fields.
	if v, _ := snap.Channel("speed"); v != 99 {
		t.Errorf("shadowed speed: got %v, want 99", v)
	}
	if _, ok := snap.Channel("voltage"); ok {
		t.Error("unknown channel reported present")
	}
}

func TestResultAccessors(t *testing.T) {
	res := NewResult("pump-1", baseTime)
	res.SetString("status_name", "running")
	res.SetInt("status", 1)
	res.SetFloat("overall", 82.5)

	if got, ok := res.String("status_name"); !ok || got != "running" {
		t.Errorf("String: got %q (present=%v)", got, ok)
	}
	if got, ok := res.Int("status"); !ok || got != 1 {
		t.Errorf("Int: got %d (present=%v)", got, ok)
	}
	// Float widens int values.
	if got, ok := res.Float("status"); !ok || got != 1.0 {
		t.Errorf("Float over int: got %v (present=%v)", got, ok)
	}
	if _, ok := res.Float("status_name"); ok {
		t.Error("Float over string reported ok")
	}

	floats := res.Floats()
	if floats["overall"] != 82.5 || floats["status"] != 1 {
		t.Errorf("Floats: got %v", floats)
	}
	if _, ok := floats["status_name"]; ok {
		t.Error("Floats included a string value")
	}
}

func TestValueSlices(t *testing.T) {
	v := Ints([]int64{1, 2, 3})
	if v.Kind() != KindIntSlice {
		t.Fatalf("Kind: got %v", v.Kind())
	}
	fs, ok := v.AsFloats()
	if !ok || len(fs) != 3 || fs[2] != 3 {
		t.Errorf("AsFloats widening: got %v (ok=%v)", fs, ok)
	}
	if _, ok := v.AsStrings(); ok {
		t.Error("AsStrings on int slice reported ok")
	}

	ss := Strings([]string{"a", "b"})
	if got, ok := ss.AsStrings(); !ok || got[1] != "b" {
		t.Errorf("AsStrings: got %v", got)
	}
}

func TestFeaturesHelper(t *testing.T) {
	fs := &FeatureSet{
		DeviceID:  "pump-1",
		Timestamp: baseTime,
		Features:  map[string]float64{"mean": 1.5},
	}
	if feats, ok := Features(fs); !ok || feats["mean"] != 1.5 {
		t.Errorf("Features over FeatureSet: got %v (ok=%v)", feats, ok)
	}

	res := NewResult("pump-1", baseTime)
	res.SetFloat("mean", 2.5)
	if feats, ok := Features(res); !ok || feats["mean"] != 2.5 {
		t.Errorf("Features over Result: got %v (ok=%v)", feats, ok)
	}

	status := &StatusRecord{DeviceID: "pump-1", Timestamp: baseTime, Code: 1}
	if _, ok := Features(status); ok {
		t.Error("Features over StatusRecord reported ok")
	}
}
