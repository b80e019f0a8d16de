package stage

import "testing"

func TestParams_ScalarAccessors(t *testing.T) {
	p := NewParams(map[string]any{
		"name":    "vibration",
		"rate":    1000,
		"ratio":   0.75,
		"whole":   float64(42), // yaml may hand back whole floats
		"enabled": true,
	})

	if got := p.String("name", "x"); got != "vibration" {
		t.Errorf("String: got %q, want vibration", got)
	}
	if got := p.Int("rate", 0); got != 1000 {
		t.Errorf("Int: got %d, want 1000", got)
	}
	if got := p.Int("whole", 0); got != 42 {
		t.Errorf("Int from whole float: got %d, want 42", got)
	}
	if got := p.Float("ratio", 0); got != 0.75 {
		t.Errorf("Float: got %v, want 0.75", got)
	}
	if got := p.Float("rate", 0); got != 1000 {
		t.Errorf("Float from int: got %v, want 1000", got)
	}
	if !p.Bool("enabled", false) {
		t.Error("Bool: got false, want true")
	}
	if got := p.Int("missing", 7); got != 7 {
		t.Errorf("Int default: got %d, want 7", got)
	}
	if p.Has("missing") {
		t.Error("Has: reported a missing key as present")
	}
}

func TestParams_ArrayAccessors(t *testing.T) {
	p := NewParams(map[string]any{
		"features":  []any{"mean", "std"},
		"widths":    []any{3, 3},
		"lines":     []any{0.5, 2.0},
		"threshold": []any{[]any{0.5, 2.0}, []any{0.1, 1.0}},
		"mixed":     []any{"a", 1},
	})

	if got := p.Strings("features"); len(got) != 2 || got[0] != "mean" {
		t.Errorf("Strings: got %v", got)
	}
	if got := p.Ints("widths"); len(got) != 2 || got[1] != 3 {
		t.Errorf("Ints: got %v", got)
	}
	if got := p.Floats("lines"); len(got) != 2 || got[1] != 2.0 {
		t.Errorf("Floats: got %v", got)
	}
	m := p.FloatMatrix("threshold")
	if len(m) != 2 || len(m[0]) != 2 || m[1][0] != 0.1 {
		t.Errorf("FloatMatrix: got %v", m)
	}
	if got := p.Strings("mixed"); got != nil {
		t.Errorf("Strings on mixed array: got %v, want nil", got)
	}
}

func TestParams_IntLabels(t *testing.T) {
	p := NewParams(map[string]any{
		"status_mapping": map[string]any{"0": "stopped", "1": "running"},
	})
	labels := p.IntLabels("status_mapping")
	if labels[0] != "stopped" || labels[1] != "running" {
		t.Errorf("IntLabels: got %v", labels)
	}
}

func TestParams_Maps(t *testing.T) {
	p := NewParams(map[string]any{
		"rules": []any{
			map[string]any{"name": "a", "weight": 0.5},
			map[string]any{"name": "b"},
		},
	})
	rules := p.Maps("rules")
	if len(rules) != 2 {
		t.Fatalf("Maps: got %d entries, want 2", len(rules))
	}
	if got := rules[0].String("name", ""); got != "a" {
		t.Errorf("Maps[0].name: got %q, want a", got)
	}
	if got := rules[0].Float("weight", 0); got != 0.5 {
		t.Errorf("Maps[0].weight: got %v, want 0.5", got)
	}
}

func TestLevel(t *testing.T) {
	thresholds := []float64{0.5, 2.0, 5.0}
	cases := []struct {
		v    float64
		want int
	}{
		{0.0, 0},
		{0.5, 0}, // boundary is inclusive
		{0.51, 1},
		{2.0, 1},
		{4.9, 2},
		{5.0, 2},
		{5.1, 3}, // beyond every threshold
	}
	for _, tc := range cases {
		if got := Level(tc.v, thresholds); got != tc.want {
			t.Errorf("Level(%v): got %d, want %d", tc.v, got, tc.want)
		}
	}
}

// Level must be monotone: a larger value never lands in a lower level.
func TestLevel_Monotone(t *testing.T) {
	thresholds := []float64{0.5, 2.0, 5.0}
	prev := -1
	for v := 0.0; v <= 6.0; v += 0.01 {
		l := Level(v, thresholds)
		if l < prev {
			t.Fatalf("Level not monotone at %v: %d after %d", v, l, prev)
		}
		prev = l
	}
}
