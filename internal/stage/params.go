package stage

// Params is a typed, read-only configuration bag handed to a stage at Init.
// Values come from a decoded YAML document, so numbers may arrive as int or
// float64 and arrays as []any; the accessors coerce accordingly. Absent keys
// fall back to the caller's default.
type Params struct {
	values map[string]any
}

// NewParams wraps a decoded configuration map. The map is not copied; callers
// must not mutate it afterwards.
func NewParams(values map[string]any) *Params {
	if values == nil {
		values = map[string]any{}
	}
	return &Params{values: values}
}

// Has reports whether key is present.
func (p *Params) Has(key string) bool {
	_, ok := p.values[key]
	return ok
}

// Value returns the raw decoded value for key. Stages with structured
// parameters (nested maps/lists) decode these themselves.
func (p *Params) Value(key string) (any, bool) {
	v, ok := p.values[key]
	return v, ok
}

// String returns the string at key, or def.
func (p *Params) String(key, def string) string {
	if s, ok := p.values[key].(string); ok {
		return s
	}
	return def
}

// Int returns the integer at key, or def. Whole-valued floats are accepted.
func (p *Params) Int(key string, def int) int {
	if n, ok := asInt(p.values[key]); ok {
		return n
	}
	return def
}

// Float returns the number at key, or def.
func (p *Params) Float(key string, def float64) float64 {
	if f, ok := asFloat(p.values[key]); ok {
		return f
	}
	return def
}

// Bool returns the boolean at key, or def.
func (p *Params) Bool(key string, def bool) bool {
	if b, ok := p.values[key].(bool); ok {
		return b
	}
	return def
}

// Strings returns the string array at key; nil when absent or mistyped.
func (p *Params) Strings(key string) []string {
	raw, ok := p.values[key].([]any)
	if !ok {
		if ss, ok := p.values[key].([]string); ok {
			return ss
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil
		}
		out = append(out, s)
	}
	return out
}

// Floats returns the numeric array at key; nil when absent or mistyped.
func (p *Params) Floats(key string) []float64 {
	switch raw := p.values[key].(type) {
	case []float64:
		return raw
	case []any:
		out := make([]float64, 0, len(raw))
		for _, v := range raw {
			f, ok := asFloat(v)
			if !ok {
				return nil
			}
			out = append(out, f)
		}
		return out
	}
	return nil
}

// Ints returns the integer array at key; nil when absent or mistyped.
func (p *Params) Ints(key string) []int {
	switch raw := p.values[key].(type) {
	case []int:
		return raw
	case []any:
		out := make([]int, 0, len(raw))
		for _, v := range raw {
			n, ok := asInt(v)
			if !ok {
				return nil
			}
			out = append(out, n)
		}
		return out
	}
	return nil
}

// FloatMatrix returns the array-of-numeric-arrays at key (one threshold list
// per feature); nil when absent or mistyped.
func (p *Params) FloatMatrix(key string) [][]float64 {
	raw, ok := p.values[key].([]any)
	if !ok {
		if m, ok := p.values[key].([][]float64); ok {
			return m
		}
		return nil
	}
	out := make([][]float64, 0, len(raw))
	for _, rowRaw := range raw {
		row, ok := rowRaw.([]any)
		if !ok {
			return nil
		}
		fs := make([]float64, 0, len(row))
		for _, v := range row {
			f, ok := asFloat(v)
			if !ok {
				return nil
			}
			fs = append(fs, f)
		}
		out = append(out, fs)
	}
	return out
}

// Maps returns the list of nested parameter bags at key (structured rule
// lists); nil when absent or mistyped.
func (p *Params) Maps(key string) []*Params {
	raw, ok := p.values[key].([]any)
	if !ok {
		return nil
	}
	out := make([]*Params, 0, len(raw))
	for _, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		out = append(out, NewParams(m))
	}
	return out
}

// IntLabels returns the int-keyed string map at key (status code → label).
// YAML decodes map keys as int or string; both are accepted.
func (p *Params) IntLabels(key string) map[int]string {
	raw, ok := p.values[key].(map[string]any)
	if !ok {
		if m, ok := p.values[key].(map[int]string); ok {
			return m
		}
		if m, ok := p.values[key].(map[any]any); ok {
			out := make(map[int]string, len(m))
			for k, v := range m {
				code, kok := asInt(k)
				label, vok := v.(string)
				if !kok || !vok {
					return nil
				}
				out[code] = label
			}
			return out
		}
		return nil
	}
	out := make(map[int]string, len(raw))
	for k, v := range raw {
		code, kok := asInt(parseIntKey(k))
		label, vok := v.(string)
		if !kok || !vok {
			return nil
		}
		out[code] = label
	}
	return out
}

func parseIntKey(s string) any {
	n := 0
	neg := false
	for i, c := range s {
		if i == 0 && c == '-' {
			neg = true
			continue
		}
		if c < '0' || c > '9' {
			return s
		}
		n = n*10 + int(c-'0')
	}
	if neg {
		n = -n
	}
	return n
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
