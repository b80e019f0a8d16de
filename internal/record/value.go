package record

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindStringSlice
	KindIntSlice
	KindFloatSlice
)

// Value is a closed typed variant: string, int64 or float64, scalar or slice.
// The zero Value is the empty string.
type Value struct {
	kind Kind

	s  string
	i  int64
	f  float64
	ss []string
	is []int64
	fs []float64
}

func String(v string) Value    { return Value{kind: KindString, s: v} }
func Int(v int64) Value        { return Value{kind: KindInt, i: v} }
func Float(v float64) Value    { return Value{kind: KindFloat, f: v} }
func Strings(v []string) Value { return Value{kind: KindStringSlice, ss: v} }
func Ints(v []int64) Value     { return Value{kind: KindIntSlice, is: v} }
func Floats(v []float64) Value { return Value{kind: KindFloatSlice, fs: v} }

func (v Value) Kind() Kind { return v.kind }

// AsString returns the scalar string variant.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// AsInt returns the scalar integer variant. Floats are not truncated.
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

// AsFloat returns the scalar numeric variant, widening integers.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

func (v Value) AsStrings() ([]string, bool) {
	if v.kind != KindStringSlice {
		return nil, false
	}
	return v.ss, true
}

func (v Value) AsInts() ([]int64, bool) {
	if v.kind != KindIntSlice {
		return nil, false
	}
	return v.is, true
}

// AsFloats returns the float-slice variant, widening an int slice.
func (v Value) AsFloats() ([]float64, bool) {
	switch v.kind {
	case KindFloatSlice:
		return v.fs, true
	case KindIntSlice:
		out := make([]float64, len(v.is))
		for i, n := range v.is {
			out[i] = float64(n)
		}
		return out, true
	default:
		return nil, false
	}
}

// Interface returns the held value as an any, for JSON encoding.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindStringSlice:
		return v.ss
	case KindIntSlice:
		return v.is
	case KindFloatSlice:
		return v.fs
	}
	return nil
}
