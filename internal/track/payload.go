// Package track turns raw backend track payloads into summary statistics and
// reference-versus-alternate deltas.
package track

import "fmt"

// Sequence is anything that exposes a length and indexed float access.
type Sequence interface {
	Len() int
	At(i int) float64
}

// Values is a Sequence backed by a float64 slice.
type Values []float64

func (v Values) Len() int         { return len(v) }
func (v Values) At(i int) float64 { return v[i] }

// Payload is a raw track as received from the backend. It is classified once,
// at the boundary, as either numeric or opaque. The zero value is an absent
// track.
type Payload struct {
	seq    Sequence
	repr   string
	opaque bool
}

// Numeric wraps a numeric sequence.
func Numeric(seq Sequence) Payload {
	return Payload{seq: seq}
}

// Opaque wraps a payload whose shape was not recognized, keeping only a
// string capture of it.
func Opaque(repr string) Payload {
	return Payload{repr: repr, opaque: true}
}

// Classify decides the payload kind for an in-memory value. Slices of Go
// numeric types and Sequence implementations are numeric; nil is absent;
// everything else is opaque.
func Classify(raw any) Payload {
	switch x := raw.(type) {
	case nil:
		return Payload{}
	case Payload:
		return x
	case Sequence:
		return Numeric(x)
	case []float64:
		return Numeric(Values(x))
	case []float32:
		return Numeric(convert(x))
	case []int:
		return Numeric(convert(x))
	case []int64:
		return Numeric(convert(x))
	case []any:
		vals := make(Values, len(x))
		for i, e := range x {
			f, ok := toFloat(e)
			if !ok {
				return Opaque(fmt.Sprint(raw))
			}
			vals[i] = f
		}
		return Numeric(vals)
	default:
		return Opaque(fmt.Sprint(raw))
	}
}

// IsAbsent reports whether no track was supplied.
func (p Payload) IsAbsent() bool {
	return p.seq == nil && !p.opaque
}

// IsNumeric reports whether the payload is a numeric sequence.
func (p Payload) IsNumeric() bool {
	return p.seq != nil
}

// Sequence returns the numeric sequence, or nil for opaque and absent payloads.
func (p Payload) Sequence() Sequence {
	return p.seq
}

// Repr returns the string capture of an opaque payload.
func (p Payload) Repr() string {
	return p.repr
}

func convert[T float32 | int | int64](in []T) Values {
	out := make(Values, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
