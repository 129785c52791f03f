package rag

// Condition is an inclusive numeric range predicate on one metadata field.
// A nil bound is open.
type Condition struct {
	// Field is the metadata key the predicate applies to.
	Field string

	// Gte is the inclusive lower bound.
	Gte *float64

	// Lte is the inclusive upper bound.
	Lte *float64
}

// Filter is a conjunction of range conditions. An entry matches only when
// every condition in Must holds.
type Filter struct {
	Must []Condition
}

// Bound returns a pointer to v, for building Condition bounds inline.
func Bound(v float64) *float64 { return &v }

// Matches reports whether metadata satisfies every condition in f.
// A nil filter matches everything. A condition on a missing or
// non-numeric field never matches.
func (f *Filter) Matches(metadata map[string]any) bool {
	if f == nil {
		return true
	}
	for _, c := range f.Must {
		v, ok := toFloat(metadata[c.Field])
		if !ok {
			return false
		}
		if c.Gte != nil && v < *c.Gte {
			return false
		}
		if c.Lte != nil && v > *c.Lte {
			return false
		}
	}
	return true
}

// toFloat converts numeric metadata values to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
