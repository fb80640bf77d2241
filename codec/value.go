package codec

// Tuple is a fixed sequence that survives a round trip as a tuple,
// distinct from a plain []any sequence.
type Tuple []any

// Entry is one key/value pair of a Mapping.
type Entry struct {
	Key   any
	Value any
}

// Mapping is an ordered association whose keys need not be strings.
// Plain map[string]any values pass through the codec natively; Mapping
// exists for tuple keys, numeric keys and anything else JSON objects
// cannot carry.
type Mapping []Entry

// Get returns the value for the first entry whose key deep-equals k.
func (m Mapping) Get(k any) (any, bool) {
	for _, e := range m {
		if deepEqual(e.Key, k) {
			return e.Value, true
		}
	}
	return nil, false
}

func deepEqual(a, b any) bool {
	switch av := a.(type) {
	case Tuple:
		bv, ok := b.(Tuple)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !deepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case float64:
		switch bv := b.(type) {
		case float64:
			return av == bv
		case int:
			return av == float64(bv)
		}
		return false
	case int:
		switch bv := b.(type) {
		case int:
			return av == bv
		case float64:
			return float64(av) == bv
		}
		return false
	default:
		return a == b
	}
}
