package codec

import "encoding/json"

// Tag values used for skeleton placeholders. Plain maps that happen to
// carry the tag key themselves are escaped under tagObject so they can
// never be mistaken for a placeholder.
const (
	tagKey     = "type"
	tagTuple   = "tuple"
	tagMapping = "mapping"
	tagArray   = "array"
	tagObject  = "object"
)

// Encode splits v into a JSON skeleton and a side list of raw buffers.
// Mappings with string keys, sequences, strings, numbers, booleans and
// nil pass through structurally; tuples and non-string-key mappings
// become tagged wrappers; Array values become indexed placeholders with
// their bytes appended to the buffer list. Wide integer arrays are
// narrowed to int32 on the way out (see narrow).
func Encode(v any) (string, [][]byte, error) {
	enc := encoder{}
	tree, err := enc.walk(v)
	if err != nil {
		return "", nil, err
	}
	skeleton, err := json.Marshal(tree)
	if err != nil {
		return "", nil, err
	}
	return string(skeleton), enc.buffers, nil
}

type encoder struct {
	buffers [][]byte
}

func (e *encoder) walk(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return val, nil
	case Tuple:
		items, err := e.walkSlice(val)
		if err != nil {
			return nil, err
		}
		return map[string]any{tagKey: tagTuple, "items": items}, nil
	case Mapping:
		pairs := make([]any, 0, len(val))
		for _, entry := range val {
			k, err := e.walk(entry.Key)
			if err != nil {
				return nil, err
			}
			pv, err := e.walk(entry.Value)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, []any{k, pv})
		}
		return map[string]any{tagKey: tagMapping, "pairs": pairs}, nil
	case Array:
		narrowed, err := narrow(val)
		if err != nil {
			return nil, err
		}
		index := len(e.buffers)
		data := make([]byte, len(narrowed.Data))
		copy(data, narrowed.Data)
		e.buffers = append(e.buffers, data)
		shape := narrowed.Shape
		if shape == nil {
			shape = []int{}
		}
		return map[string]any{
			tagKey:  tagArray,
			"dtype": string(narrowed.Dtype),
			"shape": shape,
			"index": index,
		}, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, mv := range val {
			ev, err := e.walk(mv)
			if err != nil {
				return nil, err
			}
			out[k] = ev
		}
		if _, clash := val[tagKey]; clash {
			return map[string]any{tagKey: tagObject, "value": out}, nil
		}
		return out, nil
	case []any:
		return e.walkSlice(val)
	case []string:
		items := make([]any, len(val))
		for i, s := range val {
			items[i] = s
		}
		return items, nil
	case []int:
		items := make([]any, len(val))
		for i, n := range val {
			items[i] = n
		}
		return items, nil
	case []float64:
		items := make([]any, len(val))
		for i, f := range val {
			items[i] = f
		}
		return items, nil
	default:
		return nil, UnsupportedValueError{Value: v}
	}
}

func (e *encoder) walkSlice(items []any) ([]any, error) {
	out := make([]any, len(items))
	for i, item := range items {
		ev, err := e.walk(item)
		if err != nil {
			return nil, err
		}
		out[i] = ev
	}
	return out, nil
}
