package codec

import (
	"encoding/json"
	"fmt"
)

// Decode is the structural inverse of Encode. Placeholder indices must
// form a contiguous range within the buffer list; anything else is a
// malformed skeleton.
func Decode(skeleton string, buffers [][]byte) (any, error) {
	var tree any
	if err := json.Unmarshal([]byte(skeleton), &tree); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSkeleton, err)
	}
	dec := decoder{buffers: buffers}
	return dec.walk(tree)
}

type decoder struct {
	buffers [][]byte
}

func (d *decoder) walk(v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		if tag, ok := val[tagKey].(string); ok {
			switch tag {
			case tagTuple:
				if items, ok := val["items"].([]any); ok {
					return d.walkTuple(items)
				}
			case tagMapping:
				if pairs, ok := val["pairs"].([]any); ok {
					return d.walkMapping(pairs)
				}
			case tagArray:
				return d.walkArray(val)
			case tagObject:
				return d.walkEscaped(val)
			}
		}
		out := make(map[string]any, len(val))
		for k, mv := range val {
			dv, err := d.walk(mv)
			if err != nil {
				return nil, err
			}
			out[k] = dv
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			dv, err := d.walk(item)
			if err != nil {
				return nil, err
			}
			out[i] = dv
		}
		return out, nil
	default:
		return val, nil
	}
}

// walkEscaped unwraps a plain map that was escaped on encode because
// it carries the tag key itself.
func (d *decoder) walkEscaped(val map[string]any) (map[string]any, error) {
	inner, ok := val["value"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: escaped object", ErrBadSkeleton)
	}
	out := make(map[string]any, len(inner))
	for k, mv := range inner {
		dv, err := d.walk(mv)
		if err != nil {
			return nil, err
		}
		out[k] = dv
	}
	return out, nil
}

func (d *decoder) walkTuple(items []any) (Tuple, error) {
	out := make(Tuple, len(items))
	for i, item := range items {
		dv, err := d.walk(item)
		if err != nil {
			return nil, err
		}
		out[i] = dv
	}
	return out, nil
}

func (d *decoder) walkMapping(pairs []any) (Mapping, error) {
	out := make(Mapping, 0, len(pairs))
	for _, raw := range pairs {
		pair, ok := raw.([]any)
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("%w: mapping pair", ErrBadSkeleton)
		}
		k, err := d.walk(pair[0])
		if err != nil {
			return nil, err
		}
		pv, err := d.walk(pair[1])
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{Key: k, Value: pv})
	}
	return out, nil
}

func (d *decoder) walkArray(val map[string]any) (Array, error) {
	dtype, ok := val["dtype"].(string)
	if !ok {
		return Array{}, fmt.Errorf("%w: array dtype", ErrBadSkeleton)
	}
	if Dtype(dtype).ItemSize() == 0 {
		return Array{}, ErrUnknownDtype
	}
	rawIndex, ok := val["index"].(float64)
	if !ok {
		return Array{}, fmt.Errorf("%w: array index", ErrBadSkeleton)
	}
	index := int(rawIndex)
	if index < 0 || index >= len(d.buffers) {
		return Array{}, fmt.Errorf("%w: index %d of %d buffers", ErrBufferIndex, index, len(d.buffers))
	}
	rawShape, ok := val["shape"].([]any)
	if !ok {
		return Array{}, fmt.Errorf("%w: array shape", ErrBadSkeleton)
	}
	shape := make([]int, len(rawShape))
	for i, dim := range rawShape {
		f, ok := dim.(float64)
		if !ok {
			return Array{}, fmt.Errorf("%w: array shape", ErrBadSkeleton)
		}
		shape[i] = int(f)
	}
	data := make([]byte, len(d.buffers[index]))
	copy(data, d.buffers[index])
	a := Array{Dtype: Dtype(dtype), Shape: shape, Data: data}
	if err := a.validate(); err != nil {
		return Array{}, err
	}
	return a, nil
}
