package codec

import (
	"encoding/binary"
	"math"
)

// Dtype names the element type of an Array. Raw bytes are little endian.
type Dtype string

const (
	DtypeBool    Dtype = "bool"
	DtypeInt8    Dtype = "int8"
	DtypeUint8   Dtype = "uint8"
	DtypeInt16   Dtype = "int16"
	DtypeUint16  Dtype = "uint16"
	DtypeInt32   Dtype = "int32"
	DtypeUint32  Dtype = "uint32"
	DtypeInt64   Dtype = "int64"
	DtypeUint64  Dtype = "uint64"
	DtypeFloat32 Dtype = "float32"
	DtypeFloat64 Dtype = "float64"
)

var dtypeSizes = map[Dtype]int{
	DtypeBool:    1,
	DtypeInt8:    1,
	DtypeUint8:   1,
	DtypeInt16:   2,
	DtypeUint16:  2,
	DtypeInt32:   4,
	DtypeUint32:  4,
	DtypeInt64:   8,
	DtypeUint64:  8,
	DtypeFloat32: 4,
	DtypeFloat64: 8,
}

// ItemSize returns the element width in bytes, or 0 for an unknown dtype.
func (d Dtype) ItemSize() int {
	return dtypeSizes[d]
}

// Array is a homogeneous numeric block: dtype, shape and raw
// little-endian element bytes. It is the value the codec extracts into
// the side buffer list.
type Array struct {
	Dtype Dtype
	Shape []int
	Data  []byte
}

// Len returns the element count implied by the shape.
func (a Array) Len() int {
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	if len(a.Shape) == 0 {
		return 0
	}
	return n
}

func (a Array) validate() error {
	size := a.Dtype.ItemSize()
	if size == 0 {
		return ErrUnknownDtype
	}
	if a.Len()*size != len(a.Data) {
		return ErrShapeMismatch
	}
	return nil
}

func defaultShape(n int, shape []int) []int {
	if len(shape) == 0 {
		return []int{n}
	}
	out := make([]int, len(shape))
	copy(out, shape)
	return out
}

// FromInt64 builds an int64 Array. Shape defaults to one dimension.
func FromInt64(vals []int64, shape ...int) Array {
	data := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(data[8*i:], uint64(v))
	}
	return Array{Dtype: DtypeInt64, Shape: defaultShape(len(vals), shape), Data: data}
}

// FromUint64 builds a uint64 Array.
func FromUint64(vals []uint64, shape ...int) Array {
	data := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(data[8*i:], v)
	}
	return Array{Dtype: DtypeUint64, Shape: defaultShape(len(vals), shape), Data: data}
}

// FromInt32 builds an int32 Array.
func FromInt32(vals []int32, shape ...int) Array {
	data := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(data[4*i:], uint32(v))
	}
	return Array{Dtype: DtypeInt32, Shape: defaultShape(len(vals), shape), Data: data}
}

// FromUint32 builds a uint32 Array.
func FromUint32(vals []uint32, shape ...int) Array {
	data := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(data[4*i:], v)
	}
	return Array{Dtype: DtypeUint32, Shape: defaultShape(len(vals), shape), Data: data}
}

// FromInt16 builds an int16 Array.
func FromInt16(vals []int16, shape ...int) Array {
	data := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(data[2*i:], uint16(v))
	}
	return Array{Dtype: DtypeInt16, Shape: defaultShape(len(vals), shape), Data: data}
}

// FromFloat64 builds a float64 Array.
func FromFloat64(vals []float64, shape ...int) Array {
	data := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(data[8*i:], math.Float64bits(v))
	}
	return Array{Dtype: DtypeFloat64, Shape: defaultShape(len(vals), shape), Data: data}
}

// FromBool builds a bool Array with one byte per element.
func FromBool(vals []bool, shape ...int) Array {
	data := make([]byte, len(vals))
	for i, v := range vals {
		if v {
			data[i] = 1
		}
	}
	return Array{Dtype: DtypeBool, Shape: defaultShape(len(vals), shape), Data: data}
}

// Int32s decodes the element data of an int32 Array.
func (a Array) Int32s() ([]int32, error) {
	if a.Dtype != DtypeInt32 {
		return nil, ErrDtypeMismatch
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	out := make([]int32, a.Len())
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(a.Data[4*i:]))
	}
	return out, nil
}

// Int16s decodes the element data of an int16 Array.
func (a Array) Int16s() ([]int16, error) {
	if a.Dtype != DtypeInt16 {
		return nil, ErrDtypeMismatch
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	out := make([]int16, a.Len())
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(a.Data[2*i:]))
	}
	return out, nil
}

// Float64s decodes the element data of a float64 Array.
func (a Array) Float64s() ([]float64, error) {
	if a.Dtype != DtypeFloat64 {
		return nil, ErrDtypeMismatch
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	out := make([]float64, a.Len())
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(a.Data[8*i:]))
	}
	return out, nil
}

// Bools decodes the element data of a bool Array.
func (a Array) Bools() ([]bool, error) {
	if a.Dtype != DtypeBool {
		return nil, ErrDtypeMismatch
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	out := make([]bool, a.Len())
	for i := range out {
		out[i] = a.Data[i] != 0
	}
	return out, nil
}

// narrow rewrites wide integer arrays as int32 per the wire contract:
// int64, uint64 and uint32 elements are truncated to 32-bit signed.
// Everything else passes through untouched.
func narrow(a Array) (Array, error) {
	if err := a.validate(); err != nil {
		return Array{}, err
	}
	switch a.Dtype {
	case DtypeInt64, DtypeUint64:
		n := a.Len()
		data := make([]byte, 4*n)
		for i := 0; i < n; i++ {
			v := binary.LittleEndian.Uint64(a.Data[8*i:])
			binary.LittleEndian.PutUint32(data[4*i:], uint32(v))
		}
		return Array{Dtype: DtypeInt32, Shape: a.Shape, Data: data}, nil
	case DtypeUint32:
		return Array{Dtype: DtypeInt32, Shape: a.Shape, Data: a.Data}, nil
	default:
		return a, nil
	}
}
