package codec

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedValue = errors.New("codec: unsupported value")
	ErrBadSkeleton      = errors.New("codec: malformed skeleton")
	ErrBufferIndex      = errors.New("codec: buffer index out of range")
	ErrUnknownDtype     = errors.New("codec: unknown dtype")
	ErrShapeMismatch    = errors.New("codec: shape does not match data length")
	ErrDtypeMismatch    = errors.New("codec: dtype mismatch")
)

// UnsupportedValueError reports the Go type that could not be encoded.
type UnsupportedValueError struct {
	Value any
}

func (e UnsupportedValueError) Error() string {
	return fmt.Sprintf("codec: unsupported value of type %T", e.Value)
}

func (e UnsupportedValueError) Unwrap() error {
	return ErrUnsupportedValue
}
