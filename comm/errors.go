package comm

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidMagic       = errors.New("comm: invalid magic")
	ErrUnsupportedVersion = errors.New("comm: unsupported version")
	ErrTruncated          = errors.New("comm: truncated message")
	ErrBadFrameCount      = errors.New("comm: bad frame count")
	ErrFrameTooLarge      = errors.New("comm: frame too large")
	ErrTooManyFrames      = errors.New("comm: too many frames")
	ErrUnknownClass       = errors.New("comm: unknown class tag")
	ErrNotRepliable       = errors.New("comm: envelope carries no routing metadata")
	ErrAlreadyReplied     = errors.New("comm: request already replied to")
)

// UnknownClassError reports the unrecognized tag seen on the wire.
type UnknownClassError struct {
	Tag string
}

func (e UnknownClassError) Error() string {
	return fmt.Sprintf("comm: unknown class tag %q", e.Tag)
}

func (e UnknownClassError) Unwrap() error {
	return ErrUnknownClass
}
