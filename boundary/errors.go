package boundary

import "errors"

var (
	ErrStopped       = errors.New("boundary: router stopped")
	ErrNotStarted    = errors.New("boundary: router not started")
	ErrChannelExists = errors.New("boundary: channel already registered")
	ErrPopTimeout    = errors.New("boundary: queue pop timed out")
	ErrJoinTimeout   = errors.New("boundary: join timed out")
)
