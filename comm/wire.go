package comm

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/pearlryder/CellProfiler/codec"
)

const (
	// Magic spells "CPB1" and fronts every message.
	Magic   uint32 = 0x43504231
	Version uint16 = 1

	headerSize = 8
)

// Limits constrains decode memory use, mirroring what a well-behaved
// peer would ever send.
type Limits struct {
	MaxFrames     int
	MaxFrameBytes uint32
}

func DefaultLimits() Limits {
	return Limits{
		MaxFrames:     256,
		MaxFrameBytes: 64 * 1024 * 1024,
	}
}

// WriteRequest writes [channel_id, class_tag, skeleton, buffer...] as
// one framed message.
func WriteRequest(w io.Writer, channelID string, env *Envelope) error {
	skeleton, buffers, err := codec.Encode(env.Payload)
	if err != nil {
		return err
	}
	frames := make([][]byte, 0, 3+len(buffers))
	frames = append(frames, []byte(channelID), []byte(env.Class), []byte(skeleton))
	frames = append(frames, buffers...)
	return writeFrames(w, frames)
}

// WriteReply writes [class_tag, skeleton, buffer...] as one framed
// message.
func WriteReply(w io.Writer, env *Envelope) error {
	skeleton, buffers, err := codec.Encode(env.Payload)
	if err != nil {
		return err
	}
	frames := make([][]byte, 0, 2+len(buffers))
	frames = append(frames, []byte(env.Class), []byte(skeleton))
	frames = append(frames, buffers...)
	return writeFrames(w, frames)
}

// SendOnly transmits the envelope as a request addressed to channelID
// without blocking for a reply. The caller owns its own response loop.
func (e *Envelope) SendOnly(w io.Writer, channelID string) error {
	return WriteRequest(w, channelID, e)
}

// ReadRequest reads one request message and dispatches the class tag to
// its constructor. An unknown tag is a protocol error for this message
// only.
func ReadRequest(r io.Reader, limits Limits) (string, *Envelope, error) {
	frames, err := readFrames(r, limits)
	if err != nil {
		return "", nil, err
	}
	if len(frames) < 3 {
		return "", nil, ErrBadFrameCount
	}
	env, err := decodeEnvelope(frames[1], frames[2], frames[3:])
	if err != nil {
		return "", nil, err
	}
	return string(frames[0]), env, nil
}

// ReadReply reads one reply message.
func ReadReply(r io.Reader, limits Limits) (*Envelope, error) {
	frames, err := readFrames(r, limits)
	if err != nil {
		return nil, err
	}
	if len(frames) < 2 {
		return nil, ErrBadFrameCount
	}
	return decodeEnvelope(frames[0], frames[1], frames[2:])
}

func decodeEnvelope(tag, skeleton []byte, buffers [][]byte) (*Envelope, error) {
	payload, err := codec.Decode(string(skeleton), buffers)
	if err != nil {
		return nil, err
	}
	return construct(Class(tag), payload)
}

func writeFrames(w io.Writer, frames [][]byte) error {
	head := make([]byte, headerSize)
	binary.BigEndian.PutUint32(head[0:4], Magic)
	binary.BigEndian.PutUint16(head[4:6], Version)
	binary.BigEndian.PutUint16(head[6:8], uint16(len(frames)))
	if _, err := w.Write(head); err != nil {
		return err
	}
	sizeBuf := make([]byte, 4)
	for _, frame := range frames {
		binary.BigEndian.PutUint32(sizeBuf, uint32(len(frame)))
		if _, err := w.Write(sizeBuf); err != nil {
			return err
		}
		if len(frame) == 0 {
			continue
		}
		if _, err := w.Write(frame); err != nil {
			return err
		}
	}
	return nil
}

func readFrames(r io.Reader, limits Limits) ([][]byte, error) {
	head := make([]byte, headerSize)
	if _, err := io.ReadFull(r, head); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrTruncated
		}
		return nil, err
	}
	if binary.BigEndian.Uint32(head[0:4]) != Magic {
		return nil, ErrInvalidMagic
	}
	if binary.BigEndian.Uint16(head[4:6]) != Version {
		return nil, ErrUnsupportedVersion
	}
	count := int(binary.BigEndian.Uint16(head[6:8]))
	if count == 0 {
		return nil, ErrBadFrameCount
	}
	if count > limits.MaxFrames {
		return nil, ErrTooManyFrames
	}

	frames := make([][]byte, 0, count)
	sizeBuf := make([]byte, 4)
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(r, sizeBuf); err != nil {
			return nil, ErrTruncated
		}
		size := binary.BigEndian.Uint32(sizeBuf)
		if size > limits.MaxFrameBytes {
			return nil, ErrFrameTooLarge
		}
		frame := make([]byte, size)
		if size > 0 {
			if _, err := io.ReadFull(r, frame); err != nil {
				return nil, ErrTruncated
			}
		}
		frames = append(frames, frame)
	}
	return frames, nil
}
