package comm

import (
	"sync"
	"sync/atomic"
)

// Class tags the concrete kind of an envelope on the wire.
type Class string

const (
	ClassRequest Class = "request"
	ClassReply   Class = "reply"
	ClassExited  Class = "boundary-exited"
)

// Constructor builds an envelope of one class from a decoded payload.
type Constructor func(payload any) *Envelope

var (
	classMu      sync.RWMutex
	constructors = map[Class]Constructor{
		ClassRequest: func(p any) *Envelope { return NewRequest(p) },
		ClassReply:   func(p any) *Envelope { return NewReply(p) },
		ClassExited:  func(p any) *Envelope { return &Envelope{Class: ClassExited, Payload: p} },
	}
)

// RegisterClass extends the closed set of class tags. Registering an
// already-known tag replaces its constructor.
func RegisterClass(c Class, ctor Constructor) {
	classMu.Lock()
	defer classMu.Unlock()
	constructors[c] = ctor
}

func construct(c Class, payload any) (*Envelope, error) {
	classMu.RLock()
	ctor, ok := constructors[c]
	classMu.RUnlock()
	if !ok {
		return nil, UnknownClassError{Tag: string(c)}
	}
	return ctor(payload), nil
}

// Route is the passive routing metadata attached to a received request:
// the channel it targeted and the transport-level peer identity the
// reply must be addressed to. It carries no live socket reference.
type Route struct {
	ChannelID string
	Peer      string
}

// ReplySink accepts consumer replies for transmission. The router's
// control channel implements it; consumers never touch an endpoint.
type ReplySink interface {
	SubmitReply(route Route, reply *Envelope) error
}

// Envelope is one typed message: a class tag plus a structured payload
// (codec value). Envelopes delivered as requests additionally carry a
// route and a sink so the consumer can reply exactly once.
type Envelope struct {
	Class   Class
	Payload any

	route   Route
	sink    ReplySink
	replied atomic.Bool
}

// NewRequest builds a request envelope.
func NewRequest(payload any) *Envelope {
	return &Envelope{Class: ClassRequest, Payload: payload}
}

// NewReply builds a reply envelope.
func NewReply(payload any) *Envelope {
	return &Envelope{Class: ClassReply, Payload: payload}
}

// NewExited builds the terminal envelope substituted for requests whose
// channel is not registered.
func NewExited() *Envelope {
	return &Envelope{Class: ClassExited, Payload: map[string]any{}}
}

// Bind attaches routing metadata and a reply sink. The router calls it
// on delivery; consumer code has no reason to.
func (e *Envelope) Bind(route Route, sink ReplySink) {
	e.route = route
	e.sink = sink
}

// Route returns the routing metadata attached on delivery, if any.
func (e *Envelope) Route() (Route, bool) {
	return e.route, e.sink != nil
}

// Reply submits reply for transmission to the peer this request came
// from. Only envelopes received as requests can be replied to, and only
// once; the router substitutes a terminal exited envelope if the
// channel has been cancelled in the meantime.
func (e *Envelope) Reply(reply *Envelope) error {
	if e.sink == nil {
		return ErrNotRepliable
	}
	if !e.replied.CompareAndSwap(false, true) {
		return ErrAlreadyReplied
	}
	return e.sink.SubmitReply(e.route, reply)
}
