package comm

import (
	"bytes"
	"errors"
	"testing"

	"github.com/pearlryder/CellProfiler/codec"
)

func TestRequestRoundTrip(t *testing.T) {
	env := NewRequest(map[string]any{
		"msg":    "hello",
		"pixels": codec.FromInt16([]int16{1, 2, 3, 4}, 2, 2),
	})

	var buf bytes.Buffer
	if err := WriteRequest(&buf, "channel-1", env); err != nil {
		t.Fatalf("write request: %v", err)
	}

	channelID, decoded, err := ReadRequest(&buf, DefaultLimits())
	if err != nil {
		t.Fatalf("read request: %v", err)
	}
	if channelID != "channel-1" {
		t.Fatalf("channel id: got %q", channelID)
	}
	if decoded.Class != ClassRequest {
		t.Fatalf("class: got %q", decoded.Class)
	}
	payload := decoded.Payload.(map[string]any)
	if payload["msg"] != "hello" {
		t.Fatalf("payload msg: got %v", payload["msg"])
	}
	vals, err := payload["pixels"].(codec.Array).Int16s()
	if err != nil {
		t.Fatalf("pixels: %v", err)
	}
	if len(vals) != 4 || vals[3] != 4 {
		t.Fatalf("pixels values: %v", vals)
	}
}

func TestReplyRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReply(&buf, NewReply(map[string]any{"msg": "pong"})); err != nil {
		t.Fatalf("write reply: %v", err)
	}
	decoded, err := ReadReply(&buf, DefaultLimits())
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if decoded.Class != ClassReply {
		t.Fatalf("class: got %q", decoded.Class)
	}
	if decoded.Payload.(map[string]any)["msg"] != "pong" {
		t.Fatalf("payload: %v", decoded.Payload)
	}
}

func TestSendOnly(t *testing.T) {
	var buf bytes.Buffer
	if err := NewRequest(map[string]any{"k": "v"}).SendOnly(&buf, "c"); err != nil {
		t.Fatalf("send only: %v", err)
	}
	channelID, _, err := ReadRequest(&buf, DefaultLimits())
	if err != nil {
		t.Fatalf("read request: %v", err)
	}
	if channelID != "c" {
		t.Fatalf("channel id: got %q", channelID)
	}
}

func TestReadUnknownClass(t *testing.T) {
	var buf bytes.Buffer
	env := &Envelope{Class: Class("no-such-class"), Payload: map[string]any{}}
	if err := WriteReply(&buf, env); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := ReadReply(&buf, DefaultLimits())
	if !errors.Is(err, ErrUnknownClass) {
		t.Fatalf("expected ErrUnknownClass, got %v", err)
	}
	var unknown UnknownClassError
	if !errors.As(err, &unknown) || unknown.Tag != "no-such-class" {
		t.Fatalf("expected tag in error, got %v", err)
	}
}

func TestRegisterClassExtendsUnion(t *testing.T) {
	const tag = Class("interaction")
	RegisterClass(tag, func(p any) *Envelope {
		return &Envelope{Class: tag, Payload: p}
	})

	var buf bytes.Buffer
	if err := WriteReply(&buf, &Envelope{Class: tag, Payload: map[string]any{"n": 1}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	decoded, err := ReadReply(&buf, DefaultLimits())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if decoded.Class != tag {
		t.Fatalf("class: got %q", decoded.Class)
	}
}

func TestReadInvalidMagic(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReply(&buf, NewReply(map[string]any{})); err != nil {
		t.Fatalf("write: %v", err)
	}
	b := buf.Bytes()
	b[0] = 0
	_, err := ReadReply(bytes.NewReader(b), DefaultLimits())
	if !errors.Is(err, ErrInvalidMagic) {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}
}

func TestReadTruncated(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReply(&buf, NewReply(map[string]any{"msg": "abc"})); err != nil {
		t.Fatalf("write: %v", err)
	}
	b := buf.Bytes()
	_, err := ReadReply(bytes.NewReader(b[:len(b)-2]), DefaultLimits())
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestReadFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReply(&buf, NewReply(map[string]any{"msg": "0123456789"})); err != nil {
		t.Fatalf("write: %v", err)
	}
	limits := DefaultLimits()
	limits.MaxFrameBytes = 4
	_, err := ReadReply(&buf, limits)
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

type captureSink struct {
	route Route
	reply *Envelope
	calls int
}

func (s *captureSink) SubmitReply(route Route, reply *Envelope) error {
	s.route = route
	s.reply = reply
	s.calls++
	return nil
}

func TestReplyRequiresRoute(t *testing.T) {
	req := NewRequest(map[string]any{})
	if _, ok := req.Route(); ok {
		t.Fatalf("unbound envelope reported a route")
	}
	err := req.Reply(NewReply(map[string]any{}))
	if !errors.Is(err, ErrNotRepliable) {
		t.Fatalf("expected ErrNotRepliable, got %v", err)
	}
}

func TestReplyExactlyOnce(t *testing.T) {
	sink := &captureSink{}
	req := NewRequest(map[string]any{})
	req.Bind(Route{ChannelID: "c", Peer: "p"}, sink)

	route, ok := req.Route()
	if !ok || route.ChannelID != "c" || route.Peer != "p" {
		t.Fatalf("bound route: %+v %v", route, ok)
	}

	if err := req.Reply(NewReply(map[string]any{"msg": "ok"})); err != nil {
		t.Fatalf("first reply: %v", err)
	}
	if sink.calls != 1 || sink.route.ChannelID != "c" || sink.route.Peer != "p" {
		t.Fatalf("sink not invoked with route: %+v", sink)
	}
	err := req.Reply(NewReply(map[string]any{"msg": "again"}))
	if !errors.Is(err, ErrAlreadyReplied) {
		t.Fatalf("expected ErrAlreadyReplied, got %v", err)
	}
}
