package boundary

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/pearlryder/CellProfiler/codec"
	"github.com/pearlryder/CellProfiler/comm"
	"github.com/pearlryder/CellProfiler/internal/observability"
)

const (
	announceWriteTimeout = time.Second
	replyWriteTimeout    = 5 * time.Second
)

type peer struct {
	id   string
	conn net.Conn
}

type inboundEvent struct {
	peerID    string
	channelID string
	env       *comm.Envelope
	err       error
	gone      bool
}

type replyEntry struct {
	route comm.Route
	env   *comm.Envelope
}

// run is the I/O loop. It is the only goroutine that writes to peer or
// subscriber connections, which keeps endpoint access single-writer
// without a lock around the sockets.
func (b *Boundary) run() {
	defer close(b.done)

	ticker := time.NewTicker(b.opts.Heartbeat)
	defer ticker.Stop()

	peers := make(map[string]net.Conn)
	subs := make(map[net.Conn]struct{})

	for {
		select {
		case p := <-b.peerAdd:
			peers[p.id] = p.conn
		case in := <-b.inbound:
			b.handleInbound(peers, in)
		case entry := <-b.control:
			b.handleReply(peers, entry)
		case conn := <-b.annConns:
			subs[conn] = struct{}{}
			b.writeAnnounce(subs, conn)
		case <-b.kick:
			b.publishAnnounce(subs)
		case <-ticker.C:
			b.publishAnnounce(subs)
		case <-b.stop:
			for _, conn := range peers {
				conn.Close()
			}
			for conn := range subs {
				conn.Close()
			}
			b.logger.Info().Msg("boundary stopped")
			return
		}
	}
}

func (b *Boundary) handleInbound(peers map[string]net.Conn, in inboundEvent) {
	start := time.Now()

	if in.gone {
		if conn, ok := peers[in.peerID]; ok {
			conn.Close()
			delete(peers, in.peerID)
		}
		return
	}
	if in.err != nil {
		// Fatal to this message exchange only; the loop keeps serving.
		b.logger.Warn().Err(in.err).Str("peer", in.peerID).Msg("malformed request")
		observability.RecordRequest(observability.OutcomeMalformed, time.Since(start))
		return
	}

	b.mu.Lock()
	reg, registered := b.channels[in.channelID]
	b.mu.Unlock()

	if !registered {
		b.sendExited(peers, in.peerID)
		observability.RecordRequest(observability.OutcomeExited, time.Since(start))
		return
	}

	in.env.Bind(comm.Route{ChannelID: in.channelID, Peer: in.peerID}, b)
	reg.queue.Push(in.env)
	observability.RecordRequest(observability.OutcomeDelivered, time.Since(start))
}

// handleReply transmits a consumer reply, substituting an exited
// envelope when the channel was cancelled after the request was
// dequeued.
func (b *Boundary) handleReply(peers map[string]net.Conn, entry replyEntry) {
	conn, ok := peers[entry.route.Peer]
	if !ok {
		b.logger.Debug().Str("peer", entry.route.Peer).Msg("reply dropped, peer gone")
		return
	}

	b.mu.Lock()
	_, registered := b.channels[entry.route.ChannelID]
	b.mu.Unlock()

	env := entry.env
	outcome := observability.OutcomeDelivered
	if !registered {
		env = comm.NewExited()
		outcome = observability.OutcomeExited
	}

	conn.SetWriteDeadline(time.Now().Add(replyWriteTimeout))
	if err := comm.WriteReply(conn, env); err != nil {
		b.logger.Warn().Err(err).Str("peer", entry.route.Peer).Msg("reply write failed")
		conn.Close()
		delete(peers, entry.route.Peer)
		return
	}
	observability.RecordReply(outcome)
}

func (b *Boundary) sendExited(peers map[string]net.Conn, peerID string) {
	conn, ok := peers[peerID]
	if !ok {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(replyWriteTimeout))
	if err := comm.WriteReply(conn, comm.NewExited()); err != nil {
		b.logger.Warn().Err(err).Str("peer", peerID).Msg("exited write failed")
		conn.Close()
		delete(peers, peerID)
	}
}

func (b *Boundary) publishAnnounce(subs map[net.Conn]struct{}) {
	if len(subs) == 0 {
		observability.RecordAnnounce(len(b.snapshot()))
		return
	}
	line := b.announceLine()
	for conn := range subs {
		if !b.writeAnnounceLine(conn, line) {
			conn.Close()
			delete(subs, conn)
		}
	}
	observability.RecordAnnounce(len(b.snapshot()))
}

// writeAnnounce sends the current snapshot to one subscriber, so a
// late joiner converges immediately instead of waiting a heartbeat.
func (b *Boundary) writeAnnounce(subs map[net.Conn]struct{}, conn net.Conn) {
	if !b.writeAnnounceLine(conn, b.announceLine()) {
		conn.Close()
		delete(subs, conn)
	}
}

func (b *Boundary) writeAnnounceLine(conn net.Conn, line []byte) bool {
	conn.SetWriteDeadline(time.Now().Add(announceWriteTimeout))
	if _, err := conn.Write(line); err != nil {
		b.logger.Debug().Err(err).Msg("announce subscriber dropped")
		return false
	}
	return true
}

// announceLine renders the registry as one newline-terminated JSON
// array of [channel_id, request_address] pairs, [] when empty.
func (b *Boundary) announceLine() []byte {
	pairs := b.snapshot()
	out := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, []string{p[0], p[1]})
	}
	line, err := json.Marshal(out)
	if err != nil {
		// The payload is strings only; marshal cannot fail.
		line = []byte("[]")
	}
	return append(line, '\n')
}

func (b *Boundary) acceptRequests() {
	defer b.wg.Done()
	for {
		conn, err := b.reqListener.Accept()
		if err != nil {
			select {
			case <-b.stop:
			default:
				b.logger.Warn().Err(err).Msg("request accept failed")
			}
			return
		}
		p := &peer{
			id:   fmt.Sprintf("%s#%d", conn.RemoteAddr(), b.peerSeq.Add(1)),
			conn: conn,
		}
		select {
		case b.peerAdd <- p:
			b.wg.Add(1)
			go b.readPeer(p)
		case <-b.stop:
			conn.Close()
			return
		}
	}
}

func (b *Boundary) acceptSubscribers() {
	defer b.wg.Done()
	for {
		conn, err := b.annListener.Accept()
		if err != nil {
			select {
			case <-b.stop:
			default:
				b.logger.Warn().Err(err).Msg("announce accept failed")
			}
			return
		}
		select {
		case b.annConns <- conn:
		case <-b.stop:
			conn.Close()
			return
		}
	}
}

// readPeer feeds one peer's requests to the loop. Errors inside a
// well-framed message are reported and reading continues; framing
// errors desynchronize the byte stream, so the connection is dropped.
func (b *Boundary) readPeer(p *peer) {
	defer b.wg.Done()
	for {
		channelID, env, err := comm.ReadRequest(p.conn, b.opts.Limits)
		if err != nil {
			if recoverableProtocolError(err) {
				b.emit(inboundEvent{peerID: p.id, err: err})
				continue
			}
			b.emit(inboundEvent{peerID: p.id, gone: true})
			return
		}
		b.emit(inboundEvent{peerID: p.id, channelID: channelID, env: env})
	}
}

func (b *Boundary) emit(ev inboundEvent) {
	select {
	case b.inbound <- ev:
	case <-b.stop:
	}
}

func recoverableProtocolError(err error) bool {
	switch {
	case errors.Is(err, comm.ErrUnknownClass),
		errors.Is(err, codec.ErrBadSkeleton),
		errors.Is(err, codec.ErrBufferIndex),
		errors.Is(err, codec.ErrUnknownDtype),
		errors.Is(err, codec.ErrShapeMismatch):
		return true
	default:
		return false
	}
}
