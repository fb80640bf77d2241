package boundary

import (
	"fmt"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/pearlryder/CellProfiler/comm"
	"github.com/pearlryder/CellProfiler/internal/observability"
)

type registration struct {
	queue *Queue
}

// Boundary routes envelopes between remote peers on its request
// endpoint and in-process consumers holding registered channels. All
// endpoint writes happen on one I/O goroutine; every other participant
// talks to it through thread-safe queues and the control channel.
type Boundary struct {
	opts   Options
	logger zerolog.Logger

	mu       sync.Mutex
	channels map[string]*registration
	started  bool
	stopped  bool

	reqListener net.Listener
	annListener net.Listener
	debug       *observability.DebugServer

	inbound  chan inboundEvent
	control  chan replyEntry
	peerAdd  chan *peer
	annConns chan net.Conn
	kick     chan struct{}
	stop     chan struct{}
	done     chan struct{}

	stopOnce sync.Once
	wg       sync.WaitGroup
	peerSeq  atomic.Uint64
}

// Handle is a consumer's grip on one registration; its only operation
// is Cancel.
type Handle struct {
	b         *Boundary
	channelID string
}

func (h *Handle) ChannelID() string {
	return h.channelID
}

func (h *Handle) Cancel() {
	h.b.Cancel(h.channelID)
}

func New(opts Options) *Boundary {
	if opts.RequestBind == "" {
		opts.RequestBind = "127.0.0.1:0"
	}
	if opts.AnnounceBind == "" {
		opts.AnnounceBind = "127.0.0.1:0"
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = time.Second
	}
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = 5 * time.Second
	}
	if opts.Limits.MaxFrames == 0 {
		opts.Limits.MaxFrames = comm.DefaultLimits().MaxFrames
	}
	if opts.Limits.MaxFrameBytes == 0 {
		opts.Limits.MaxFrameBytes = comm.DefaultLimits().MaxFrameBytes
	}
	return &Boundary{
		opts:     opts,
		logger:   observability.InitLogger("boundary"),
		channels: make(map[string]*registration),
		inbound:  make(chan inboundEvent, 64),
		control:  make(chan replyEntry, 64),
		peerAdd:  make(chan *peer),
		annConns: make(chan net.Conn),
		kick:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start binds the request and announce endpoints and brings up the I/O
// goroutine. Calling Start on a running instance returns the resolved
// addresses again.
func (b *Boundary) Start() (requestAddr, announceAddr string, err error) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return "", "", ErrStopped
	}
	if b.started {
		req, ann := b.reqListener.Addr().String(), b.annListener.Addr().String()
		b.mu.Unlock()
		return req, ann, nil
	}

	reqListener, err := net.Listen("tcp", b.opts.RequestBind)
	if err != nil {
		b.mu.Unlock()
		return "", "", fmt.Errorf("boundary: bind request endpoint: %w", err)
	}
	annListener, err := net.Listen("tcp", b.opts.AnnounceBind)
	if err != nil {
		reqListener.Close()
		b.mu.Unlock()
		return "", "", fmt.Errorf("boundary: bind announce endpoint: %w", err)
	}
	b.reqListener = reqListener
	b.annListener = annListener
	b.started = true
	b.mu.Unlock()

	if b.opts.DebugAddr != "" {
		b.debug = observability.NewDebugServer(
			"boundary", b.opts.DebugAddr, b.opts.DebugCORSOrigins, b.snapshot)
		if err := b.debug.Start(); err != nil {
			reqListener.Close()
			annListener.Close()
			b.mu.Lock()
			b.started = false
			b.mu.Unlock()
			return "", "", fmt.Errorf("boundary: bind debug endpoint: %w", err)
		}
	}

	go b.run()
	b.wg.Add(2)
	go b.acceptRequests()
	go b.acceptSubscribers()

	req, ann := reqListener.Addr().String(), annListener.Addr().String()
	b.logger.Info().
		Str("request_addr", req).
		Str("announce_addr", ann).
		Dur("heartbeat", b.opts.Heartbeat).
		Msg("boundary started")
	return req, ann, nil
}

// RequestAddress returns the resolved request endpoint address, empty
// before Start.
func (b *Boundary) RequestAddress() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reqListener == nil {
		return ""
	}
	return b.reqListener.Addr().String()
}

// AnnounceAddress returns the resolved announce endpoint address.
func (b *Boundary) AnnounceAddress() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.annListener == nil {
		return ""
	}
	return b.annListener.Addr().String()
}

// Register inserts a channel registration and triggers an announce.
// At most one registration per channel id may exist at a time.
func (b *Boundary) Register(channelID string, queue *Queue) (*Handle, error) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil, ErrStopped
	}
	if !b.started {
		b.mu.Unlock()
		return nil, ErrNotStarted
	}
	if _, exists := b.channels[channelID]; exists {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrChannelExists, channelID)
	}
	b.channels[channelID] = &registration{queue: queue}
	count := len(b.channels)
	b.mu.Unlock()

	b.logger.Debug().Str("channel_id", channelID).Int("channels", count).Msg("channel registered")
	b.kickAnnounce()
	return &Handle{b: b, channelID: channelID}, nil
}

// Cancel removes a registration if present and triggers an announce.
// Requests addressed to the channel afterwards, and replies submitted
// for requests dequeued before the cancel, resolve to exited envelopes.
func (b *Boundary) Cancel(channelID string) {
	b.mu.Lock()
	_, existed := b.channels[channelID]
	delete(b.channels, channelID)
	count := len(b.channels)
	b.mu.Unlock()

	if !existed {
		return
	}
	b.logger.Debug().Str("channel_id", channelID).Int("channels", count).Msg("channel cancelled")
	b.kickAnnounce()
}

// SubmitReply queues a consumer reply for transmission by the I/O
// goroutine. Registration state is re-checked at send time, so a cancel
// racing this call still resolves to an exited envelope.
func (b *Boundary) SubmitReply(route comm.Route, reply *comm.Envelope) error {
	select {
	case b.control <- replyEntry{route: route, env: reply}:
		return nil
	case <-b.stop:
		return ErrStopped
	}
}

var _ comm.ReplySink = (*Boundary)(nil)

// Shutdown stops the I/O goroutine, closes both endpoints and waits up
// to the configured join timeout. Channels still registered are
// implicitly cancelled.
func (b *Boundary) Shutdown() error {
	b.mu.Lock()
	if !b.started {
		b.stopped = true
		b.mu.Unlock()
		return nil
	}
	b.stopped = true
	b.channels = make(map[string]*registration)
	reqListener, annListener := b.reqListener, b.annListener
	b.mu.Unlock()

	b.stopOnce.Do(func() {
		close(b.stop)
		reqListener.Close()
		annListener.Close()
		if b.debug != nil {
			b.debug.Close()
		}
	})
	return b.Join(b.opts.JoinTimeout)
}

// Join waits for the I/O goroutine and endpoint helpers to finish. It
// returns ErrJoinTimeout if they have not stopped within timeout; the
// closed endpoints will still unblock them shortly after.
func (b *Boundary) Join(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = b.opts.JoinTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	waited := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(waited)
	}()

	select {
	case <-b.done:
	case <-timer.C:
		return ErrJoinTimeout
	}
	select {
	case <-waited:
		return nil
	case <-timer.C:
		return ErrJoinTimeout
	}
}

func (b *Boundary) kickAnnounce() {
	select {
	case b.kick <- struct{}{}:
	default:
	}
}

// snapshot returns the announce payload source: one [channel_id,
// request_address] pair per live registration.
func (b *Boundary) snapshot() [][2]string {
	addr := b.RequestAddress()
	b.mu.Lock()
	ids := make([]string, 0, len(b.channels))
	for id := range b.channels {
		ids = append(ids, id)
	}
	b.mu.Unlock()

	sort.Strings(ids)
	pairs := make([][2]string, 0, len(ids))
	for _, id := range ids {
		pairs = append(pairs, [2]string{id, addr})
	}
	return pairs
}
