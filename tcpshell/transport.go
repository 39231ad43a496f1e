// Package tcpshell is the network side of the Forthright shell: one TCP
// session at a time, input bridged through a bounded queue that drops on
// overflow, output batched into packets flushed on newline.
package tcpshell

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const (
	DefaultAddr           = ":7000"
	DefaultQueueSize      = 128
	DefaultEnqueueTimeout = 10 * time.Millisecond
	DefaultDequeueTimeout = 10 * time.Millisecond
	DefaultPacketSize     = 1500
	DefaultWelcome        = "WELCOME\n"
	DefaultIdleTimeout    = time.Hour
)

var (
	// ErrNotConnected is returned by writes when no live session exists.
	ErrNotConnected = errors.New("tcpshell: not connected")
	// ErrClosed is returned by Listen after Close.
	ErrClosed = errors.New("tcpshell: transport closed")
)

// State is the lifecycle state of the single shell connection.
type State int32

const (
	StateIdle State = iota
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config holds the network shell parameters. Zero values take the defaults.
type Config struct {
	Addr           string
	QueueSize      int
	EnqueueTimeout time.Duration
	DequeueTimeout time.Duration
	PacketSize     int    // output buffer capacity
	Welcome        string // queued as input when a peer attaches
	IdleTimeout    time.Duration // zero keeps idle sessions open
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.EnqueueTimeout <= 0 {
		c.EnqueueTimeout = DefaultEnqueueTimeout
	}
	if c.DequeueTimeout <= 0 {
		c.DequeueTimeout = DefaultDequeueTimeout
	}
	if c.PacketSize <= 0 {
		c.PacketSize = DefaultPacketSize
	}
	if c.Welcome == "" {
		c.Welcome = DefaultWelcome
	}
	if c.IdleTimeout < 0 {
		c.IdleTimeout = 0
	}
	return c
}

// Stats is a snapshot of the transport counters.
type Stats struct {
	Received uint64 // bytes accepted into the receive queue
	Dropped  uint64 // bytes lost to a full receive queue
	Segments uint64 // flushes attempted
	Sent     uint64 // bytes confirmed sent
}

// Transport is the network side of the shell. It owns at most one session,
// bridges its receive events into a bounded Queue and batches output into
// packets flushed on newline or when the buffer fills.
//
// The Handle* methods are the event surface: the accept and reader goroutines
// started by Listen call them, and tests may call them directly with any
// Session implementation.
type Transport struct {
	cfg   Config
	log   *zap.Logger
	queue *Queue
	state *atomic.Int32

	mu      sync.Mutex
	session Session

	// wmu belongs to the writer; the event callbacks never take it.
	wmu    sync.Mutex
	owner  Session // session the buffered bytes were written for
	out    []byte
	cursor int

	received *atomic.Uint64
	segments *atomic.Uint64
	sent     *atomic.Uint64

	lmu       sync.Mutex
	ln        net.Listener
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New returns an idle Transport. A nil logger disables logging.
func New(cfg Config, logger *zap.Logger) *Transport {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{
		cfg:      cfg,
		log:      logger.Named("tcpshell"),
		queue:    NewQueue(cfg.QueueSize),
		state:    atomic.NewInt32(int32(StateIdle)),
		out:      make([]byte, cfg.PacketSize),
		received: atomic.NewUint64(0),
		segments: atomic.NewUint64(0),
		sent:     atomic.NewUint64(0),
		closed:   make(chan struct{}),
	}
}

// State returns the current connection state.
func (t *Transport) State() State { return State(t.state.Load()) }

// Connected reports whether a session is established. The value may lag the
// medium until the next Read notices a closed session.
func (t *Transport) Connected() bool { return t.State() == StateConnected }

// Stats returns a snapshot of the counters.
func (t *Transport) Stats() Stats {
	return Stats{
		Received: t.received.Load(),
		Dropped:  t.queue.Dropped(),
		Segments: t.segments.Load(),
		Sent:     t.sent.Load(),
	}
}

// HandleAccept makes s the current session and queues the welcome text. It
// returns false, leaving s untouched, when another live session is attached
// or the transport is closed.
func (t *Transport) HandleAccept(s Session) bool {
	t.mu.Lock()
	select {
	case <-t.closed:
		t.mu.Unlock()
		t.log.Warn("refusing connection, transport closed", zap.String("remote", s.RemoteAddr()))
		return false
	default:
	}
	if cur := t.session; cur != nil && t.Connected() && !cur.Closed() {
		t.mu.Unlock()
		t.log.Warn("refusing connection, shell busy",
			zap.String("remote", s.RemoteAddr()),
			zap.String("current", cur.RemoteAddr()))
		return false
	}
	t.session = s
	t.state.Store(int32(StateConnected))
	t.mu.Unlock()

	t.log.Info("connection established", zap.String("remote", s.RemoteAddr()))
	t.enqueue([]byte(t.cfg.Welcome))
	return true
}

// HandleReceive queues the bytes of one inbound data event in arrival order.
// Bytes that find the queue full for the whole enqueue timeout are dropped.
func (t *Transport) HandleReceive(s Session, p []byte) {
	if !t.isCurrent(s) {
		return
	}
	t.enqueue(p)
}

// HandleDisconnect moves the transport back to idle if s is the current session.
func (t *Transport) HandleDisconnect(s Session) {
	t.mu.Lock()
	if t.session != s {
		t.mu.Unlock()
		return
	}
	was := t.State()
	t.state.Store(int32(StateIdle))
	t.mu.Unlock()

	if was == StateConnected {
		t.log.Info("disconnected", zap.String("remote", s.RemoteAddr()))
	}
}

// HandleSent records a completed transmission of n bytes.
func (t *Transport) HandleSent(s Session, n int) {
	t.sent.Add(uint64(n))
	t.log.Debug("data sent", zap.String("remote", s.RemoteAddr()), zap.Int("bytes", n))
}

func (t *Transport) isCurrent(s Session) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session == s
}

func (t *Transport) enqueue(p []byte) {
	if len(p) == 0 {
		return
	}
	dropped := 0
	for _, c := range p {
		if t.queue.Offer(c, t.cfg.EnqueueTimeout) {
			t.received.Inc()
		} else {
			dropped++
		}
	}
	if dropped > 0 {
		t.log.Debug("receive queue full, input dropped",
			zap.Int("offered", len(p)), zap.Int("dropped", dropped))
	} else {
		t.log.Debug("to stdin", zap.ByteString("data", p))
	}
}

// Read drains queued input into p without blocking beyond the dequeue
// timeout. It stops when p is full or the queue stays empty for one timeout,
// and returns the number of bytes copied; 0 means nothing is available.
// A session the medium has closed is noticed here and the state becomes idle.
func (t *Transport) Read(p []byte) int {
	n := 0
	for n < len(p) {
		c, ok := t.queue.Poll(t.cfg.DequeueTimeout)
		if !ok {
			break
		}
		p[n] = c
		n++
	}
	if n > 0 {
		t.log.Debug("read", zap.ByteString("data", p[:n]))
	}

	t.mu.Lock()
	if t.session != nil && t.session.Closed() && t.Connected() {
		t.state.Store(int32(StateIdle))
		t.log.Info("session closed by medium", zap.String("remote", t.session.RemoteAddr()))
	}
	t.mu.Unlock()
	return n
}

// PutChar appends c to the output buffer and flushes when c is a newline or
// the buffer is full. A failed flush discards the buffered bytes and returns
// the error. Writing to a session the medium has closed fails fast with
// ErrNotConnected and moves the transport to idle.
//
// The send runs without holding the session lock, so a slow peer stalls only
// the writer.
func (t *Transport) PutChar(c byte) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()

	t.mu.Lock()
	s := t.session
	if s == nil || !t.Connected() {
		t.mu.Unlock()
		return ErrNotConnected
	}
	if s.Closed() {
		t.state.Store(int32(StateIdle))
		t.mu.Unlock()
		t.cursor = 0
		t.log.Info("write on closed session", zap.String("remote", s.RemoteAddr()))
		return ErrNotConnected
	}
	t.mu.Unlock()

	if t.owner != s {
		// bytes left over from an earlier session are not for this peer
		t.owner = s
		t.cursor = 0
	}
	t.out[t.cursor] = c
	t.cursor++
	if c == '\n' || t.cursor == len(t.out) {
		return t.flush(s)
	}
	return nil
}

// PutChars is PutChar over each byte of p. It returns the number of bytes
// accepted before the first failure.
func (t *Transport) PutChars(p []byte) (int, error) {
	for i, c := range p {
		if err := t.PutChar(c); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

func (t *Transport) flush(s Session) error {
	seg := t.out[:t.cursor]
	t.cursor = 0
	t.segments.Inc()
	if err := s.Send(seg); err != nil {
		t.log.Warn("send failed", zap.String("remote", s.RemoteAddr()), zap.Int("bytes", len(seg)), zap.Error(err))
		return fmt.Errorf("tcpshell: send: %w", err)
	}
	t.HandleSent(s, len(seg))
	return nil
}
