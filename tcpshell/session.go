package tcpshell

import (
	"net"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// sendTimeout bounds a flush against a peer that stopped reading.
const sendTimeout = 5 * time.Second

// Session is the medium-level handle of one accepted connection.
type Session interface {
	// Send transmits p in full or fails. It must not retain p.
	Send(p []byte) error
	// Closed reports whether the medium considers the session gone.
	Closed() bool
	Close() error
	RemoteAddr() string
}

type tcpSession struct {
	mu     sync.Mutex
	c      net.Conn
	closed *atomic.Bool
}

func newTCPSession(c net.Conn) *tcpSession {
	return &tcpSession{c: c, closed: atomic.NewBool(false)}
}

func (s *tcpSession) Send(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.c.SetWriteDeadline(time.Now().Add(sendTimeout))
	_, err := s.c.Write(p)
	return err
}

func (s *tcpSession) Closed() bool { return s.closed.Load() }

func (s *tcpSession) RemoteAddr() string { return s.c.RemoteAddr().String() }

func (s *tcpSession) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.c.Close()
}
