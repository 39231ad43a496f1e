package tcpshell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"go.uber.org/zap"
)

const (
	readChunk     = 1460
	acceptBackoff = 50 * time.Millisecond
)

// Listen binds cfg.Addr and starts accepting shell connections. Accepts and
// inbound data are delivered through the Handle* methods from goroutines owned
// by the Transport. The listener stops when ctx is done or Close is called.
func (t *Transport) Listen(ctx context.Context) error {
	select {
	case <-t.closed:
		return ErrClosed
	default:
	}

	ln, err := net.Listen("tcp", t.cfg.Addr)
	if err != nil {
		return fmt.Errorf("tcpshell: listening on %q: %w", t.cfg.Addr, err)
	}

	t.lmu.Lock()
	if t.ln != nil {
		t.lmu.Unlock()
		ln.Close()
		return errors.New("tcpshell: already listening")
	}
	t.ln = ln
	t.lmu.Unlock()

	t.log.Info("shell listening", zap.String("addr", ln.Addr().String()))

	t.wg.Add(1)
	go t.acceptLoop(ln)
	go func() {
		select {
		case <-ctx.Done():
			_ = t.Close()
		case <-t.closed:
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (t *Transport) Addr() net.Addr {
	t.lmu.Lock()
	defer t.lmu.Unlock()
	if t.ln == nil {
		return nil
	}
	return t.ln.Addr()
}

// Close stops the listener, closes the current session and waits for the
// transport's goroutines to exit.
// Safe to call multiple times; subsequent calls are no-ops.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)

		t.lmu.Lock()
		if t.ln != nil {
			err = t.ln.Close()
		}
		t.lmu.Unlock()

		t.mu.Lock()
		s := t.session
		t.mu.Unlock()
		if s != nil {
			_ = s.Close()
		}

		t.wg.Wait()
	})
	return err
}

func (t *Transport) acceptLoop(ln net.Listener) {
	defer t.wg.Done()
	for {
		c, err := ln.Accept()
		if err != nil {
			select {
			case <-t.closed:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			// Transient error (e.g. EMFILE); keep accepting.
			t.log.Warn("accept failed", zap.Error(err))
			time.Sleep(acceptBackoff)
			continue
		}

		s := newTCPSession(c)
		if !t.HandleAccept(s) {
			_ = s.Close()
			continue
		}
		t.wg.Add(1)
		go t.serve(s)
	}
}

// serve is the receive side of one session. It exits on EOF, on an idle
// timeout or when the session is closed, and reports the disconnect.
func (t *Transport) serve(s *tcpSession) {
	defer t.wg.Done()
	defer t.HandleDisconnect(s)
	defer s.Close()

	buf := make([]byte, readChunk)
	for {
		if t.cfg.IdleTimeout > 0 {
			_ = s.c.SetReadDeadline(time.Now().Add(t.cfg.IdleTimeout))
		}
		n, err := s.c.Read(buf)
		if n > 0 {
			t.HandleReceive(s, buf[:n])
		}
		if err != nil {
			var ne net.Error
			switch {
			case errors.As(err, &ne) && ne.Timeout():
				t.log.Info("idle timeout", zap.String("remote", s.RemoteAddr()), zap.Duration("after", t.cfg.IdleTimeout))
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed), s.Closed():
			default:
				t.log.Debug("receive failed", zap.String("remote", s.RemoteAddr()), zap.Error(err))
			}
			return
		}
	}
}
