package serial

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

var (
	// ErrClosed is returned by every operation on a Port after Close.
	ErrClosed = errors.New("serial: port closed")
	// ErrWouldBlock is returned when the device cannot accept a byte right now.
	ErrWouldBlock = errors.New("serial: device busy")
	// ErrHangup is returned by ReadAvailable once the other end of the line is gone.
	ErrHangup = errors.New("serial: device hung up")
)

// Port provides unbuffered, non-blocking byte access to a Linux serial port.
// It is safe for concurrent use by multiple goroutines.
type Port struct {
	mu     sync.RWMutex
	fd     int
	closed bool
	config Config
}

// Config holds configuration parameters for opening a serial port.
type Config struct {
	Device   string
	BaudRate int
}

// Open opens a serial port using the provided Config and returns a Port.
// The port is configured for raw operation and stays in non-blocking mode, so
// neither reads nor writes ever wait on the device.
func Open(cfg Config) (*Port, error) {
	fd, err := unix.Open(cfg.Device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0o666)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Device, err)
	}

	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("get termios: %w", err)
	}

	// Raw mode
	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	termios.Oflag &^= unix.OPOST
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	termios.Cflag &^= unix.CSIZE | unix.PARENB
	termios.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL

	// Baud rate
	baud := baudToUnix(cfg.BaudRate)
	termios.Cflag &^= unix.CBAUD
	termios.Cflag |= baud

	// VMIN=0, VTIME=0: a read returns whatever is there, possibly nothing
	termios.Cc[unix.VMIN] = 0
	termios.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set termios: %w", err)
	}

	return &Port{
		fd:     fd,
		config: cfg,
	}, nil
}

// Name returns the device path the port was opened with.
func (p *Port) Name() string {
	return p.config.Device
}

// WriteByte transmits one byte immediately. It returns ErrWouldBlock when the
// driver's transmit queue is full; there is no retry.
func (p *Port) WriteByte(c byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	n, err := unix.Write(p.fd, []byte{c})
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return ErrWouldBlock
		}
		return fmt.Errorf("write %s: %w", p.config.Device, err)
	}
	if n != 1 {
		return ErrWouldBlock
	}
	return nil
}

// Write transmits buf one byte at a time and stops at the first failure,
// returning the number of bytes written so far together with that failure.
func (p *Port) Write(buf []byte) (int, error) {
	for i, c := range buf {
		if err := p.WriteByte(c); err != nil {
			return i, err
		}
	}
	return len(buf), nil
}

// ReadAvailable copies whatever bytes the device has pending into buf, up to
// len(buf). It never waits: when nothing is pending it returns 0 and a nil error,
// and callers are expected to poll.
func (p *Port) ReadAvailable(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return 0, ErrClosed
	}

	pfd := []unix.PollFd{{Fd: int32(p.fd), Events: unix.POLLIN}}
	ready, err := unix.Poll(pfd, 0)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, fmt.Errorf("poll %s: %w", p.config.Device, err)
	}
	if ready == 0 {
		return 0, nil
	}
	if pfd[0].Revents&unix.POLLIN == 0 {
		if pfd[0].Revents&(unix.POLLHUP|unix.POLLERR) != 0 {
			return 0, ErrHangup
		}
		return 0, nil
	}

	n, err := unix.Read(p.fd, buf)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return 0, nil
		}
		return 0, fmt.Errorf("read %s: %w", p.config.Device, err)
	}
	return n, nil
}

// Close closes the serial port.
// Safe to call multiple times; subsequent calls are no-ops.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return unix.Close(p.fd)
}

func baudToUnix(baud int) uint32 {
	switch baud {
	case 9600:
		return unix.B9600
	case 19200:
		return unix.B19200
	case 38400:
		return unix.B38400
	case 57600:
		return unix.B57600
	case 115200:
		return unix.B115200
	case 230400:
		return unix.B230400
	default:
		return unix.B115200 // fallback
	}
}
