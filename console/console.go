// Package console routes the interpreter's character I/O to the network shell
// while a peer is connected, and to the serial line otherwise.
package console

import (
	"io"

	"go.uber.org/zap"
)

// Network is the network transport as the console sees it.
type Network interface {
	Connected() bool
	Read(p []byte) int
	PutChar(c byte) error
	PutChars(p []byte) (int, error)
}

// Serial is the wired transport. Neither method may block.
type Serial interface {
	WriteByte(c byte) error
	Write(p []byte) (int, error)
	ReadAvailable(p []byte) (int, error)
}

// Ack is sent to a network peer in place of echoing a line terminator.
var Ack = []byte(" ok\n")

// Console is the interpreter's only I/O surface. It keeps no state of its
// own: every call asks the network transport whether a session is
// established and dispatches accordingly, so consecutive calls may land on
// different transports.
type Console struct {
	net    Network
	serial Serial
	debug  io.Writer
	log    *zap.Logger
}

// New returns a Console. net may be nil when the network shell is disabled;
// debug may be nil to discard diagnostics.
func New(net Network, serial Serial, debug io.Writer, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debug == nil {
		debug = io.Discard
	}
	return &Console{
		net:    net,
		serial: serial,
		debug:  debug,
		log:    logger.Named("console"),
	}
}

func (c *Console) networked() bool {
	return c.net != nil && c.net.Connected()
}

// IsConnected reports whether a network peer is attached.
func (c *Console) IsConnected() bool { return c.networked() }

// Read places available input into p and returns how many bytes it copied.
// It never waits longer than the network dequeue timeout; 0 means try again.
func (c *Console) Read(p []byte) (int, error) {
	if c.networked() {
		return c.net.Read(p), nil
	}
	return c.serial.ReadAvailable(p)
}

// WriteChar writes one byte to the active transport.
func (c *Console) WriteChar(b byte) error {
	if c.networked() {
		return c.net.PutChar(b)
	}
	return c.serial.WriteByte(b)
}

// WriteChars writes p to the active transport and returns how many bytes were
// accepted before the first failure.
func (c *Console) WriteChars(p []byte) (int, error) {
	if c.networked() {
		return c.net.PutChars(p)
	}
	n, err := c.serial.Write(p)
	if err != nil {
		c.log.Debug("serial write incomplete", zap.Int("written", n), zap.Int("len", len(p)), zap.Error(err))
	}
	return n, err
}

// Write makes Console an io.Writer over WriteChars.
func (c *Console) Write(p []byte) (int, error) { return c.WriteChars(p) }

// EchoChar acknowledges an input byte to its source. A serial terminal gets
// every byte back. A network peer echoes locally, so it only gets Ack when a
// line ends.
func (c *Console) EchoChar(b byte) error {
	if c.networked() {
		if b != '\n' {
			return nil
		}
		_, err := c.net.PutChars(Ack)
		return err
	}
	return c.serial.WriteByte(b)
}

// DebugWrite sends p to the debug channel and returns how much got through.
func (c *Console) DebugWrite(p []byte) int {
	n, _ := c.debug.Write(p)
	return n
}
