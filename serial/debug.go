package serial

import (
	"io"

	"go.uber.org/atomic"
)

// Debug is a best-effort diagnostics output over its own device. Output that
// the device cannot take right away is discarded; Debug never blocks the
// caller and never queues.
type Debug struct {
	dev     io.ByteWriter
	enabled *atomic.Bool
	dropped *atomic.Uint64
}

// NewDebug returns an enabled Debug channel writing to dev. A nil dev yields a
// channel that discards everything.
func NewDebug(dev io.ByteWriter) *Debug {
	return &Debug{
		dev:     dev,
		enabled: atomic.NewBool(true),
		dropped: atomic.NewUint64(0),
	}
}

// SetEnabled switches the channel on or off.
func (d *Debug) SetEnabled(on bool) { d.enabled.Store(on) }

// Enabled reports whether output is currently passed to the device.
func (d *Debug) Enabled() bool { return d.enabled.Load() }

// Dropped returns the number of bytes discarded so far.
func (d *Debug) Dropped() uint64 { return d.dropped.Load() }

// Write sends p one byte at a time and returns at the first byte the device
// refuses. The returned error is always nil; n reports how much got through.
func (d *Debug) Write(p []byte) (int, error) {
	if d.dev == nil || !d.enabled.Load() {
		d.dropped.Add(uint64(len(p)))
		return 0, nil
	}
	for i, c := range p {
		if err := d.dev.WriteByte(c); err != nil {
			d.dropped.Add(uint64(len(p) - i))
			return i, nil
		}
	}
	return len(p), nil
}
