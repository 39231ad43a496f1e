// Package serial provides the wired side of the Forthright shell: a minimal,
// Linux-only serial port with unbuffered, non-blocking byte I/O, and a
// best-effort debug output channel.
//
// The interpreter polls the port from its own goroutine, so nothing in this
// package ever waits on the device:
//   - WriteByte transmits one byte or fails immediately
//   - Write stops at the first failed byte and reports how many went out
//   - ReadAvailable returns what is pending, or 0
//   - PTY-based tests for reliability
//
// This package does **not** support Windows.
//
// Example usage:
//
//	port, err := serial.Open(serial.Config{
//	    Device:   "/dev/ttyUSB0",
//	    BaudRate: 115200,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	buf := make([]byte, 64)
//	for {
//	    n, err := port.ReadAvailable(buf)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    if n == 0 {
//	        time.Sleep(5 * time.Millisecond)
//	        continue
//	    }
//	    port.Write(buf[:n])
//	}
//
// Debug wraps a second device (any io.ByteWriter, usually another Port) and
// discards whatever the device refuses instead of blocking:
//
//	dbg := serial.NewDebug(debugPort)
//	fmt.Fprintf(dbg, "stack depth %d\n", depth)
package serial
