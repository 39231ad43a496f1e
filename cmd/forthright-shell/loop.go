//go:build linux
// +build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/niclash/forthright/console"
	"github.com/niclash/forthright/serial"
	"github.com/niclash/forthright/tcpshell"
)

const version = "0.1"

const banner = "    Forthright ver " + version + "\n\n"

// loop stands in for the interpreter: it polls the console, acknowledges
// input and handles a few host words. Any other line goes to the debug port.
type loop struct {
	con   *console.Console
	dbg   *serial.Debug
	shell *tcpshell.Transport // nil when the network shell is disabled
	poll  time.Duration
	log   *zap.Logger
}

func (l *loop) run(ctx context.Context) error {
	l.reply(banner)

	buf := make([]byte, 64)
	var line []byte
	for {
		n, err := console.WaitRead(ctx, l.con, buf, l.poll)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		for _, c := range buf[:n] {
			if err := l.con.EchoChar(c); err != nil {
				l.log.Debug("echo failed", zap.Error(err))
			}
			switch c {
			case '\r':
			case '\n':
				l.execute(string(line))
				line = line[:0]
			default:
				line = append(line, c)
			}
		}
	}
}

func (l *loop) execute(line string) {
	switch strings.ToUpper(strings.TrimSpace(line)) {
	case "":
	case "DEBUG_ON":
		l.dbg.SetEnabled(true)
	case "DEBUG_OFF":
		l.dbg.SetEnabled(false)
	case "STATS":
		if l.shell == nil {
			l.reply("network disabled\n")
			return
		}
		st := l.shell.Stats()
		l.reply(fmt.Sprintf("received %d dropped %d segments %d sent %d\n", st.Received, st.Dropped, st.Segments, st.Sent))
	default:
		l.con.DebugWrite([]byte("[shell] " + line + "\n"))
	}
}

func (l *loop) reply(s string) {
	if n, err := l.con.WriteChars([]byte(s)); err != nil {
		l.log.Warn("console write failed", zap.Int("written", n), zap.Int("len", len(s)), zap.Error(err))
	}
}
