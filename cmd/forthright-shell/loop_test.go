//go:build linux
// +build linux

package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/niclash/forthright/config"
	"github.com/niclash/forthright/console"
	"github.com/niclash/forthright/serial"
	"github.com/niclash/forthright/tcpshell"
)

type bufSerial struct {
	in  []byte
	out bytes.Buffer
}

func (s *bufSerial) WriteByte(c byte) error { return s.out.WriteByte(c) }

func (s *bufSerial) Write(p []byte) (int, error) { return s.out.Write(p) }

func (s *bufSerial) ReadAvailable(p []byte) (int, error) {
	n := copy(p, s.in)
	s.in = s.in[n:]
	return n, nil
}

func runLoop(t *testing.T, input string, shell *tcpshell.Transport) (*bufSerial, *bytes.Buffer) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	ser := &bufSerial{in: []byte(input)}
	dbgOut := &bytes.Buffer{}
	dbg := serial.NewDebug(dbgOut)

	var netw console.Network
	if shell != nil {
		netw = shell
	}
	l := &loop{
		con:   console.New(netw, ser, dbg, logger),
		dbg:   dbg,
		shell: shell,
		poll:  time.Millisecond,
		log:   logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, l.run(ctx))
	return ser, dbgOut
}

func TestLoop_SerialEchoAndWords(t *testing.T) {
	ser, dbg := runLoop(t, "stats\r\nhello\nDEBUG_OFF\nhidden\n", nil)

	want := banner +
		"stats\r\n" + "network disabled\n" +
		"hello\n" +
		"DEBUG_OFF\n" +
		"hidden\n"
	require.Equal(t, want, ser.out.String())
	require.Equal(t, "[shell] hello\n", dbg.String())
}

func TestLoop_StatsWithShell(t *testing.T) {
	shell := tcpshell.New(tcpshell.Config{}, nil)
	t.Cleanup(func() { shell.Close() })

	ser, _ := runLoop(t, "STATS\n", shell)
	require.Contains(t, ser.out.String(), "received 0 dropped 0 segments 0 sent 0\n")
}

func TestOptions_Apply(t *testing.T) {
	cfg := config.Default()
	Options{Device: "/dev/ttyS3", Listen: ":2323", LogLevel: "debug", NoNetwork: true}.apply(cfg)
	require.Equal(t, "/dev/ttyS3", cfg.Serial.Device)
	require.Equal(t, ":2323", cfg.Network.Addr)
	require.Equal(t, "debug", cfg.Log.Level)
	require.False(t, cfg.Network.Enabled)

	cfg = config.Default()
	Options{}.apply(cfg)
	require.Equal(t, config.Default(), cfg)
}
