//go:build linux
// +build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flags "github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/niclash/forthright/config"
	"github.com/niclash/forthright/console"
	"github.com/niclash/forthright/observability"
	"github.com/niclash/forthright/serial"
	"github.com/niclash/forthright/tcpshell"
)

// Options holds CLI options; set values override the config file.
type Options struct {
	Config    string `short:"c" long:"config" description:"Path to YAML config file"`
	Device    string `short:"d" long:"device" description:"Serial console device"`
	Listen    string `short:"l" long:"listen" description:"TCP shell listen address"`
	LogLevel  string `long:"log-level" description:"Log level (debug, info, warn, error)"`
	NoNetwork bool   `long:"no-network" description:"Serial console only"`
}

func main() {
	var opts Options
	if _, err := flags.Parse(&opts); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}
	os.Exit(run(opts))
}

func (o Options) apply(cfg *config.Config) {
	if o.Device != "" {
		cfg.Serial.Device = o.Device
	}
	if o.Listen != "" {
		cfg.Network.Addr = o.Listen
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.NoNetwork {
		cfg.Network.Enabled = false
	}
}

func run(opts Options) int {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	opts.apply(cfg)

	logger, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port, err := serial.Open(serial.Config{Device: cfg.Serial.Device, BaudRate: cfg.Serial.BaudRate})
	if err != nil {
		logger.Error("failed to open serial console", zap.String("device", cfg.Serial.Device), zap.Error(err))
		return 1
	}
	defer port.Close()

	dbg := serial.NewDebug(nil)
	if cfg.Debug.Device != "" {
		dport, err := serial.Open(serial.Config{Device: cfg.Debug.Device, BaudRate: cfg.Debug.BaudRate})
		if err != nil {
			logger.Warn("debug port unavailable, discarding debug output", zap.String("device", cfg.Debug.Device), zap.Error(err))
		} else {
			defer dport.Close()
			dbg = serial.NewDebug(dport)
		}
	}
	dbg.SetEnabled(cfg.Debug.Enabled)

	var (
		shell *tcpshell.Transport
		netw  console.Network
	)
	if cfg.Network.Enabled {
		shell = tcpshell.New(tcpshell.Config{
			Addr:           cfg.Network.Addr,
			QueueSize:      cfg.Network.QueueSize,
			EnqueueTimeout: cfg.Network.EnqueueTimeout,
			DequeueTimeout: cfg.Network.DequeueTimeout,
			PacketSize:     cfg.Network.PacketSize,
			Welcome:        cfg.Network.Welcome,
			IdleTimeout:    cfg.Network.IdleTimeout,
		}, logger)
		if err := shell.Listen(ctx); err != nil {
			logger.Error("failed to start network shell", zap.Error(err))
			return 1
		}
		defer shell.Close()
		netw = shell
	}

	con := console.New(netw, port, dbg, logger)
	logger.Info("forthright shell started",
		zap.String("serial", port.Name()),
		zap.Bool("network", cfg.Network.Enabled),
		zap.String("addr", cfg.Network.Addr))

	l := &loop{
		con:   con,
		dbg:   dbg,
		shell: shell,
		poll:  cfg.Shell.PollInterval,
		log:   logger,
	}
	if err := l.run(ctx); err != nil {
		logger.Error("console loop stopped", zap.Error(err))
		return 1
	}
	logger.Info("shutting down")
	return 0
}
