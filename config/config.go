// Package config provides YAML-based configuration loading for the Forthright shell.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/niclash/forthright/tcpshell"
)

// Config is the root application configuration.
type Config struct {
	// Log holds logging configuration
	Log LogConfig `mapstructure:"log"`

	// Serial is the primary wired console
	Serial SerialConfig `mapstructure:"serial"`

	// Debug is the secondary port for diagnostics
	Debug DebugConfig `mapstructure:"debug"`

	// Network is the TCP shell
	Network NetworkConfig `mapstructure:"network"`

	// Shell controls the interpreter-side read loop
	Shell ShellConfig `mapstructure:"shell"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: list of outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`

	// Rotation controls file rotation when writing to files
	Rotation RotationConfig `mapstructure:"rotation"`
	// Development toggles development-friendly logging options
	Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// SerialConfig selects the console tty.
type SerialConfig struct {
	Device   string `mapstructure:"device"`
	BaudRate int    `mapstructure:"baud_rate"`
}

// DebugConfig selects the debug tty. An empty device discards debug output.
type DebugConfig struct {
	Device   string `mapstructure:"device"`
	BaudRate int    `mapstructure:"baud_rate"`
	Enabled  bool   `mapstructure:"enabled"`
}

// NetworkConfig configures the TCP shell.
type NetworkConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Addr           string        `mapstructure:"addr"`
	QueueSize      int           `mapstructure:"queue_size"`
	EnqueueTimeout time.Duration `mapstructure:"enqueue_timeout"`
	DequeueTimeout time.Duration `mapstructure:"dequeue_timeout"`
	PacketSize     int           `mapstructure:"packet_size"`
	Welcome        string        `mapstructure:"welcome"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
}

// ShellConfig controls how the interpreter waits for input.
type ShellConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			Outputs:     []string{"stderr"},
			Development: false,
			Rotation: RotationConfig{
				Enable:     false,
				Filename:   "logs/forthright.log",
				MaxSizeMB:  10,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
		Serial: SerialConfig{
			Device:   "/dev/ttyUSB0",
			BaudRate: 115200,
		},
		Debug: DebugConfig{
			BaudRate: 115200,
			Enabled:  true,
		},
		Network: NetworkConfig{
			Enabled:        true,
			Addr:           tcpshell.DefaultAddr,
			QueueSize:      tcpshell.DefaultQueueSize,
			EnqueueTimeout: tcpshell.DefaultEnqueueTimeout,
			DequeueTimeout: tcpshell.DefaultDequeueTimeout,
			PacketSize:     tcpshell.DefaultPacketSize,
			Welcome:        tcpshell.DefaultWelcome,
			IdleTimeout:    tcpshell.DefaultIdleTimeout,
		},
		Shell: ShellConfig{
			PollInterval: 5 * time.Millisecond,
		},
	}
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment overrides.
// Environment variables use the prefix FORTHRIGHT and `.`/`-` are replaced with `_`.
// Example: FORTHRIGHT_NETWORK_ADDR=:2323
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("FORTHRIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults for viper so env-only configs work
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
	v.SetDefault("serial.device", cfg.Serial.Device)
	v.SetDefault("serial.baud_rate", cfg.Serial.BaudRate)
	v.SetDefault("debug.device", cfg.Debug.Device)
	v.SetDefault("debug.baud_rate", cfg.Debug.BaudRate)
	v.SetDefault("debug.enabled", cfg.Debug.Enabled)
	v.SetDefault("network.enabled", cfg.Network.Enabled)
	v.SetDefault("network.addr", cfg.Network.Addr)
	v.SetDefault("network.queue_size", cfg.Network.QueueSize)
	v.SetDefault("network.enqueue_timeout", cfg.Network.EnqueueTimeout)
	v.SetDefault("network.dequeue_timeout", cfg.Network.DequeueTimeout)
	v.SetDefault("network.packet_size", cfg.Network.PacketSize)
	v.SetDefault("network.welcome", cfg.Network.Welcome)
	v.SetDefault("network.idle_timeout", cfg.Network.IdleTimeout)
	v.SetDefault("shell.poll_interval", cfg.Shell.PollInterval)

	// Choose config file
	if path == "" {
		// Allow override via env var
		if envPath := os.Getenv("FORTHRIGHT_CONFIG"); envPath != "" {
			path = envPath
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Search common locations with base name `forthright`
		v.SetConfigName("forthright")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".forthright"))
		}
	}

	// Read config file if present; if not found, continue with defaults/env
	if err := v.ReadInConfig(); err != nil {
		var viperConfigFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &viperConfigFileNotFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	lvl := strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch lvl {
	case "debug", "info", "warn", "warning", "error":
		// ok
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}

	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}
	if strings.TrimSpace(c.Serial.Device) == "" {
		return errors.New("serial.device is required")
	}
	if c.Network.Enabled {
		if strings.TrimSpace(c.Network.Addr) == "" {
			return errors.New("network.addr is required when network.enabled")
		}
		if c.Network.QueueSize <= 0 {
			return fmt.Errorf("invalid network.queue_size: %d", c.Network.QueueSize)
		}
		if c.Network.PacketSize <= 0 {
			return fmt.Errorf("invalid network.packet_size: %d", c.Network.PacketSize)
		}
		if c.Network.EnqueueTimeout <= 0 || c.Network.DequeueTimeout <= 0 {
			return errors.New("network enqueue/dequeue timeouts must be positive")
		}
	}
	return nil
}

