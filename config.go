package dfu

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete harness configuration.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Transfer TransferConfig `yaml:"transfer"`
	Sim      SimConfig      `yaml:"sim"`
}

// LogConfig selects the logger level, format and destination.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
	File   string `yaml:"file"`   // empty for stderr
}

// TransferConfig tunes how the Controller talks to the device.
type TransferConfig struct {
	PacketSize       int           `yaml:"packet_size"`
	SendTries        int           `yaml:"send_tries"`
	SendInterval     time.Duration `yaml:"send_interval"`
	PacketsPerSecond float64       `yaml:"packets_per_second"` // 0 is unlimited
	ResponseTimeout  time.Duration `yaml:"response_timeout"`
	SilencePeriod    time.Duration `yaml:"silence_period"`
	ReceiptInterval  uint16        `yaml:"receipt_interval"` // 0 disables receipt notifications
	StallDuration    time.Duration `yaml:"stall_duration"`
}

// SimConfig configures the simulated bootloader.
type SimConfig struct {
	Name              string        `yaml:"name"`
	MaxImageSize      uint32        `yaml:"max_image_size"`
	InactivityTimeout time.Duration `yaml:"inactivity_timeout"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Transfer: DefaultTransferConfig(),
		Sim: SimConfig{
			Name:              "DfuTarg",
			MaxImageSize:      0x18000,
			InactivityTimeout: 60 * time.Second,
		},
	}
}

// DefaultTransferConfig returns the transfer settings of DefaultConfig.
func DefaultTransferConfig() TransferConfig {
	return TransferConfig{
		PacketSize:      PacketSize,
		SendTries:       1,
		ResponseTimeout: 8 * time.Second,
		SilencePeriod:   time.Second,
		StallDuration:   62 * time.Second,
	}
}

// LoadConfig reads a YAML config file over the defaults and applies DFU_*
// environment overrides. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	ApplyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps DFU_* environment variables to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DFU_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("DFU_RESPONSE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Transfer.ResponseTimeout = d
		}
	}
	if v := os.Getenv("DFU_SEND_TRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Transfer.SendTries = n
		}
	}
	if v := os.Getenv("DFU_RECEIPT_INTERVAL"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 16); err == nil {
			cfg.Transfer.ReceiptInterval = uint16(n)
		}
	}
}

// Validate checks the configuration for values the harness cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	if err := c.Transfer.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Validate checks the transfer settings.
func (t TransferConfig) Validate() error {
	var errs []error
	if t.PacketSize <= 0 || t.PacketSize > 512 {
		errs = append(errs, fmt.Errorf("transfer.packet_size: %d out of range", t.PacketSize))
	}
	if t.SendTries < 1 {
		errs = append(errs, fmt.Errorf("transfer.send_tries: must be at least 1"))
	}
	if t.ResponseTimeout <= 0 {
		errs = append(errs, fmt.Errorf("transfer.response_timeout: must be positive"))
	}
	if t.PacketsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("transfer.packets_per_second: must not be negative"))
	}
	return errors.Join(errs...)
}
