package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gear6io/dspbridge/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the bridge configuration
type Config struct {
	Log    LogConfig    `yaml:"log" toml:"log"`
	Bridge BridgeConfig `yaml:"bridge" toml:"bridge"`
	Admin  AdminConfig  `yaml:"admin" toml:"admin"`
	Dsp    DspConfig    `yaml:"dsp" toml:"dsp"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level      string `yaml:"level" toml:"level"`
	Format     string `yaml:"format" toml:"format"`           // "json", "console" or "auto"
	FilePath   string `yaml:"file_path" toml:"file_path"`     // Path to log file
	Console    bool   `yaml:"console" toml:"console"`         // Whether to log to console
	MaxSize    int    `yaml:"max_size" toml:"max_size"`       // Max file size in MB
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"` // Max number of backup files
	MaxAge     int    `yaml:"max_age" toml:"max_age"`         // Max age in days
	Cleanup    bool   `yaml:"cleanup" toml:"cleanup"`         // Whether to cleanup log file on startup
}

// BridgeConfig configures the SigmaStudio-facing TCP listener
type BridgeConfig struct {
	Address         string `yaml:"address" toml:"address"`
	Port            int    `yaml:"port" toml:"port"`
	MaxPayloadBytes uint32 `yaml:"max_payload_bytes" toml:"max_payload_bytes"`
	UnknownCommands string `yaml:"unknown_commands" toml:"unknown_commands"` // "ignore" or "close"
	QueueSize       int    `yaml:"queue_size" toml:"queue_size"`
}

// AdminConfig configures the REST API
type AdminConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Address string `yaml:"address" toml:"address"`
	Port    int    `yaml:"port" toml:"port"`
}

// DspConfig describes the chip and how it is wired
type DspConfig struct {
	Type          string               `yaml:"type" toml:"type"`
	Protocol      string               `yaml:"protocol" toml:"protocol"`
	BusNumber     int                  `yaml:"bus_number" toml:"bus_number"`
	DeviceAddress int                  `yaml:"device_address" toml:"device_address"`
	SPISpeedHz    int64                `yaml:"spi_speed_hz" toml:"spi_speed_hz"`
	Pins          map[string]PinConfig `yaml:"pins" toml:"pins"`
}

// PinConfig describes one GPIO line. Fields apply per mode.
type PinConfig struct {
	Mode   string `yaml:"mode" toml:"mode"`
	Number int    `yaml:"number" toml:"number"`

	// output
	InitialState bool `yaml:"initial_state" toml:"initial_state"`
	ActiveHigh   bool `yaml:"active_high" toml:"active_high"`

	// input
	PullUp      bool    `yaml:"pull_up" toml:"pull_up"`
	ActiveState bool    `yaml:"active_state" toml:"active_state"`
	BounceTime  float64 `yaml:"bounce_time" toml:"bounce_time"` // seconds, 0 disables debouncing
}

// LoadDefaultConfig returns a default configuration
func LoadDefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:      "info",
			Format:     "auto",
			FilePath:   "logs/dspbridge.log",
			Console:    true,
			MaxSize:    10, // 10MB
			MaxBackups: 3,
			MaxAge:     7, // 7 days
			Cleanup:    false,
		},
		Bridge: BridgeConfig{
			Address:         DEFAULT_BRIDGE_ADDRESS,
			Port:            DEFAULT_BRIDGE_PORT,
			MaxPayloadBytes: DEFAULT_MAX_PAYLOAD_BYTES,
			UnknownCommands: UnknownCommandsIgnore,
			QueueSize:       DEFAULT_QUEUE_SIZE,
		},
		Admin: AdminConfig{
			Enabled: true,
			Address: LOCALHOST_ADDRESS,
			Port:    DEFAULT_ADMIN_PORT,
		},
		Dsp: DspConfig{
			Type:          DspTypeADAU14xx,
			Protocol:      ProtocolSPI,
			BusNumber:     0,
			DeviceAddress: 0,
			SPISpeedHz:    DEFAULT_SPI_SPEED_HZ,
			Pins:          map[string]PinConfig{},
		},
	}
}

// LoadConfig loads configuration from a YAML or TOML file. Settings missing
// from the file keep their defaults.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.New(ErrConfigFileReadFailed, "failed to read config file", err).AddContext("path", filename)
	}

	cfg := LoadDefaultConfig()
	if isTOML(filename) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, errors.New(ErrConfigFileParseFailed, "failed to parse TOML config file", err).AddContext("path", filename)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.New(ErrConfigFileParseFailed, "failed to parse config file", err).AddContext("path", filename)
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, errors.New(ErrConfigValidationFailed, "configuration validation failed", err).AddContext("path", filename)
	}

	return cfg, nil
}

// SaveConfig saves configuration to a file, TOML when the extension says so
func SaveConfig(cfg *Config, filename string) error {
	var data []byte
	var err error
	if isTOML(filename) {
		var sb strings.Builder
		err = toml.NewEncoder(&sb).Encode(cfg)
		data = []byte(sb.String())
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return errors.New(ErrConfigFileMarshalFailed, "failed to marshal config", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return errors.New(ErrConfigFileWriteFailed, "failed to write config file", err).AddContext("path", filename)
	}

	return nil
}

func isTOML(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".toml")
}

// ApplyEnv overrides settings from DSPBRIDGE_* environment variables
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvDspProtocol)); v != "" {
		c.Dsp.Protocol = strings.ToLower(v)
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Bridge.Validate(); err != nil {
		return err
	}
	if err := c.Admin.Validate(); err != nil {
		return err
	}
	return c.Dsp.Validate()
}

// Validate validates the bridge listener settings
func (b *BridgeConfig) Validate() error {
	if !IsValidPort(b.Port) {
		return errors.New(ErrInvalidPort, fmt.Sprintf("bridge port %d out of range", b.Port), nil)
	}
	switch b.UnknownCommands {
	case UnknownCommandsIgnore, UnknownCommandsClose:
	default:
		return errors.New(ErrInvalidUnknownPolicy, fmt.Sprintf("unknown_commands must be %q or %q, got %q", UnknownCommandsIgnore, UnknownCommandsClose, b.UnknownCommands), nil)
	}
	if b.MaxPayloadBytes == 0 {
		return errors.New(ErrMissingSetting, "bridge.max_payload_bytes must be positive", nil)
	}
	return nil
}

// Validate validates the admin API settings
func (a *AdminConfig) Validate() error {
	if a.Enabled && !IsValidPort(a.Port) {
		return errors.New(ErrInvalidPort, fmt.Sprintf("admin port %d out of range", a.Port), nil)
	}
	return nil
}

// Validate validates the chip wiring. Unsupported settings are fatal at
// startup, never per request.
func (d *DspConfig) Validate() error {
	if d.Type == "" {
		return errors.New(ErrMissingSetting, "dsp.type is required", nil)
	}
	switch d.Type {
	case DspTypeADAU14xx, DspTypeADAU1701:
	default:
		return errors.New(ErrUnsupportedDspType, fmt.Sprintf("unsupported dsp type %q", d.Type), nil)
	}

	if d.Protocol == "" {
		return errors.New(ErrMissingSetting, "dsp.protocol is required", nil)
	}
	switch d.Protocol {
	case ProtocolI2C:
		if d.DeviceAddress <= 0 || d.DeviceAddress > 0x7F {
			return errors.New(ErrMissingSetting, "dsp.device_address must be a 7-bit i2c address", nil)
		}
	case ProtocolSPI:
		if d.DeviceAddress < 0 {
			return errors.New(ErrMissingSetting, "dsp.device_address must be a chip select number", nil)
		}
	case ProtocolMemory:
	default:
		return errors.New(ErrUnsupportedProtocol, fmt.Sprintf("unsupported bus protocol %q", d.Protocol), nil)
	}

	for _, name := range d.PinNames() {
		if err := d.Pins[name].Validate(); err != nil {
			return errors.New(ErrInvalidPin, fmt.Sprintf("pin %q is invalid", name), err)
		}
	}
	return nil
}

// PinNames returns the configured pin names in stable order
func (d *DspConfig) PinNames() []string {
	names := make([]string, 0, len(d.Pins))
	for name := range d.Pins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate validates a single pin definition
func (p PinConfig) Validate() error {
	switch p.Mode {
	case PinModeInput, PinModeOutput:
	default:
		return errors.New(ErrInvalidPin, fmt.Sprintf("mode must be %q or %q, got %q", PinModeInput, PinModeOutput, p.Mode), nil)
	}
	if p.Number < 0 {
		return errors.New(ErrInvalidPin, fmt.Sprintf("pin number %d is negative", p.Number), nil)
	}
	if p.BounceTime < 0 {
		return errors.New(ErrInvalidPin, "bounce_time must not be negative", nil)
	}
	return nil
}

// GetBridgeAddress returns host:port of the SigmaStudio listener
func (c *Config) GetBridgeAddress() string {
	return fmt.Sprintf("%s:%d", c.Bridge.Address, c.Bridge.Port)
}

// GetAdminAddress returns host:port of the REST API
func (c *Config) GetAdminAddress() string {
	return fmt.Sprintf("%s:%d", c.Admin.Address, c.Admin.Port)
}
