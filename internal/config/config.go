package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings of the controller daemon.
type Config struct {
	// GRPCAddress is the listen address of the gRPC command service.
	GRPCAddress string `yaml:"grpc_addr"`
	// HTTPAddress is the optional listen address of the HTTP command gateway.
	HTTPAddress string `yaml:"http_addr,omitempty"`
	// Serial configures the optional serial command terminal.
	Serial SerialConfig `yaml:"serial,omitempty"`
	// MQTT configures the optional MQTT command bridge.
	MQTT MQTTConfig `yaml:"mqtt,omitempty"`
	// Presets names the preset documents loaded at startup and on reload.
	Presets PresetsConfig `yaml:"presets"`
	// Guard configures guard re-evaluation.
	Guard GuardConfig `yaml:"guard"`
	// LockTimeout bounds the wait for exclusive access to the engine.
	LockTimeout time.Duration `yaml:"lock_timeout"`
	// IO selects and configures the hardware backend.
	IO IOConfig `yaml:"io"`
	// StateFile is the path to the JSON file storing group selections.
	StateFile string `yaml:"state_file"`
	// RestoreState re-applies persisted selections after the boot reset.
	RestoreState bool `yaml:"restore_state"`
	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
}

// SerialConfig configures the serial command terminal.
type SerialConfig struct {
	// Device is the serial device path; empty disables the terminal.
	Device string `yaml:"device,omitempty"`
	// Baud is the line speed.
	Baud int `yaml:"baud,omitempty"`
	// Echo writes typed characters back to the terminal.
	Echo bool `yaml:"echo,omitempty"`
}

// MQTTConfig configures the MQTT command bridge.
type MQTTConfig struct {
	// Broker is the broker URL (tcp://host:1883); empty disables the bridge.
	Broker string `yaml:"broker,omitempty"`
	// TopicPrefix prefixes every command, result and status topic.
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
	// ClientID identifies the controller at the broker.
	ClientID string `yaml:"client_id,omitempty"`
}

// PresetsConfig names the preset documents.
type PresetsConfig struct {
	// Pins is the pin document.
	Pins string `yaml:"pins"`
	// Buttons is the button document.
	Buttons string `yaml:"buttons"`
	// Fallback is the single combined document used when the primary pair fails.
	Fallback string `yaml:"fallback"`
}

// GuardConfig configures guard re-evaluation.
type GuardConfig struct {
	// Interval is the period of the background guard pass.
	Interval time.Duration `yaml:"interval"`
	// InputsOnly restricts the background pass to guards on input pins.
	InputsOnly *bool `yaml:"inputs_only,omitempty"`
	// Policy is either "reactive" or "strict".
	Policy string `yaml:"policy"`
}

// IOConfig selects and configures the hardware backend.
type IOConfig struct {
	// Backend is "memory" or "expander".
	Backend string `yaml:"backend"`
	// I2CBus is the I2C bus number of the port expanders.
	I2CBus int `yaml:"i2c_bus,omitempty"`
	// Expanders holds the expander addresses.
	Expanders ExpandersConfig `yaml:"expanders,omitempty"`
	// Inputs configures the input lines.
	Inputs InputsConfig `yaml:"inputs,omitempty"`
}

// ExpandersConfig holds the I2C device numbers of the port expanders.
type ExpandersConfig struct {
	// Mosfet drives the MOSFET bank.
	Mosfet uint8 `yaml:"mosfet"`
	// Relay drives the relay bank.
	Relay uint8 `yaml:"relay"`
	// OptoTTL drives the shared opto-coupler and TTL banks.
	OptoTTL uint8 `yaml:"opto_ttl"`
}

// InputsConfig configures the input lines.
type InputsConfig struct {
	// Driver is "none", "gpiocdev" or "periph".
	Driver string `yaml:"driver,omitempty"`
	// Chip is the GPIO character device used by the gpiocdev driver.
	Chip string `yaml:"chip,omitempty"`
	// Lines are the gpiocdev line offsets in input index order.
	Lines []int `yaml:"lines,omitempty"`
	// Pins are the periph pin names in input index order.
	Pins []string `yaml:"pins,omitempty"`
}

const (
	// DefaultConfigFilename is the default filename for daemon settings.
	DefaultConfigFilename = "antctrl-settings.yaml"
	// DefaultStateFilename is the default filename for persisted selections.
	DefaultStateFilename = "antctrl-state.json"
	// DefaultGRPCAddress is the default gRPC listen address.
	DefaultGRPCAddress = ":50051"
	// DefaultTopicPrefix is the default MQTT topic prefix.
	DefaultTopicPrefix = "antctrl"
	// DefaultPinsFile is the default pin document.
	DefaultPinsFile = "pins.conf"
	// DefaultButtonsFile is the default button document.
	DefaultButtonsFile = "buttons.conf"
	// DefaultFallbackFile is the default combined fallback document.
	DefaultFallbackFile = "buttons_simple.conf"
	// DefaultGuardInterval is the default period of the background guard pass.
	DefaultGuardInterval = 50 * time.Millisecond
	// DefaultLockTimeout is the default bound on the exclusive access wait.
	DefaultLockTimeout = 500 * time.Millisecond
	// DefaultBaud is the default serial line speed.
	DefaultBaud = 115200
	// DefaultLogLevel is the default minimum log level.
	DefaultLogLevel = "info"

	// PolicyReactive deactivates the guarded button after an activation.
	PolicyReactive = "reactive"
	// PolicyStrict refuses to activate a button whose guard is triggered.
	PolicyStrict = "strict"

	// BackendMemory keeps pin levels in memory.
	BackendMemory = "memory"
	// BackendExpander drives MCP23017 port expanders.
	BackendExpander = "expander"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownPolicy is returned for a guard policy other than reactive or strict.
	errUnknownPolicy = errors.New("unknown guard policy")
	// errUnknownBackend is returned for an I/O backend other than memory or expander.
	errUnknownBackend = errors.New("unknown io backend")
	// errUnknownInputDriver is returned for an unsupported input driver.
	errUnknownInputDriver = errors.New("unknown input driver")
)

// Default returns settings with every default applied.
func Default() *Config {
	cfg := new(Config)

	//nolint:errcheck // Defaults are always valid.
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks the settings for formatting errors.
//
//nolint:cyclop // A flat list of checks reads better than helpers.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.GRPCAddress == "" {
		cfg.GRPCAddress = DefaultGRPCAddress
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.GRPCAddress); err != nil {
		return fmt.Errorf("invalid grpc address: %w", err)
	}

	if cfg.HTTPAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", cfg.HTTPAddress); err != nil {
			return fmt.Errorf("invalid http address: %w", err)
		}
	}

	if cfg.Serial.Device != "" && cfg.Serial.Baud <= 0 {
		cfg.Serial.Baud = DefaultBaud
	}

	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = DefaultTopicPrefix
	}

	if cfg.Presets.Pins == "" {
		cfg.Presets.Pins = DefaultPinsFile
	}

	if cfg.Presets.Buttons == "" {
		cfg.Presets.Buttons = DefaultButtonsFile
	}

	if cfg.Presets.Fallback == "" {
		cfg.Presets.Fallback = DefaultFallbackFile
	}

	if cfg.Guard.Interval <= 0 {
		cfg.Guard.Interval = DefaultGuardInterval
	}

	if cfg.Guard.InputsOnly == nil {
		inputsOnly := true
		cfg.Guard.InputsOnly = &inputsOnly
	}

	switch cfg.Guard.Policy {
	case "":
		cfg.Guard.Policy = PolicyReactive
	case PolicyReactive, PolicyStrict:
	default:
		return fmt.Errorf("%w: %q", errUnknownPolicy, cfg.Guard.Policy)
	}

	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultLockTimeout
	}

	switch cfg.IO.Backend {
	case "":
		cfg.IO.Backend = BackendMemory
	case BackendMemory, BackendExpander:
	default:
		return fmt.Errorf("%w: %q", errUnknownBackend, cfg.IO.Backend)
	}

	if !slices.Contains([]string{"", "none", "gpiocdev", "periph"}, cfg.IO.Inputs.Driver) {
		return fmt.Errorf("%w: %q", errUnknownInputDriver, cfg.IO.Inputs.Driver)
	}

	if cfg.StateFile == "" {
		cfg.StateFile = DefaultStateFilename
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	return nil
}

// GuardInputsOnly reports whether the background guard pass is limited to input pins.
func (c *Config) GuardInputsOnly() bool {
	return c.Guard.InputsOnly == nil || *c.Guard.InputsOnly
}
