package miio

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// tokenLength is the length of a hex-encoded miio device token.
const tokenLength = 32

// Config is the root configuration for the miio bridge.
// Loaded from YAML with environment variable overrides.
type Config struct {
	Bridge      BridgeConfig      `yaml:"bridge"`
	Device      DeviceConfig      `yaml:"device"`
	Accessories AccessoriesConfig `yaml:"accessories"`
}

// BridgeConfig contains bridge identity and operational settings.
type BridgeConfig struct {
	// ID identifies this bridge in health messages.
	ID string `yaml:"id"`

	// HealthInterval is how often to publish health status (seconds).
	// Default: 30 seconds.
	HealthInterval int `yaml:"health_interval"`
}

// DeviceConfig describes the purifier and how calls reach it.
type DeviceConfig struct {
	// ID names the device in relay topics.
	ID string `yaml:"id"`

	// IP is the device address on the local network.
	IP string `yaml:"ip"`

	// Token is the 32 hex character device token.
	// WARNING: Never log this value. Use String() for safe logging.
	Token string `yaml:"token"`

	// Type is informational (e.g. "MiAirPurifier2").
	Type string `yaml:"type"`

	// CallTimeout bounds a single device call (seconds). Default: 5.
	CallTimeout int `yaml:"call_timeout"`

	// RateLimit caps device calls per second. 0 disables pacing.
	RateLimit float64 `yaml:"rate_limit"`

	// RateBurst is the number of calls allowed back to back. Default: 1.
	RateBurst int `yaml:"rate_burst"`
}

// String returns a string representation with the token masked.
func (d DeviceConfig) String() string {
	token := ""
	if d.Token != "" {
		token = "[REDACTED]"
	}
	return fmt.Sprintf("DeviceConfig{ID:%q, IP:%q, Token:%s, Type:%q}", d.ID, d.IP, token, d.Type)
}

// MarshalJSON implements json.Marshaler to redact the token.
func (d DeviceConfig) MarshalJSON() ([]byte, error) {
	type redacted DeviceConfig
	safe := redacted(d)
	if safe.Token != "" {
		safe.Token = "[REDACTED]"
	}
	return json.Marshal(safe)
}

// AccessoriesConfig holds the display names and disable flags. An accessory
// is built only when it is not disabled and its name is not blank.
type AccessoriesConfig struct {
	AirPurifierDisable        bool   `yaml:"air_purifier_disable"`
	AirPurifierName           string `yaml:"air_purifier_name"`
	AirPurifierSilentModeName string `yaml:"air_purifier_silent_mode_name"`

	TemperatureDisable bool   `yaml:"temperature_disable"`
	TemperatureName    string `yaml:"temperature_name"`

	HumidityDisable bool   `yaml:"humidity_disable"`
	HumidityName    string `yaml:"humidity_name"`

	BuzzerSwitchDisable bool   `yaml:"buzzer_switch_disable"`
	BuzzerSwitchName    string `yaml:"buzzer_switch_name"`

	LEDBulbDisable bool   `yaml:"led_bulb_disable"`
	LEDBulbName    string `yaml:"led_bulb_name"`

	AirQualityDisable bool   `yaml:"air_quality_disable"`
	AirQualityName    string `yaml:"air_quality_name"`
}

func enabled(disable bool, names ...string) bool {
	if disable {
		return false
	}
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			return false
		}
	}
	return true
}

// AirPurifierEnabled also requires the silent mode switch name.
func (a AccessoriesConfig) AirPurifierEnabled() bool {
	return enabled(a.AirPurifierDisable, a.AirPurifierName, a.AirPurifierSilentModeName)
}

func (a AccessoriesConfig) TemperatureEnabled() bool {
	return enabled(a.TemperatureDisable, a.TemperatureName)
}

func (a AccessoriesConfig) HumidityEnabled() bool {
	return enabled(a.HumidityDisable, a.HumidityName)
}

func (a AccessoriesConfig) BuzzerSwitchEnabled() bool {
	return enabled(a.BuzzerSwitchDisable, a.BuzzerSwitchName)
}

func (a AccessoriesConfig) LEDBulbEnabled() bool {
	return enabled(a.LEDBulbDisable, a.LEDBulbName)
}

func (a AccessoriesConfig) AirQualityEnabled() bool {
	return enabled(a.AirQualityDisable, a.AirQualityName)
}

// LoadConfig reads configuration from a YAML file.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: AIRPURIFIER_MIIO_SECTION_KEY
// For example: AIRPURIFIER_MIIO_DEVICE_IP, AIRPURIFIER_MIIO_DEVICE_TOKEN
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:             "miio-bridge-01",
			HealthInterval: 30,
		},
		Device: DeviceConfig{
			ID:          "air-purifier-01",
			Type:        "MiAirPurifier2",
			CallTimeout: 5,
			RateBurst:   1,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AIRPURIFIER_MIIO_BRIDGE_ID"); v != "" {
		cfg.Bridge.ID = v
	}
	if v := os.Getenv("AIRPURIFIER_MIIO_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}
	if v := os.Getenv("AIRPURIFIER_MIIO_DEVICE_IP"); v != "" {
		cfg.Device.IP = v
	}
	if v := os.Getenv("AIRPURIFIER_MIIO_DEVICE_TOKEN"); v != "" {
		cfg.Device.Token = v
	}
	if v := os.Getenv("AIRPURIFIER_MIIO_DEVICE_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Device.RateLimit = f
		}
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	errs = append(errs, c.validateBridge()...)
	errs = append(errs, c.validateDevice()...)
	errs = append(errs, c.validateAccessories()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (c *Config) validateBridge() []string {
	var errs []string
	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}
	if c.Bridge.HealthInterval < 1 {
		errs = append(errs, "bridge.health_interval must be at least 1 second")
	}
	return errs
}

func (c *Config) validateDevice() []string {
	var errs []string
	d := c.Device

	if d.ID == "" {
		errs = append(errs, "device.id is required")
	} else if strings.ContainsAny(d.ID, "/+#") {
		errs = append(errs, fmt.Sprintf("device.id %q must not contain /, + or #", d.ID))
	}

	if d.IP == "" {
		errs = append(errs, "device.ip is required")
	} else if net.ParseIP(d.IP) == nil {
		errs = append(errs, fmt.Sprintf("device.ip %q is not a valid IP address", d.IP))
	}

	if d.Token == "" {
		errs = append(errs, "device.token is required")
	} else if _, err := hex.DecodeString(d.Token); err != nil || len(d.Token) != tokenLength {
		errs = append(errs, fmt.Sprintf("device.token must be %d hex characters", tokenLength))
	}

	if d.CallTimeout < 1 {
		errs = append(errs, "device.call_timeout must be at least 1 second")
	}
	if d.RateLimit < 0 {
		errs = append(errs, "device.rate_limit must not be negative")
	}
	if d.RateLimit > 0 && d.RateBurst < 1 {
		errs = append(errs, "device.rate_burst must be at least 1 when rate_limit is set")
	}
	return errs
}

func (c *Config) validateAccessories() []string {
	a := c.Accessories
	if a.AirPurifierEnabled() || a.TemperatureEnabled() || a.HumidityEnabled() ||
		a.BuzzerSwitchEnabled() || a.LEDBulbEnabled() || a.AirQualityEnabled() {
		return nil
	}
	return []string{"accessories: at least one accessory must be enabled with a name"}
}

// GetHealthInterval returns the health reporting interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Bridge.HealthInterval) * time.Second
}

// GetCallTimeout returns the device call timeout as a Duration.
func (c *Config) GetCallTimeout() time.Duration {
	return time.Duration(c.Device.CallTimeout) * time.Second
}
