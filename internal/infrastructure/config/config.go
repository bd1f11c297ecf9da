package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when the configuration cannot be used.
// The process must not start with an invalid configuration.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the root configuration structure for eltako2mqtt.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Eltako    EltakoConfig    `yaml:"eltako"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// EltakoConfig contains MiniSafe2 gateway connection settings.
// Durations are in seconds.
type EltakoConfig struct {
	Host           string `yaml:"host"`
	Password       string `yaml:"password"`
	PollInterval   int    `yaml:"poll_interval"`
	PollTimeout    int    `yaml:"poll_timeout"`
	CommandTimeout int    `yaml:"command_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Namespace string              `yaml:"namespace"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// BridgeConfig contains command/state translation settings.
type BridgeConfig struct {
	DiscoveryPrefix string `yaml:"discovery_prefix"`
	HubStatusTopic  string `yaml:"hub_status_topic"`

	// DebounceWindow is in seconds and may be fractional (default 1.5).
	DebounceWindow  float64  `yaml:"debounce_window"`
	DebounceClasses []string `yaml:"debounce_classes"`

	// DimmerScale selects how numeric dimmer payloads are read:
	// "brightness" (0..255) or "auto" (0..100 percent, 101..255 brightness).
	DimmerScale string `yaml:"dimmer_scale"`

	// RemovalPolicy is "keep" or "prune".
	RemovalPolicy string `yaml:"removal_policy"`

	HealthInterval int `yaml:"health_interval"`
	QueueSize      int `yaml:"queue_size"`
}

// APIConfig contains local HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains rotating log file settings, used when Output is "file".
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Load reads configuration from a YAML file and applies environment overrides.
//
// Environment variables take precedence over file values, using the
// ELTAKO2MQTT_ prefix (e.g. ELTAKO2MQTT_ELTAKO_PASSWORD).
//
// Every returned error wraps ErrInvalidConfig.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading config file: %w", ErrInvalidConfig, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing config file: %w", ErrInvalidConfig, err)
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
		Eltako: EltakoConfig{
			PollInterval:   15,
			PollTimeout:    10,
			CommandTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "eltako2mqtt",
			},
			QoS:       1,
			Namespace: "eltako",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Bridge: BridgeConfig{
			DiscoveryPrefix: "homeassistant",
			HubStatusTopic:  "homeassistant/status",
			DebounceWindow:  1.5,
			DebounceClasses: []string{"dimmer"},
			DimmerScale:     "brightness",
			RemovalPolicy:   "keep",
			HealthInterval:  30,
			QueueSize:       64,
		},
		API: APIConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    8099,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				Path:       "./logs/eltako2mqtt.log",
				MaxSize:    10,
				MaxBackups: 5,
				MaxAge:     28,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Gateway
	if v := os.Getenv("ELTAKO2MQTT_ELTAKO_HOST"); v != "" {
		cfg.Eltako.Host = v
	}
	if v := os.Getenv("ELTAKO2MQTT_ELTAKO_PASSWORD"); v != "" {
		cfg.Eltako.Password = v
	}

	// MQTT
	if v := os.Getenv("ELTAKO2MQTT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ELTAKO2MQTT_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("ELTAKO2MQTT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("ELTAKO2MQTT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("ELTAKO2MQTT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("ELTAKO2MQTT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
// All problems are reported together in a single error wrapping ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []string

	// Gateway
	if strings.TrimSpace(c.Eltako.Host) == "" {
		errs = append(errs, "eltako.host is required")
	}
	if c.Eltako.PollInterval < 1 {
		errs = append(errs, "eltako.poll_interval must be at least 1 second")
	}
	if c.Eltako.PollTimeout < 1 {
		errs = append(errs, "eltako.poll_timeout must be at least 1 second")
	}
	if c.Eltako.CommandTimeout < 1 {
		errs = append(errs, "eltako.command_timeout must be at least 1 second")
	}

	// MQTT
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if !validTopicSegment(c.MQTT.Namespace) {
		errs = append(errs, "mqtt.namespace must be a non-empty topic segment without wildcards")
	}

	// Bridge
	if !validTopicSegment(c.Bridge.DiscoveryPrefix) {
		errs = append(errs, "bridge.discovery_prefix must be a non-empty topic segment without wildcards")
	}
	if c.Bridge.DebounceWindow < 0 {
		errs = append(errs, "bridge.debounce_window must not be negative")
	}
	for _, class := range c.Bridge.DebounceClasses {
		switch strings.ToLower(strings.TrimSpace(class)) {
		case "dimmer", "switch", "blind":
		default:
			errs = append(errs, fmt.Sprintf("bridge.debounce_classes: unsupported class %q", class))
		}
	}
	switch c.Bridge.DimmerScale {
	case "brightness", "auto":
	default:
		errs = append(errs, `bridge.dimmer_scale must be "brightness" or "auto"`)
	}
	switch c.Bridge.RemovalPolicy {
	case "keep", "prune":
	default:
		errs = append(errs, `bridge.removal_policy must be "keep" or "prune"`)
	}
	if c.Bridge.HealthInterval < 1 {
		errs = append(errs, "bridge.health_interval must be at least 1 second")
	}
	if c.Bridge.QueueSize < 1 {
		errs = append(errs, "bridge.queue_size must be at least 1")
	}

	// API
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// InfluxDB
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// Logging
	switch c.Logging.Output {
	case "stdout", "stderr":
	case "file":
		if c.Logging.File.Path == "" {
			errs = append(errs, "logging.file.path is required when logging.output is file")
		}
	default:
		errs = append(errs, `logging.output must be "stdout", "stderr" or "file"`)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: configuration errors: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

func validTopicSegment(s string) bool {
	return s != "" && !strings.ContainsAny(s, "+#")
}

// seconds converts a whole-second config value to a Duration.
func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// GetPollInterval returns the gateway poll interval.
func (c *Config) GetPollInterval() time.Duration { return seconds(c.Eltako.PollInterval) }

// GetPollTimeout returns the timeout for a single poll.
func (c *Config) GetPollTimeout() time.Duration { return seconds(c.Eltako.PollTimeout) }

// GetCommandTimeout returns the timeout for a single gateway command.
func (c *Config) GetCommandTimeout() time.Duration { return seconds(c.Eltako.CommandTimeout) }

// GetDebounceWindow returns the debounce window.
func (c *Config) GetDebounceWindow() time.Duration {
	return time.Duration(c.Bridge.DebounceWindow * float64(time.Second))
}

// GetHealthInterval returns the health reporting interval.
func (c *Config) GetHealthInterval() time.Duration { return seconds(c.Bridge.HealthInterval) }

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration { return seconds(c.API.Timeouts.Read) }

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration { return seconds(c.API.Timeouts.Write) }

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration { return seconds(c.API.Timeouts.Idle) }
