package eltako

import (
	"fmt"
	"time"

	"github.com/nerrad567/eltako2mqtt/internal/device"
	"github.com/nerrad567/eltako2mqtt/internal/infrastructure/config"
	"github.com/nerrad567/eltako2mqtt/internal/infrastructure/mqtt"
)

// Default values applied by Settings when a field is left zero.
const (
	DefaultPollInterval    = 15 * time.Second
	DefaultPollTimeout     = 10 * time.Second
	DefaultCommandTimeout  = 5 * time.Second
	DefaultHealthInterval  = 30 * time.Second
	DefaultQueueSize       = 64
	DefaultDiscoveryPrefix = "homeassistant"
	DefaultHubStatusTopic  = "homeassistant/status"
)

// Settings is the immutable configuration consumed by the bridge.
// Build it with SettingsFromConfig; the bridge never sees the config tree.
type Settings struct {
	Topics          mqtt.Topics
	DiscoveryPrefix string
	HubStatusTopic  string

	PollInterval   time.Duration
	PollTimeout    time.Duration
	CommandTimeout time.Duration

	// DebounceWindow of zero disables suppression.
	DebounceWindow  time.Duration
	DebounceClasses []device.Class

	DimmerScale   DimmerScale
	RemovalPolicy device.RemovalPolicy

	HealthInterval time.Duration
	QueueSize      int
	QoS            byte

	// GatewayHost is reported in health messages only.
	GatewayHost string
	Version     string
}

// SettingsFromConfig derives bridge settings from a validated configuration.
func SettingsFromConfig(cfg *config.Config, version string) (Settings, error) {
	scale, err := ParseDimmerScale(cfg.Bridge.DimmerScale)
	if err != nil {
		return Settings{}, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	policy, err := device.ParseRemovalPolicy(cfg.Bridge.RemovalPolicy)
	if err != nil {
		return Settings{}, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	classes := make([]device.Class, 0, len(cfg.Bridge.DebounceClasses))
	for _, name := range cfg.Bridge.DebounceClasses {
		c, ok := device.ClassFromName(name)
		if !ok {
			return Settings{}, fmt.Errorf("%w: unknown debounce class %q", config.ErrInvalidConfig, name)
		}
		classes = append(classes, c)
	}

	s := Settings{
		Topics:          mqtt.Topics{Namespace: cfg.MQTT.Namespace},
		DiscoveryPrefix: cfg.Bridge.DiscoveryPrefix,
		HubStatusTopic:  cfg.Bridge.HubStatusTopic,
		PollInterval:    cfg.GetPollInterval(),
		PollTimeout:     cfg.GetPollTimeout(),
		CommandTimeout:  cfg.GetCommandTimeout(),
		DebounceWindow:  cfg.GetDebounceWindow(),
		DebounceClasses: classes,
		DimmerScale:     scale,
		RemovalPolicy:   policy,
		HealthInterval:  cfg.GetHealthInterval(),
		QueueSize:       cfg.Bridge.QueueSize,
		QoS:             byte(cfg.MQTT.QoS), //nolint:gosec // validated to 0-2
		GatewayHost:     cfg.Eltako.Host,
		Version:         version,
	}
	return s.withDefaults(), nil
}

// withDefaults fills zero-valued fields. DebounceWindow and QoS are left
// alone since zero is meaningful for both.
func (s Settings) withDefaults() Settings {
	if s.DiscoveryPrefix == "" {
		s.DiscoveryPrefix = DefaultDiscoveryPrefix
	}
	if s.HubStatusTopic == "" {
		s.HubStatusTopic = DefaultHubStatusTopic
	}
	if s.PollInterval <= 0 {
		s.PollInterval = DefaultPollInterval
	}
	if s.PollTimeout <= 0 {
		s.PollTimeout = DefaultPollTimeout
	}
	if s.CommandTimeout <= 0 {
		s.CommandTimeout = DefaultCommandTimeout
	}
	if s.HealthInterval <= 0 {
		s.HealthInterval = DefaultHealthInterval
	}
	if s.QueueSize <= 0 {
		s.QueueSize = DefaultQueueSize
	}
	if s.DimmerScale == "" {
		s.DimmerScale = ScaleBrightness
	}
	if s.RemovalPolicy == "" {
		s.RemovalPolicy = device.RemovalKeep
	}
	return s
}
