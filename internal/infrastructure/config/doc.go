// Package config loads the bridge configuration.
//
// Load reads a YAML file, fills defaults for anything left unset, applies
// ELTAKO2MQTT_* environment overrides and validates the result. Every
// failure wraps ErrInvalidConfig.
//
// Keep the gateway password and broker credentials out of the file where
// possible: ELTAKO2MQTT_ELTAKO_PASSWORD and ELTAKO2MQTT_MQTT_PASSWORD take
// precedence over the YAML values.
package config
