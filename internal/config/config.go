// Package config holds the environment-overridable tunables named across
// spec.md §4.6/§4.7: scan window/interval, service-discovery timeout,
// command retry cap, PIN length, and RSSI bounds.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the set of tunables every Central/Peripheral constructed by
// this module reads from, unless the caller overrides a field directly.
type Config struct {
	// ScanWindow is how long a discovery session runs before the adapter
	// is paused, per §4.6 "Discovery scheduling" (daemon drops discovered
	// devices after ~10s of continuous discovery).
	ScanWindow time.Duration
	// ScanPause is how long discovery is paused between windows.
	ScanPause time.Duration
	// ServiceDiscoveryTimeout bounds how long Peripheral.Connect waits for
	// ServicesResolved=true after Connected=true, per §4.7.
	ServiceDiscoveryTimeout time.Duration
	// CommandRetryCap is the Command Queue's re-arm limit, per §4.5. Spec
	// preserves this parameter for future use; no current command path
	// triggers a retry (§9 Open Questions).
	CommandRetryCap int
	// PINLength is the exact length SetPIN requires, per §4.6/§8.
	PINLength int
	// MinRSSI / MaxRSSI bound SetRSSIThreshold, per §4.6/§8.
	MinRSSI int16
	MaxRSSI int16

	LogLevel  string
	LogFormat string
}

// Default returns the tunables spec.md names as literal constants, each
// overridable by environment variable the way the teacher's own config
// layer overrides GPIO/I2C/SPI knobs.
func Default() *Config {
	return &Config{
		ScanWindow:              getEnvDuration("BLE_SCAN_WINDOW", 6*time.Second),
		ScanPause:               getEnvDuration("BLE_SCAN_PAUSE", 2*time.Second),
		ServiceDiscoveryTimeout: getEnvDuration("BLE_SERVICE_DISCOVERY_TIMEOUT", 10*time.Second),
		CommandRetryCap:         getEnvInt("BLE_COMMAND_RETRY_CAP", 2),
		PINLength:               getEnvInt("BLE_PIN_LENGTH", 6),
		MinRSSI:                 int16(getEnvInt("BLE_MIN_RSSI", -127)),
		MaxRSSI:                 int16(getEnvInt("BLE_MAX_RSSI", 20)),
		LogLevel:                getEnvString("BLE_LOG_LEVEL", "info"),
		LogFormat:               getEnvString("BLE_LOG_FORMAT", "text"),
	}
}

// Validate reports the first configuration error found, mirroring the
// teacher's ConfigError/Validate pattern.
func (c *Config) Validate() error {
	if c.ScanWindow <= 0 {
		return &Error{Field: "ScanWindow", Reason: "must be positive"}
	}
	if c.ScanPause < 0 {
		return &Error{Field: "ScanPause", Reason: "must be non-negative"}
	}
	if c.ServiceDiscoveryTimeout <= 0 {
		return &Error{Field: "ServiceDiscoveryTimeout", Reason: "must be positive"}
	}
	if c.CommandRetryCap < 0 {
		return &Error{Field: "CommandRetryCap", Reason: "must be non-negative"}
	}
	if c.PINLength <= 0 {
		return &Error{Field: "PINLength", Reason: "must be positive"}
	}
	if c.MinRSSI > c.MaxRSSI {
		return &Error{Field: "MinRSSI", Reason: "must not exceed MaxRSSI"}
	}
	return nil
}

// Error is a configuration validation error.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config error in field %q: %s", e.Field, e.Reason)
}

func getEnvString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
