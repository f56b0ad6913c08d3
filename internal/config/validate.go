package config

import (
	"fmt"
	"strings"
)

// Validate checks configuration correctness.
// It MUST NOT mutate configuration.
func Validate(cfg Config) error {
	if cfg.GPSDO.Interval <= 0 {
		return fmt.Errorf("gpsdo.interval must be > 0, got %s", cfg.GPSDO.Interval)
	}
	if cfg.GPSDO.ReadTimeout <= 0 {
		return fmt.Errorf("gpsdo.read_timeout must be > 0, got %s", cfg.GPSDO.ReadTimeout)
	}
	if cfg.GPSDO.ReconnectAfter < 0 {
		return fmt.Errorf("gpsdo.reconnect_after must be >= 0, got %d", cfg.GPSDO.ReconnectAfter)
	}
	if cfg.GPSDO.ReadTimeout > cfg.GPSDO.Interval {
		return fmt.Errorf(
			"gpsdo.read_timeout (%s) must not exceed gpsdo.interval (%s)",
			cfg.GPSDO.ReadTimeout,
			cfg.GPSDO.Interval,
		)
	}

	switch cfg.Output.Format {
	case FormatJSON, FormatLine:
	default:
		return fmt.Errorf("output.format must be %q or %q, got %q", FormatJSON, FormatLine, cfg.Output.Format)
	}

	if cfg.Web.ListenAddress == "" {
		return fmt.Errorf("web.listen_address is required")
	}
	if !strings.HasPrefix(cfg.Web.TelemetryPath, "/") {
		return fmt.Errorf("web.telemetry_path must start with /, got %q", cfg.Web.TelemetryPath)
	}
	switch cfg.Web.TelemetryPath {
	case "/", "/status", "/config", "/lock":
		return fmt.Errorf("web.telemetry_path %q collides with a status endpoint", cfg.Web.TelemetryPath)
	}
	if cfg.Web.MaxConnections < 0 {
		return fmt.Errorf("web.max_connections must be >= 0, got %d", cfg.Web.MaxConnections)
	}

	return nil
}
