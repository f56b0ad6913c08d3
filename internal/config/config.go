package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Output formats for the console writer.
const (
	FormatJSON = "json"
	FormatLine = "line"
)

// Config is the effective configuration built from flags and an optional
// File overlay.
type Config struct {
	Web    WebConfig
	GPSDO  GPSDOConfig
	Output OutputConfig
}

type WebConfig struct {
	ListenAddress  string
	TelemetryPath  string
	MaxConnections int
}

type GPSDOConfig struct {
	SerialNumber   string
	Interval       time.Duration
	ReadTimeout    time.Duration
	ReconnectAfter int
}

type OutputConfig struct {
	Stdout bool
	Format string
}

// File is the YAML config file. Pointer fields distinguish keys that are
// absent from keys explicitly set to a zero value.
type File struct {
	Web struct {
		ListenAddress  *string `yaml:"listen_address"`
		TelemetryPath  *string `yaml:"telemetry_path"`
		MaxConnections *int    `yaml:"max_connections"`
	} `yaml:"web"`
	GPSDO struct {
		SerialNumber   *string        `yaml:"serial_number"`
		Interval       *time.Duration `yaml:"interval"`
		ReadTimeout    *time.Duration `yaml:"read_timeout"`
		ReconnectAfter *int           `yaml:"reconnect_after"`
	} `yaml:"gpsdo"`
	Output struct {
		Stdout *bool   `yaml:"stdout"`
		Format *string `yaml:"format"`
	} `yaml:"output"`
}

// Load reads a YAML config file.
func Load(path string) (File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}

	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return File{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}

// Overlay copies every key present in f into c.
func (c *Config) Overlay(f File) {
	set(&c.Web.ListenAddress, f.Web.ListenAddress)
	set(&c.Web.TelemetryPath, f.Web.TelemetryPath)
	set(&c.Web.MaxConnections, f.Web.MaxConnections)
	set(&c.GPSDO.SerialNumber, f.GPSDO.SerialNumber)
	set(&c.GPSDO.Interval, f.GPSDO.Interval)
	set(&c.GPSDO.ReadTimeout, f.GPSDO.ReadTimeout)
	set(&c.GPSDO.ReconnectAfter, f.GPSDO.ReconnectAfter)
	set(&c.Output.Stdout, f.Output.Stdout)
	set(&c.Output.Format, f.Output.Format)
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
