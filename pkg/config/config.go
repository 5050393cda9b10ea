// Package config loads the server configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"taxi_router/pkg/geo"
	"taxi_router/pkg/logging"
)

// Config is the server configuration.
type Config struct {
	GraphPath      string        `yaml:"graph_path"`
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxConcurrent  int           `yaml:"max_concurrent"`
	CORSOrigin     string        `yaml:"cors_origin"`
	LogLevel       string        `yaml:"log_level"`

	// Distance names the function measuring partial edges.
	Distance string `yaml:"distance"`
	// MaxSnapMeters rejects points farther than this from any road. Zero
	// disables the check.
	MaxSnapMeters float64 `yaml:"max_snap_meters"`
	// Contract builds a contraction hierarchy at startup.
	Contract bool `yaml:"contract"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		GraphPath:      "graph.bin",
		Addr:           ":8080",
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
		RequestTimeout: 5 * time.Second,
		MaxConcurrent:  runtime.NumCPU() * 2,
		LogLevel:       "info",
		Distance:       geo.DistanceGreatCircle,
	}
}

// Load reads a YAML file over the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.GraphPath == "" {
		return errors.New("config: graph_path is required")
	}
	if c.Addr == "" {
		return errors.New("config: addr is required")
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 || c.RequestTimeout <= 0 {
		return errors.New("config: timeouts must be positive")
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("config: max_concurrent must be positive, got %d", c.MaxConcurrent)
	}
	if c.MaxSnapMeters < 0 {
		return fmt.Errorf("config: max_snap_meters must not be negative, got %g", c.MaxSnapMeters)
	}
	if _, err := geo.DistanceByName(c.Distance); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
