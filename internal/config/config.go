// Package config loads the optional constitution.yaml that sets the store
// backend, logging and output defaults for the CLI and the MCP server.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"constitution/internal/logging"
	"constitution/internal/store"
)

// DefaultPath is read when --config is not given. A missing file is not an error.
const DefaultPath = "constitution.yaml"

// ErrUnknownDriver is returned for a store driver other than memory or sqlite.
var ErrUnknownDriver = errors.New("config: unknown store driver")

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

type StoreConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

type MetricsConfig struct {
	// Addr is host:port for /metrics while serving. Empty disables it.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// Config is the file shape.
type Config struct {
	Store   StoreConfig   `json:"store" yaml:"store"`
	Log     LogConfig     `json:"log" yaml:"log"`
	Output  string        `json:"output" yaml:"output"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// Default returns a config with every value set.
func Default() Config {
	return Config{
		Store:  StoreConfig{Driver: DriverMemory, Path: filepath.Join(".constitution", "kernel.db")},
		Log:    LogConfig{Level: "info", Format: "text"},
		Output: "ascii",
	}
}

// Load reads path over Default. When path is DefaultPath and the file does
// not exist, Default is returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultPath {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := Parse(data, filepath.Ext(path), &cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Parse decodes data into cfg, keeping values the document does not set.
// ext is a format hint; empty means detect from content.
func Parse(data []byte, ext string, cfg *Config) error {
	ext = strings.ToLower(ext)
	if ext == ".json" || (ext == "" && strings.HasPrefix(strings.TrimSpace(string(data)), "{")) {
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config json: %w", err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}

// Validate checks enumerated fields.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.Store.Path) == "" {
			return fmt.Errorf("config: sqlite store needs a path")
		}
	default:
		return fmt.Errorf("%w %q", ErrUnknownDriver, c.Store.Driver)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Output {
	case "ascii", "markdown", "json":
	default:
		return fmt.Errorf("config: unknown output %q", c.Output)
	}
	return nil
}

// OpenStore opens the configured backend. The returned close func is never nil.
func (c Config) OpenStore() (store.Store, func() error, error) {
	switch c.Store.Driver {
	case DriverMemory, "":
		return store.NewMemStore(), func() error { return nil }, nil
	case DriverSQLite:
		if dir := filepath.Dir(c.Store.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create store dir: %w", err)
			}
		}
		s, err := store.Open(c.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("%w %q", ErrUnknownDriver, c.Store.Driver)
}
