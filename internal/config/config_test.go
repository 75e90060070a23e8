package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"constitution/internal/artifact"
	"constitution/internal/store"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeFile(t, "constitution.yaml", "log:\n  level: debug\nmetrics:\n  addr: 127.0.0.1:9464\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	want.Log.Level = "debug"
	want.Metrics.Addr = "127.0.0.1:9464"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "c.json", `{"output": "markdown", "store": {"driver": "sqlite", "path": "k.db"}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Output != "markdown" || cfg.Store.Driver != DriverSQLite || cfg.Log.Format != "text" {
		t.Errorf("got %+v", cfg)
	}
}

func TestLoad_MissingDefaultIsFine(t *testing.T) {
	wd, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(wd) })
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
}

func TestLoad_MissingExplicitFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing explicit config loaded")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Config)
		ok   bool
	}{
		{"default", func(*Config) {}, true},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mongo" }, false},
		{"sqlite no path", func(c *Config) { c.Store = StoreConfig{Driver: DriverSQLite} }, false},
		{"bad level", func(c *Config) { c.Log.Level = "chatty" }, false},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, false},
		{"bad output", func(c *Config) { c.Output = "html" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mut(&cfg)
			if err := cfg.Validate(); (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
	cfg := Default()
	cfg.Store.Driver = "mongo"
	if err := cfg.Validate(); !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("err = %v, want ErrUnknownDriver", err)
	}
}

func TestOpenStore_SQLite(t *testing.T) {
	cfg := Default()
	cfg.Store = StoreConfig{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "nested", "kernel.db")}
	s, closeFn, err := cfg.OpenStore()
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer closeFn()
	if _, ok := s.(*store.SqlStore); !ok {
		t.Fatalf("store = %T, want *store.SqlStore", s)
	}
	if _, err := s.Put(artifact.NewEpisode("persisted")); err != nil {
		t.Fatalf("Put: %v", err)
	}
}

func TestOpenStore_Memory(t *testing.T) {
	s, closeFn, err := Default().OpenStore()
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	if err := closeFn(); err != nil {
		t.Errorf("close: %v", err)
	}
	if _, ok := s.(*store.MemStore); !ok {
		t.Errorf("store = %T, want *store.MemStore", s)
	}
}
