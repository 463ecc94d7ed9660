package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type testConfig struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	valid bool
}

func (c *testConfig) Validate() error {
	c.valid = true
	if c.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("CFG_TEST_NAME", "chains")
	p := writeFile(t, "name: ${CFG_TEST_NAME}\nport: 8080\n")

	var cfg testConfig
	if err := Load(p, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "chains" || cfg.Port != 8080 || !cfg.valid {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_Errors(t *testing.T) {
	var cfg testConfig
	if err := Load(filepath.Join(t.TempDir(), "missing.yaml"), &cfg); err == nil {
		t.Error("missing file should fail")
	}
	if err := Load(writeFile(t, "port: [\n"), &cfg); err == nil {
		t.Error("malformed YAML should fail")
	}
	err := Load(writeFile(t, "port: 0\n"), &cfg)
	if err == nil || !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("invalid config err = %v", err)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	// Existing file wins.
	cfg := testConfig{Port: 1}
	if err := LoadWithDefaults(writeFile(t, "port: 2\n"), "", &cfg); err != nil || cfg.Port != 2 {
		t.Fatalf("existing file: cfg = %+v, err = %v", cfg, err)
	}

	// Missing file falls back to defaultFile.
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	cfg = testConfig{Port: 1}
	if err := LoadWithDefaults(missing, writeFile(t, "port: 3\n"), &cfg); err != nil || cfg.Port != 3 {
		t.Fatalf("default file: cfg = %+v, err = %v", cfg, err)
	}

	// Neither: in-memory defaults are kept and validated.
	cfg = testConfig{Port: 4}
	if err := LoadWithDefaults(missing, "", &cfg); err != nil || cfg.Port != 4 || !cfg.valid {
		t.Fatalf("in-memory defaults: cfg = %+v, err = %v", cfg, err)
	}
	cfg = testConfig{}
	if err := LoadWithDefaults("", "", &cfg); err == nil {
		t.Error("invalid in-memory defaults should fail")
	}
}
