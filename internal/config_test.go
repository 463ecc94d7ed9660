package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pkgconfig "github.com/starford/chainval/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should pass: %v", err)
	}
	if cfg.Rules.Path != "" {
		t.Errorf("rules path = %q, want built-in set", cfg.Rules.Path)
	}
}

func TestHistoryConfig_PathRequiredWhenEnabled(t *testing.T) {
	if err := (&HistoryConfig{Enabled: true}).Validate(); err == nil {
		t.Error("enabled history without path should fail")
	}
	if err := (&HistoryConfig{Enabled: false}).Validate(); err != nil {
		t.Errorf("disabled history without path should pass: %v", err)
	}
}

func TestApplicationConfig_LogFormat(t *testing.T) {
	cfg := ApplicationConfig{HTTP: HTTPConfig{Port: 8080}}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.LogFormat != LogFormatJSON {
		t.Errorf("log format = %q, want json", cfg.LogFormat)
	}
	cfg.LogFormat = "xml"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown log format should fail")
	}
}

func TestChainsConfig_RootRequired(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Chains.Root = ""
	if err := cfg.Validate(); err == nil {
		t.Error("empty chains root should fail")
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("CHAINVAL_TEST_TOKEN", "s3cret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `app:
  log_level: debug
  log_format: text
  http:
    port: 9090
rules:
  path: ./rules.yaml
chains:
  root: /srv/chains
history:
  enabled: false
auth:
  mode: token
  token: ${CHAINVAL_TEST_TOKEN}
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.LogLevel != slog.LevelDebug || cfg.App.LogFormat != LogFormatText || cfg.App.HTTP.Port != 9090 {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Rules.Path != "./rules.yaml" || cfg.Chains.Root != "/srv/chains" {
		t.Errorf("rules = %+v, chains = %+v", cfg.Rules, cfg.Chains)
	}
	if cfg.History.Enabled || cfg.History.Path != "./chainval.db" {
		t.Errorf("history = %+v", cfg.History)
	}
	if !cfg.Auth.AuthEnabled() || cfg.Auth.Token != "s3cret" {
		t.Errorf("auth = %+v", cfg.Auth)
	}
}

func TestNewLogger(t *testing.T) {
	var buf strings.Builder
	logger := NewLogger(ApplicationConfig{LogLevel: slog.LevelInfo, LogFormat: LogFormatText}, &buf)
	logger.Debug("hidden")
	logger.Info("shown", slog.String("chain_file", "a.properties"))
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "chain_file=a.properties") {
		t.Errorf("text log = %q", out)
	}

	buf.Reset()
	NewLogger(ApplicationConfig{LogFormat: LogFormatJSON}, &buf).Info("json")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("json log = %q", buf.String())
	}
}
