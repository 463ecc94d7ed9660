package internal

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/chainval/internal/apperr"
	"github.com/starford/chainval/internal/chainservice"
	"github.com/starford/chainval/internal/sse"
	"github.com/starford/chainval/internal/testutil"
)

func TestHTTPHandler_HealthAndAuth(t *testing.T) {
	dir, store := testutil.TestChains(t)
	testutil.WriteChain(t, dir, "release.properties", testutil.SampleChain)

	cfg := NewDefaultConfig()
	cfg.Auth = AuthConfig{Mode: AuthModeToken, Token: "tok"}
	broker := sse.NewBroker(time.Second)
	t.Cleanup(broker.Close)
	svc := chainservice.New(store, testutil.DefaultValidator(t))
	h := newHTTPHandler(cfg, svc, broker)

	for _, path := range []string{"/health/live", "/health/ready"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("%s = %d", path, w.Code)
		}
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/chains", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed /api/chains = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/chains/release.properties", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed chain = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestRun_RequiresConfig(t *testing.T) {
	if err := Run(t.Context()); err == nil {
		t.Error("Run without config should fail")
	}
}

func TestNewValidator(t *testing.T) {
	logger := NewLogger(ApplicationConfig{LogFormat: LogFormatText}, os.Stderr)

	v, err := NewValidator(NewDefaultConfig(), nil, logger)
	if err != nil || len(v.Rules()) == 0 || len(v.ConfigErrors()) != 0 {
		t.Fatalf("default rules: %v", err)
	}

	cfg := NewDefaultConfig()
	cfg.Rules.Path = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := NewValidator(cfg, nil, logger); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing rules file err = %v, want ErrNotFound", err)
	}
}

func TestOpenHistory(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.History.Enabled = false
	db, err := OpenHistory(cfg)
	if err != nil || db != nil {
		t.Fatalf("disabled history = %v, %v", db, err)
	}
	if opts := ServiceOptions(nil, nil); len(opts) != 1 {
		t.Errorf("options without history = %d, want 1", len(opts))
	}

	cfg.History = HistoryConfig{Enabled: true, Path: filepath.Join(t.TempDir(), "h.db")}
	db, err = OpenHistory(cfg)
	if err != nil || db == nil {
		t.Fatalf("enabled history = %v, %v", db, err)
	}
	defer db.Close()
	if opts := ServiceOptions(db, nil); len(opts) != 2 {
		t.Errorf("options with history = %d, want 2", len(opts))
	}
}

func TestResolveChain(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()
	testutil.WriteChain(t, root, "team/release.properties", testutil.SampleChain)
	outside := testutil.WriteChain(t, other, "solo.chain", testutil.SampleChain)

	cfg := NewDefaultConfig()
	cfg.Chains.Root = root

	store, path, err := ResolveChain(cfg, filepath.Join(root, "team", "release.properties"))
	if err != nil || path != "team/release.properties" {
		t.Fatalf("inside root = %q, %v", path, err)
	}
	if _, err := store.Read(path); err != nil {
		t.Errorf("Read inside root: %v", err)
	}

	store, path, err = ResolveChain(cfg, outside)
	if err != nil || path != "solo.chain" {
		t.Fatalf("outside root = %q, %v", path, err)
	}
	if _, err := store.Read(path); err != nil {
		t.Errorf("Read outside root: %v", err)
	}

	_, _, err = ResolveChain(cfg, filepath.Join(other, "missing-dir", "x.properties"))
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing dir err = %v, want ErrNotFound", err)
	}
}
