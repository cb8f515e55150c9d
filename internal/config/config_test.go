package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"family-ledger-go/pkg/logger"
)

func validConfig() Config {
	return Config{
		HTTPPort: "8080",
		Gateway: GatewayConfig{
			BaseURL: "http://localhost:4000",
			Timeout: 5 * time.Second,
		},
		Store: StoreConfig{Driver: StoreDriverMemory},
		AMQP:  AMQPConfig{Exchange: "ledger.lifecycle"},
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := validConfig()
	cfg.HTTPPort = "abc"
	cfg.Gateway.BaseURL = "ftp://gateway"
	cfg.Store.Driver = "mongo"
	cfg.AMQP.URL = "http://broker"
	cfg.Gateway.Username = "alice"

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"HTTP_PORT", "GATEWAY_BASE_URL scheme", "STORE_DRIVER", "AMQP_URL scheme", "GATEWAY_PASSWORD"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("GATEWAY_BASE_URL", "https://ledger.example.com/")
	t.Setenv("GATEWAY_TIMEOUT", "3s")
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test,,")
	t.Setenv("SNAPSHOTS_ENABLED", "false")

	cfg, err := Load(logger.NewNop())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Gateway.BaseURL != "https://ledger.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Gateway.BaseURL)
	}
	if cfg.Gateway.Timeout != 3*time.Second {
		t.Fatalf("expected 3s timeout, got %v", cfg.Gateway.Timeout)
	}
	if cfg.Store.Driver != StoreDriverSQLite {
		t.Fatalf("expected sqlite driver, got %q", cfg.Store.Driver)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Fatalf("expected 2 origins, got %v", cfg.CORSOrigins)
	}
	if cfg.Dashboard.SnapshotsEnabled {
		t.Fatalf("expected snapshots disabled")
	}
}

func TestApplyDotEnvKeepsExistingValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	contents := "LEDGER_TEST_A=from-file\nLEDGER_TEST_B=\"quoted value\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("LEDGER_TEST_A", "from-env")
	t.Cleanup(func() { os.Unsetenv("LEDGER_TEST_B") })

	loaded, skipped, err := applyDotEnv(path)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if loaded != 1 || skipped != 1 {
		t.Fatalf("expected 1 loaded 1 skipped, got %d %d", loaded, skipped)
	}
	if got := os.Getenv("LEDGER_TEST_A"); got != "from-env" {
		t.Fatalf("expected env value kept, got %q", got)
	}
	if got := os.Getenv("LEDGER_TEST_B"); got != "quoted value" {
		t.Fatalf("expected quoted value, got %q", got)
	}
}
