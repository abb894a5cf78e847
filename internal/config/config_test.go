package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	unsetEnv(t, ConfigPathEnvVar, "PORT", "TRUST_PROXY", "SESSION_SECRET", "STORAGE_BACKEND", "RECOMMENDATION_LIMIT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "8080" || cfg.Storage.Backend != "memory" || cfg.Recommendation.Limit != 6 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Server.TrustProxy {
		t.Fatalf("proxy headers must not be trusted by default")
	}
	if cfg.Session.Secret != "" {
		t.Fatalf("expected no default session secret, got %q", cfg.Session.Secret)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	unsetEnv(t, ConfigPathEnvVar)
	t.Setenv("PORT", "9090")
	t.Setenv("STORAGE_BACKEND", " Redis ")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("RECOMMENDATION_LIMIT", "4")
	t.Setenv("TRUST_PROXY", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address() != ":9090" {
		t.Fatalf("expected :9090, got %s", cfg.Address())
	}
	if cfg.Storage.Backend != "redis" || cfg.Redis.DB != 3 || cfg.Recommendation.Limit != 4 {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if !cfg.Server.TrustProxy {
		t.Fatalf("expected TRUST_PROXY to enable proxy headers")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "sources:\n  catalog: /srv/products.csv\nrecommendation:\n  limit: 3\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	unsetEnv(t, "CATALOG_SOURCE", "RULES_SOURCE")
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("RECOMMENDATION_LIMIT", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Sources.Catalog != "/srv/products.csv" {
		t.Fatalf("expected file value, got %q", cfg.Sources.Catalog)
	}
	if cfg.Recommendation.Limit != 5 {
		t.Fatalf("expected env to win over file, got %d", cfg.Recommendation.Limit)
	}
	if cfg.Sources.Rules != "data/recommendation_rules.json" {
		t.Fatalf("expected default to survive, got %q", cfg.Sources.Rules)
	}
}

func TestValidate(t *testing.T) {
	cfg := *defaultConfig()
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "SESSION_SECRET") {
		t.Fatalf("expected missing secret to be rejected, got %v", err)
	}

	cfg.Session.Secret = "0123456789abcdef0123456789abcdef"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cfg.Storage.Backend = "sqlite"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected unknown backend to be rejected")
	}

	cfg.Storage.Backend = "postgres"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected postgres without DATABASE_URL to be rejected, got %v", err)
	}
}
