package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SKYPILOT_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Defaults.Model != "sora-2" {
		t.Errorf("expected default model sora-2, got %q", cfg.Defaults.Model)
	}
	if cfg.Defaults.PollInterval != 5*time.Second {
		t.Errorf("expected poll interval 5s, got %v", cfg.Defaults.PollInterval)
	}
	if cfg.Currency.TTL != 24*time.Hour {
		t.Errorf("expected currency TTL 24h, got %v", cfg.Currency.TTL)
	}
	if cfg.Store.Driver != "file" {
		t.Errorf("expected file store, got %q", cfg.Store.Driver)
	}
	if filepath.Base(cfg.Store.Path) != "store.json" {
		t.Errorf("expected store path under home, got %q", cfg.Store.Path)
	}
	if filepath.Base(cfg.Server.DownloadDir) != "downloads" {
		t.Errorf("expected download dir under home, got %q", cfg.Server.DownloadDir)
	}
}

func TestLoadPollIntervalFloor(t *testing.T) {
	t.Setenv("SKYPILOT_HOME", t.TempDir())
	t.Setenv("SKYPILOT_POLL_INTERVAL", "5ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Defaults.PollInterval != time.Second {
		t.Errorf("expected poll interval raised to 1s, got %v", cfg.Defaults.PollInterval)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SKYPILOT_HOME", t.TempDir())
	t.Setenv("SKYPILOT_MODEL", "sora-2-pro")
	t.Setenv("SKYPILOT_AUTO_DOWNLOAD", "false")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:9999/v1/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Defaults.Model != "sora-2-pro" {
		t.Errorf("expected model override, got %q", cfg.Defaults.Model)
	}
	if cfg.Defaults.AutoDownload {
		t.Error("expected auto download disabled")
	}
	if cfg.OpenAI.BaseURL != "http://localhost:9999/v1" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.OpenAI.BaseURL)
	}
}

func TestReadSecretFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "key")
	if err := os.WriteFile(path, []byte("sk-test\n"), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY_FILE", path)
	t.Setenv("SKYPILOT_HOME", dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OpenAI.APIKey != "sk-test" {
		t.Errorf("expected key from file, got %q", cfg.OpenAI.APIKey)
	}
}
