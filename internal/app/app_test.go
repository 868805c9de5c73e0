package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/gunta/skypilot/internal/config"
)

func TestNewWithFileStore(t *testing.T) {
	t.Setenv("SKYPILOT_HOME", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.Redis != nil {
		t.Error("expected no redis client by default")
	}
	if a.Mirror != nil {
		t.Error("expected no mirror without R2 config")
	}
	if !a.Videos.IsConfigured() {
		t.Error("expected configured video client")
	}
	if filepath.Dir(cfg.Store.Path) != cfg.Home {
		t.Errorf("expected store under home, got %s", cfg.Store.Path)
	}

	if _, err := a.Settings.SetLanguage(context.Background(), "de"); err != nil {
		t.Fatalf("SetLanguage: %v", err)
	}
	if snap := a.Orchestrator.Snapshot(); snap.Defaults.Model != cfg.Defaults.Model {
		t.Errorf("expected orchestrator defaults from config, got %+v", snap.Defaults)
	}
}

func TestNewRejectsUnknownStore(t *testing.T) {
	t.Setenv("SKYPILOT_HOME", t.TempDir())
	t.Setenv("SKYPILOT_STORE", "postgres")
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := New(cfg); err == nil {
		t.Error("expected unknown store driver to fail")
	}
}
