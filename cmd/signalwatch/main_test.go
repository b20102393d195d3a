package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalwatch/signalwatch/internal/config"
)

func loadStartupConfig(t *testing.T, yaml string) error {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	configPath = path
	t.Cleanup(func() {
		configPath = ""
		cfg = nil
	})
	return rootCmd.PersistentPreRunE(statusCmd, nil)
}

func TestStartupRejectsEmptyKeywords(t *testing.T) {
	err := loadStartupConfig(t, "feed:\n  keywords: []\n")
	if err == nil || !strings.Contains(err.Error(), "keywords") {
		t.Fatalf("expected startup to halt on empty keywords, got %v", err)
	}
}

func TestStartupRejectsBlankedBaseURL(t *testing.T) {
	err := loadStartupConfig(t, "feed:\n  base_url: \"\"\n  keywords: [\"tariff\"]\n")
	if err == nil || !strings.Contains(err.Error(), "base_url") {
		t.Fatalf("expected startup to halt on blank base_url, got %v", err)
	}
}

func TestStartupAcceptsDefaultConfig(t *testing.T) {
	if err := loadStartupConfig(t, string(config.DefaultConfigYAML)); err != nil {
		t.Fatalf("expected default config to pass startup, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected config loaded after startup")
	}
}
