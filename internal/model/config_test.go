package model

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("loading missing config: %v", err)
	}
	if cfg.Source.Type != "mock" {
		t.Errorf("expected mock default source, got %q", cfg.Source.Type)
	}
	if cfg.Backend.Mode != "heuristic" {
		t.Errorf("expected heuristic default backend, got %q", cfg.Backend.Mode)
	}
	if cfg.Source.MaxMessages <= 0 {
		t.Errorf("expected positive default max messages")
	}
}

func TestLoadConfigPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "backend:\n  mode: capable\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	if cfg.Backend.Mode != "capable" {
		t.Errorf("expected configured mode, got %q", cfg.Backend.Mode)
	}
	if cfg.Backend.MaxTokens != 1024 {
		t.Errorf("unset keys must keep defaults, got max_tokens %d", cfg.Backend.MaxTokens)
	}
	if cfg.Source.Type != "mock" {
		t.Errorf("unset sections must keep defaults, got source %q", cfg.Source.Type)
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}
	cfg.Source.Type = "imap"
	cfg.Source.Config = map[string]string{"host": "mail.example.com"}

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("saving config: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("reloading config: %v", err)
	}
	if loaded.Source.Type != "imap" {
		t.Errorf("expected saved source type, got %q", loaded.Source.Type)
	}
	if loaded.Source.Config["host"] != "mail.example.com" {
		t.Errorf("expected saved source config, got %v", loaded.Source.Config)
	}
}

func TestPromptTemplateFallback(t *testing.T) {
	var empty PromptConfig
	if empty.Template(TaskCategorize) == "" {
		t.Errorf("nil config must fall back to default template")
	}

	custom := PromptConfig{TaskCategorize: "CUSTOM"}
	if got := custom.Template(TaskCategorize); got != "CUSTOM" {
		t.Errorf("expected custom template, got %q", got)
	}
	if got := custom.Template(TaskDraftReply); got == "" {
		t.Errorf("missing task must fall back to default")
	}

	// DefaultPrompts hands out copies, not the shared map.
	defaults := DefaultPrompts()
	defaults[TaskCategorize] = "mutated"
	if defaultPrompts[TaskCategorize] == "mutated" {
		t.Errorf("mutating the copy must not affect built-in defaults")
	}
}
