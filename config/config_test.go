package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_CreatesDefaultWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Language != "en" {
		t.Errorf("default Language = %q, want %q", cfg.Language, "en")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Load() did not persist defaults: %v", err)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := DefaultConfig()
	cfg.Language = "es"
	cfg.LastChoice = 3
	cfg.BlockDoH = false
	if err := cfg.SetCredentials("user", "pass", []byte("test-key")); err != nil {
		t.Fatalf("SetCredentials() error = %v", err)
	}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Language != "es" || loaded.LastChoice != 3 {
		t.Errorf("loaded config = %+v, want language es, last_choice 3", loaded)
	}

	user, pass, err := loaded.Credentials([]byte("test-key"))
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if user != "user" || pass != "pass" {
		t.Errorf("Credentials() = (%q, %q), want (user, pass)", user, pass)
	}
}

func TestValidate_RejectsUnknownLanguage(t *testing.T) {
	cfg := &Config{Language: "fr"}
	if err := cfg.validate(); err != nil {
		t.Fatalf("validate() error = %v", err)
	}
	if cfg.Language != "en" {
		t.Errorf("validate() left Language = %q, want fallback to %q", cfg.Language, "en")
	}
}
