package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"CLOCKIFY_API_KEY", "CLOCKIFY_WORKSPACE_ID", "CLOCKIFY_BASE_URL", "MATTERCLOCK_DATA_DIR"} {
		t.Setenv(k, "")
	}
}

// --- LoadFile ---

func TestLoadFile_WhenFileMissing_ShouldReturnDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg, err := LoadFile(filepath.Join(dir, "config.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Timer.HistoryLimit != 500 || cfg.Suggest.RecentActivityMinutes != 5 {
		t.Errorf("expected defaults, got %+v", cfg)
	}
	if cfg.DataDir != dir {
		t.Errorf("expected data dir %q, got %q", dir, cfg.DataDir)
	}
	if cfg.Remote() {
		t.Error("expected no remote without api key")
	}
}

func TestLoadFile_WhenPartialFile_ShouldKeepUnsetDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
[clockify]
api_key = "abc"
workspace_id = "ws-1"

[suggest]
recent_activity_minutes = 15
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Clockify.APIKey != "abc" || cfg.Clockify.WorkspaceID != "ws-1" || !cfg.Remote() {
		t.Errorf("unexpected clockify config %+v", cfg.Clockify)
	}
	w := cfg.Windows()
	if w.RecentActivity != 15*time.Minute || w.LastTimer != 24*time.Hour || w.MostActive != 7*24*time.Hour {
		t.Errorf("unexpected windows %+v", w)
	}
}

func TestLoadFile_WhenInvalidToml_ShouldReturnError(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "[clockify\napi_key = ")
	if _, err := LoadFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadFile_WhenEnvSet_ShouldOverrideFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "[clockify]\napi_key = \"from-file\"\n")
	t.Setenv("CLOCKIFY_API_KEY", "from-env")
	t.Setenv("MATTERCLOCK_DATA_DIR", "/var/lib/matterclock")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Clockify.APIKey != "from-env" {
		t.Errorf("expected env override, got %q", cfg.Clockify.APIKey)
	}
	if cfg.DataDir != "/var/lib/matterclock" {
		t.Errorf("expected env data dir, got %q", cfg.DataDir)
	}
}

// --- TickInterval ---

func TestTickInterval_WhenZero_ShouldDefaultToOneSecond(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timer.TickSeconds = 0
	if got := cfg.TickInterval(); got != time.Second {
		t.Errorf("expected 1s, got %v", got)
	}
}

// --- WriteDefault ---

func TestWriteDefault_ShouldRoundTripAndNotOverwrite(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sub", "config.toml")

	if err := WriteDefault(path); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("default file does not parse: %v", err)
	}
	if cfg.Timer.TickSeconds != 1 || !cfg.Notifications.Enabled {
		t.Errorf("unexpected config %+v", cfg)
	}

	os.WriteFile(path, []byte("data_dir = \"/custom\"\n"), 0644)
	if err := WriteDefault(path); err != nil {
		t.Fatal(err)
	}
	cfg, _ = LoadFile(path)
	if cfg.DataDir != "/custom" {
		t.Errorf("existing file was overwritten, data dir %q", cfg.DataDir)
	}
}
