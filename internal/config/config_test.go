package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelforge/internal/config"
)

func TestLoadDefaultsAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantStaging := filepath.Join(tempHome, ".local", "share", "reelforge", "staging")
	if cfg.Paths.StagingDir != wantStaging {
		t.Fatalf("unexpected staging dir: got %q want %q", cfg.Paths.StagingDir, wantStaging)
	}
	if cfg.Paths.CacheDir != filepath.Join(tempHome, ".cache", "reelforge") {
		t.Fatalf("unexpected cache dir: %q", cfg.Paths.CacheDir)
	}
	if cfg.Bundler.Binary != "reel-bundler" {
		t.Fatalf("unexpected bundler binary: %q", cfg.Bundler.Binary)
	}
	if cfg.Renderer.Container != "mp4" {
		t.Fatalf("unexpected container: %q", cfg.Renderer.Container)
	}
	if !cfg.Browser.AutoDownload {
		t.Fatal("expected browser auto download enabled by default")
	}
	if cfg.Staging.MaxAgeHours != 24 {
		t.Fatalf("unexpected staging max age: %d", cfg.Staging.MaxAgeHours)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StagingDir, cfg.Paths.CacheDir, cfg.Paths.LogDir} {
		if _, err := os.Stat(dir); err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
	}
}

func TestLoadParsesFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
staging_dir = "` + filepath.Join(dir, "staging") + `"

[bundler]
binary = "custom-bundler"
resolve_dirs = ["` + filepath.Join(dir, "modules") + `", "  "]

[renderer]
container = ".WebM"

[logging]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %s to be used, got %s exists=%v", path, resolved, exists)
	}
	if cfg.Bundler.Binary != "custom-bundler" {
		t.Fatalf("unexpected bundler binary: %q", cfg.Bundler.Binary)
	}
	if len(cfg.Bundler.ResolveDirs) != 1 || cfg.Bundler.ResolveDirs[0] != filepath.Join(dir, "modules") {
		t.Fatalf("unexpected resolve dirs: %v", cfg.Bundler.ResolveDirs)
	}
	if cfg.Renderer.Container != "webm" {
		t.Fatalf("expected container normalized to webm, got %q", cfg.Renderer.Container)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected log level: %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "bad container",
			content: "[renderer]\ncontainer = \"avi\"\n",
			wantErr: "renderer.container",
		},
		{
			name:    "bad log format",
			content: "[logging]\nformat = \"xml\"\n",
			wantErr: "logging.format",
		},
		{
			name:    "missing download url",
			content: "[browser]\nauto_download = true\ndownload_url = \"  \"\n",
			wantErr: "browser.download_url",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected error when sample already exists")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[bundler]") {
		t.Fatalf("sample missing bundler section: %q", data)
	}
}
