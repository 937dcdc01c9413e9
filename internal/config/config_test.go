package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gavel/internal/config"
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

	wantData := filepath.Join(tempHome, ".local", "share", "gavel")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7319" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Matching.AutoAcceptThreshold != 80 {
		t.Fatalf("unexpected auto accept threshold: %d", cfg.Matching.AutoAcceptThreshold)
	}
	if cfg.Matching.SimilarityFloor != 0.55 {
		t.Fatalf("unexpected similarity floor: %v", cfg.Matching.SimilarityFloor)
	}
	if !cfg.Scheduler.Enabled {
		t.Fatal("expected scheduler enabled by default")
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		if _, err := os.Stat(dir); err != nil {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}

	if got := cfg.DatabasePath(); got != filepath.Join(wantData, "gavel.db") {
		t.Fatalf("unexpected database path: %q", got)
	}
}

func TestLoadReadsTokenFromEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GAVEL_API_TOKEN", "secret-token")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.APIToken != "secret-token" {
		t.Fatalf("expected token from env, got %q", cfg.Paths.APIToken)
	}
}

func TestLoadParsesFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		"[paths]",
		`data_dir = "` + filepath.Join(dir, "data") + `"`,
		`log_dir = "` + filepath.Join(dir, "logs") + `"`,
		"[workers]",
		`transcribe_url = "http://localhost:9999"`,
		"request_timeout = 120",
		"[matching]",
		"auto_accept_threshold = 90",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatalf("expected existing config at %q", path)
	}
	if cfg.Workers.TranscribeURL != "http://localhost:9999" {
		t.Fatalf("unexpected transcribe url: %q", cfg.Workers.TranscribeURL)
	}
	if cfg.Workers.RequestTimeout != 120 {
		t.Fatalf("unexpected worker timeout: %d", cfg.Workers.RequestTimeout)
	}
	if cfg.Matching.AutoAcceptThreshold != 90 {
		t.Fatalf("unexpected auto accept threshold: %d", cfg.Matching.AutoAcceptThreshold)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "bad worker url",
			mutate: func(c *config.Config) { c.Workers.ExtractURL = "ftp://nope" },
			want:   "extract_url",
		},
		{
			name:   "similarity floor out of range",
			mutate: func(c *config.Config) { c.Matching.SimilarityFloor = 1.5 },
			want:   "similarity_floor",
		},
		{
			name:   "negative max cost",
			mutate: func(c *config.Config) { c.Pipeline.MaxCost = -1 },
			want:   "max_cost",
		},
		{
			name:   "bad log format",
			mutate: func(c *config.Config) { c.Logging.Format = "xml" },
			want:   "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Logging.Format = "console"
			cfg.Logging.Level = "info"
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[workers]") {
		t.Fatal("sample config missing workers section")
	}
}
