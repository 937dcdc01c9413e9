package testsupport

import (
	"path/filepath"
	"testing"

	"gavel/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Worker endpoints point at localhost so validation passes without stubs.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Workers.DiscoverURL = "http://127.0.0.1:1/discover"
	cfg.Workers.DownloadURL = "http://127.0.0.1:1/download"
	cfg.Workers.TranscribeURL = "http://127.0.0.1:1/transcribe"
	cfg.Workers.AnalyzeURL = "http://127.0.0.1:1/analyze"
	cfg.Workers.ExtractURL = "http://127.0.0.1:1/extract"
	cfg.Scheduler.Enabled = false

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithWorkerURL points every worker endpoint at the given base URL.
func WithWorkerURL(baseURL string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workers.DiscoverURL = baseURL + "/discover"
		cfg.Workers.DownloadURL = baseURL + "/download"
		cfg.Workers.TranscribeURL = baseURL + "/transcribe"
		cfg.Workers.AnalyzeURL = baseURL + "/analyze"
		cfg.Workers.ExtractURL = baseURL + "/extract"
	}
}

// WithCeilings overrides the pipeline run ceilings.
func WithCeilings(maxCost float64, maxHearings int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.MaxCost = maxCost
		cfg.Pipeline.MaxHearings = maxHearings
	}
}
