package testsupport

import (
	"path/filepath"
	"testing"

	"gloss/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t   testing.TB
	cfg *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ArchiveDir = filepath.Join(base, "archive")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.AI.BaseURL = "http://127.0.0.1:0"
	cfgVal.AI.APIKey = "test"
	cfgVal.Storage.BaseURL = "http://127.0.0.1:0"
	cfgVal.Storage.APIKey = "test"
	cfgVal.Dam.APIURL = "http://127.0.0.1:0"

	builder := &configBuilder{t: t, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithPoolSize overrides the worker pool size on the test config.
func WithPoolSize(size int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Processing.PoolSize = size
	}
}

// WithMaxAttempts overrides the per-image attempt budget on the test config.
func WithMaxAttempts(attempts int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Processing.MaxAttempts = attempts
	}
}

// WithAPIToken sets the API auth token on the test config.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
