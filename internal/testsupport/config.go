package testsupport

import (
	"path/filepath"
	"testing"

	"aslreport/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.ArtifactsDir = filepath.Join(base, "data", "runs")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Server.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithSuppressOnMajor toggles report suppression on the test config.
func WithSuppressOnMajor(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Report.SuppressOnMajor = enabled
	}
}

// WithExtendedReport toggles the recommended-parameter paragraph.
func WithExtendedReport(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Report.Extended = enabled
	}
}

// WithRulesFile writes data to a rules file under the temp dir and points
// the config at it.
func WithRulesFile(data []byte) ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, "rules.yaml")
		WriteBytes(b.t, path, data)
		b.cfg.Rules.Path = path
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

// WithMaxUploadMB sets the HTTP upload limit.
func WithMaxUploadMB(mb int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.MaxUploadMB = mb
	}
}
