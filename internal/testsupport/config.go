package testsupport

import (
	"path/filepath"
	"testing"

	"embymerge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t   testing.TB
	cfg *config.Config
}

// NewConfig produces a config seeded with a unique temp log directory per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Emby.BaseURL = "http://emby.invalid"
	cfgVal.Emby.APIKey = "test"
	cfgVal.Server.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:   t,
		cfg: &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithEmby points the config at a (usually fake) Emby server.
func WithEmby(baseURL, apiKey string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Emby.BaseURL = baseURL
		b.cfg.Emby.APIKey = apiKey
	}
}

// WithIgnorePaths sets the exclusion list.
func WithIgnorePaths(entries ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Merge.IgnorePaths = entries
	}
}

// WithProviders sets the provider order and fallback policy.
func WithProviders(fallback bool, providers ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Merge.Providers = providers
		b.cfg.Merge.ProviderFallback = fallback
	}
}

// WithScanAPI serves POST /api/scan.
func WithScanAPI() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.ScanAPI = true
	}
}
