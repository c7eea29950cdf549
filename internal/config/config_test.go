package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/codescope/internal/model"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()
	require.NoError(t, Default().Validate())
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"threshold above one", func(c *Config) { c.SimilarityThreshold = 1.5 }},
		{"zero threshold", func(c *Config) { c.SimilarityThreshold = 0 }},
		{"zero workers", func(c *Config) { c.WorkerPoolSize = 0 }},
		{"tiny window", func(c *Config) { c.ShingleWindowSize = 1 }},
		{"unknown category", func(c *Config) { c.EnabledCategories = []model.Category{"vibes"} }},
		{"unknown language", func(c *Config) { c.SupportedLanguages = []model.Language{"cobol"} }},
		{"bad glob", func(c *Config) { c.Exclude = []string{"[unclosed"} }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var verr *ValidationError
			assert.True(t, errors.As(err, &verr), "want ValidationError, got %T", err)
		})
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "codescope.yaml")
	content := `worker_pool_size: 3
file_timeout: 2s
duplication_similarity_threshold: 0.9
enabled_rule_categories: [security]
exclude: ["vendor/**"]
known_packages:
  python: [internal_sdk]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.WorkerPoolSize)
	assert.Equal(t, 2*time.Second, cfg.FileTimeout)
	assert.InDelta(t, 0.9, cfg.SimilarityThreshold, 1e-9)
	assert.Equal(t, []model.Category{model.Security}, cfg.EnabledCategories)
	assert.Equal(t, []string{"vendor/**"}, cfg.Exclude)
	assert.Equal(t, []string{"internal_sdk"}, cfg.KnownPackages["python"])
	// Untouched keys keep their defaults.
	assert.Equal(t, Default().MaxFileSize, cfg.MaxFileSize)
	assert.Equal(t, 5, cfg.ShingleWindowSize)
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "codescope.yaml")
	require.NoError(t, os.WriteFile(path, []byte("duplication_similarity_threshold: 2\n"), 0o644))

	_, err := Load(path)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestMarshalRoundTripThroughLoad(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.MaxCycles = 7
	data, err := Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(data), "file_timeout: 10s")

	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.MaxCycles)
}

func TestEnabledHelpers(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.EnabledCategories = []model.Category{model.Style}
	cfg.SupportedLanguages = []model.Language{model.Go}
	assert.True(t, cfg.CategoryEnabled(model.Style))
	assert.False(t, cfg.CategoryEnabled(model.Security))
	assert.True(t, cfg.LanguageEnabled(model.Go))
	assert.False(t, cfg.LanguageEnabled(model.Python))
}
