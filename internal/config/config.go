// Package config holds the engine configuration. A Config is an explicit value
// handed to the engine at construction; nothing reads ambient global state.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/codescope/internal/model"
)

// Config is the full set of recognized options.
type Config struct {
	MaxFileSize         int64            `yaml:"max_file_size" mapstructure:"max_file_size" validate:"gt=0"`
	WorkerPoolSize      int              `yaml:"worker_pool_size" mapstructure:"worker_pool_size" validate:"gt=0,lte=256"`
	FileTimeout         time.Duration    `yaml:"file_timeout" mapstructure:"file_timeout" validate:"gt=0"`
	ShingleWindowSize   int              `yaml:"shingle_window_size" mapstructure:"shingle_window_size" validate:"gte=2,lte=64"`
	SimilarityThreshold float64          `yaml:"duplication_similarity_threshold" mapstructure:"duplication_similarity_threshold" validate:"gt=0,lte=1"`
	FingerprintSize     int              `yaml:"fingerprint_size" mapstructure:"fingerprint_size" validate:"gte=8"`
	MinFragmentTokens   int              `yaml:"min_fragment_tokens" mapstructure:"min_fragment_tokens" validate:"gte=1"`
	MaxCycles           int              `yaml:"max_cycles" mapstructure:"max_cycles" validate:"gt=0"`
	EnabledCategories   []model.Category `yaml:"enabled_rule_categories" mapstructure:"enabled_rule_categories" validate:"dive,oneof=security performance complexity style"`
	SupportedLanguages  []model.Language `yaml:"supported_languages" mapstructure:"supported_languages" validate:"dive,oneof=python javascript typescript java c cpp csharp go ruby php"`
	Exclude             []string         `yaml:"exclude" mapstructure:"exclude"`
	RespectGitignore    bool             `yaml:"respect_gitignore" mapstructure:"respect_gitignore"`

	KnownPackages map[string][]string `yaml:"known_packages" mapstructure:"known_packages"`

	Logging Logging `yaml:"logging" mapstructure:"logging"`
	Cache   Cache   `yaml:"cache" mapstructure:"cache"`
	Server  Server  `yaml:"server" mapstructure:"server"`
}

// Logging controls the slog handler built by the CLI.
type Logging struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=text json"`
}

// Cache configures the on-disk report cache. An empty Dir disables it.
type Cache struct {
	Dir string        `yaml:"dir" mapstructure:"dir"`
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl" validate:"gte=0"`
}

// Server configures `codescope serve`.
type Server struct {
	Addr           string `yaml:"addr" mapstructure:"addr" validate:"required"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes" validate:"gt=0"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		MaxFileSize:         1_000_000,
		WorkerPoolSize:      runtime.NumCPU(),
		FileTimeout:         10 * time.Second,
		ShingleWindowSize:   5,
		SimilarityThreshold: 0.8,
		FingerprintSize:     128,
		MinFragmentTokens:   30,
		MaxCycles:           1000,
		EnabledCategories:   append([]model.Category(nil), model.AllCategories...),
		SupportedLanguages:  append([]model.Language(nil), model.AllLanguages...),
		Exclude:             []string{},
		RespectGitignore:    true,
		KnownPackages:       map[string][]string{},
		Logging:             Logging{Level: "info", Format: "text"},
		Cache:               Cache{TTL: 24 * time.Hour},
		Server:              Server{Addr: ":8080", MaxUploadBytes: 64 << 20},
	}
}

// ValidationError lists every invalid field.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.Join(e.Problems, "; ")
}

var validate = validator.New()

// Validate checks field constraints and exclude patterns.
func (c Config) Validate() error {
	var problems []string
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validating config: %w", err)
		}
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
	}
	for _, p := range c.Exclude {
		if !doublestar.ValidatePattern(p) {
			problems = append(problems, fmt.Sprintf("exclude: bad pattern %q", p))
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// CategoryEnabled reports whether rules of category cat should run.
func (c Config) CategoryEnabled(cat model.Category) bool {
	for _, e := range c.EnabledCategories {
		if e == cat {
			return true
		}
	}
	return false
}

// LanguageEnabled reports whether files of language l are analyzed.
func (c Config) LanguageEnabled(l model.Language) bool {
	for _, e := range c.SupportedLanguages {
		if e == l {
			return true
		}
	}
	return false
}

// Marshal renders c as YAML.
func Marshal(c Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return buf.Bytes(), nil
}

// Load layers the defaults, the YAML file at path (if non-empty) and
// CODESCOPE_* environment variables, then validates the result.
func Load(path string) (Config, error) {
	base, err := Marshal(Default())
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(base)); err != nil {
		return Config{}, fmt.Errorf("loading defaults: %w", err)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	v.SetEnvPrefix("CODESCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
