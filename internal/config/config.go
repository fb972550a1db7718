package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultCachePath = ".modelc/cache.db"
	DefaultMaxPasses = 10
)

var DefaultSources = []string{"**/*.pure.yaml"}

type Config struct {
	Project struct {
		Root    string   `yaml:"root"`
		Sources []string `yaml:"sources"` // doublestar globs relative to root
	} `yaml:"project"`
	Cache struct {
		Path string `yaml:"path"`
	} `yaml:"cache"`
	Compiler struct {
		MaxPasses       int  `yaml:"max_passes"`
		MaxLambdaPasses int  `yaml:"max_lambda_passes"`
		RichDiagnostics bool `yaml:"rich_diagnostics"`
	} `yaml:"compiler"`
	Log struct {
		Verbosity int `yaml:"verbosity"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// LoadConfig reads path, falling back to defaults when the file does not
// exist, then applies MODELC_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	// 2. Load YAML config
	var cfg Config
	file, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	// 3. Override with Environment Variables if present
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if root := os.Getenv("MODELC_ROOT"); root != "" {
		c.Project.Root = root
	}
	if cache := os.Getenv("MODELC_CACHE_PATH"); cache != "" {
		c.Cache.Path = cache
	}
	ints := []struct {
		name string
		dst  *int
	}{
		{"MODELC_MAX_PASSES", &c.Compiler.MaxPasses},
		{"MODELC_MAX_LAMBDA_PASSES", &c.Compiler.MaxLambdaPasses},
		{"MODELC_LOG_VERBOSITY", &c.Log.Verbosity},
	}
	for _, e := range ints {
		raw := os.Getenv(e.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", e.name, err)
		}
		*e.dst = n
	}
	if rich := os.Getenv("MODELC_RICH_DIAGNOSTICS"); rich != "" {
		b, err := strconv.ParseBool(rich)
		if err != nil {
			return fmt.Errorf("invalid MODELC_RICH_DIAGNOSTICS: %w", err)
		}
		c.Compiler.RichDiagnostics = b
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Project.Root == "" {
		c.Project.Root = "."
	}
	if len(c.Project.Sources) == 0 {
		c.Project.Sources = append([]string(nil), DefaultSources...)
	}
	if c.Cache.Path == "" {
		c.Cache.Path = DefaultCachePath
	}
	if c.Compiler.MaxPasses == 0 {
		c.Compiler.MaxPasses = DefaultMaxPasses
	}
	if c.Compiler.MaxLambdaPasses == 0 {
		c.Compiler.MaxLambdaPasses = 3
	}
}

// Validate rejects values the compiler cannot run with.
func (c *Config) Validate() error {
	var errs []error
	for _, g := range c.Project.Sources {
		if !doublestar.ValidatePattern(g) {
			errs = append(errs, fmt.Errorf("project.sources: invalid glob %q", g))
		}
	}
	if c.Compiler.MaxPasses < 1 {
		errs = append(errs, fmt.Errorf("compiler.max_passes must be positive, got %d", c.Compiler.MaxPasses))
	}
	if c.Compiler.MaxLambdaPasses < 1 {
		errs = append(errs, fmt.Errorf("compiler.max_lambda_passes must be positive, got %d", c.Compiler.MaxLambdaPasses))
	}
	if c.Log.Verbosity < 0 {
		errs = append(errs, fmt.Errorf("log.verbosity must not be negative, got %d", c.Log.Verbosity))
	}
	return errors.Join(errs...)
}
