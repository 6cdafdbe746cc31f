package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration options for droidkg.
type Config struct {
	// Link extraction settings
	Analysis AnalysisConfig `koanf:"analysis" toml:"analysis" yaml:"analysis"`

	// Layout graph settings
	Layout LayoutConfig `koanf:"layout" toml:"layout" yaml:"layout"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output" yaml:"output"`

	// Multi-application runs
	Batch BatchConfig `koanf:"batch" toml:"batch" yaml:"batch"`

	// Fingerprint cache settings
	Cache CacheConfig `koanf:"cache" toml:"cache" yaml:"cache"`

	// Logging
	Log LogConfig `koanf:"log" toml:"log" yaml:"log"`
}

// AnalysisConfig controls the code-side extractors.
type AnalysisConfig struct {
	Timeout          string   `koanf:"timeout" toml:"timeout" yaml:"timeout"`
	MaxSliceDepth    int      `koanf:"max_slice_depth" toml:"max_slice_depth" yaml:"max_slice_depth"`
	ExcludedPrefixes []string `koanf:"excluded_prefixes" toml:"excluded_prefixes" yaml:"excluded_prefixes"`
	TextSetters      []string `koanf:"text_setters" toml:"text_setters" yaml:"text_setters"`
	StrictSchema     bool     `koanf:"strict_schema" toml:"strict_schema" yaml:"strict_schema"`
}

// TimeoutDuration parses Timeout. An empty or "0" timeout disables the limit.
func (a AnalysisConfig) TimeoutDuration() (time.Duration, error) {
	if a.Timeout == "" || a.Timeout == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(a.Timeout)
	if err != nil {
		return 0, fmt.Errorf("analysis.timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("analysis.timeout must not be negative (got %s)", a.Timeout)
	}
	return d, nil
}

// LayoutConfig locates and filters layout files.
type LayoutConfig struct {
	Dir     string   `koanf:"dir" toml:"dir" yaml:"dir"`
	Exclude []string `koanf:"exclude" toml:"exclude" yaml:"exclude"`
}

// OutputConfig controls where results go and how summaries render.
type OutputConfig struct {
	// Dir is empty to write into the work directory.
	Dir string `koanf:"dir" toml:"dir" yaml:"dir"`
	// Format is one of text, json, markdown, toon.
	Format string `koanf:"format" toml:"format" yaml:"format"`
}

// BatchConfig controls multi-application runs.
type BatchConfig struct {
	Workers int  `koanf:"workers" toml:"workers" yaml:"workers"`
	Force   bool `koanf:"force" toml:"force" yaml:"force"`
}

// CacheConfig controls input fingerprinting.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled" yaml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir" yaml:"dir"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level string `koanf:"level" toml:"level" yaml:"level"`
	File  string `koanf:"file" toml:"file" yaml:"file"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Timeout:       "10m",
			MaxSliceDepth: 0,
			ExcludedPrefixes: []string{
				"android.",
				"androidx.",
				"java.",
				"javax.",
				"sun.",
				"com.sun.",
				"kotlin.",
				"kotlinx.",
			},
			TextSetters:  []string{"setText", "setTitle", "setHint"},
			StrictSchema: false,
		},
		Layout: LayoutConfig{
			Dir:     "layout",
			Exclude: []string{},
		},
		Output: OutputConfig{
			Dir:    "",
			Format: "text",
		},
		Batch: BatchConfig{
			Workers: 4,
			Force:   false,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".droidkg-cache",
		},
		Log: LogConfig{
			Level: "info",
			File:  "",
		},
	}
}

// Load loads configuration from a file over the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	var parser koanf.Parser
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".toml":
		parser = toml.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault tries to load config from standard locations or returns defaults.
func LoadOrDefault() *Config {
	configNames := []string{
		"droidkg.toml",
		"droidkg.yaml",
		"droidkg.yml",
		"droidkg.json",
	}

	searchDirs := []string{".", ".droidkg"}

	for _, dir := range searchDirs {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				cfg, err := Load(path)
				if err == nil {
					return cfg
				}
			}
		}
	}

	return DefaultConfig()
}

// Validate rejects settings no run can use.
func (c *Config) Validate() error {
	if _, err := c.Analysis.TimeoutDuration(); err != nil {
		return err
	}
	if c.Analysis.MaxSliceDepth < 0 {
		return fmt.Errorf("analysis.max_slice_depth must not be negative (got %d)", c.Analysis.MaxSliceDepth)
	}
	if c.Batch.Workers < 0 {
		return fmt.Errorf("batch.workers must not be negative (got %d)", c.Batch.Workers)
	}
	switch strings.ToLower(c.Output.Format) {
	case "", "text", "json", "markdown", "md", "toon":
	default:
		return fmt.Errorf("output.format %q is not one of text, json, markdown, toon", c.Output.Format)
	}
	return nil
}

// LayoutDir resolves the layout directory for an application.
func (c *Config) LayoutDir(workDir string) string {
	if filepath.IsAbs(c.Layout.Dir) {
		return c.Layout.Dir
	}
	return filepath.Join(workDir, c.Layout.Dir)
}

// OutputDir resolves where results for an application are written.
func (c *Config) OutputDir(workDir string) string {
	if c.Output.Dir == "" {
		return workDir
	}
	return filepath.Join(c.Output.Dir, filepath.Base(filepath.Clean(workDir)))
}

// CacheDir resolves the fingerprint directory for an application.
func (c *Config) CacheDir(workDir string) string {
	if filepath.IsAbs(c.Cache.Dir) {
		return filepath.Join(c.Cache.Dir, filepath.Base(filepath.Clean(workDir)))
	}
	return filepath.Join(workDir, c.Cache.Dir)
}
