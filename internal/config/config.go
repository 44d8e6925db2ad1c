// Package config holds molsync's typed configuration.
//
// Sources in increasing precedence: built-in defaults, a TOML or YAML file,
// MOLSYNC_ environment variables, and explicit overrides (command line
// flags). Sources are merged as plain maps and then decoded into Config.
package config

import (
	"bytes"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/dshills/molsync/internal/config/loader"
	"github.com/dshills/molsync/internal/logging"
	"github.com/dshills/molsync/internal/molecule"
)

// Config is the complete molsync configuration.
type Config struct {
	Sync    SyncConfig        `yaml:"sync"`
	Logging LoggingConfig     `yaml:"logging"`
	Lookup  LookupConfig      `yaml:"lookup"`
	Metrics MetricsConfig     `yaml:"metrics"`
	Plugin  PluginConfig      `yaml:"plugin"`
	Presets []molecule.Preset `yaml:"presets,omitempty"`
}

// SyncConfig holds the synchronization timings.
type SyncConfig struct {
	OutboundDelay    time.Duration `yaml:"outboundDelay"`
	InboundDelay     time.Duration `yaml:"inboundDelay"`
	PollInterval     time.Duration `yaml:"pollInterval"`
	CallTimeout      time.Duration `yaml:"callTimeout"`
	StructureVersion string        `yaml:"structureVersion"`
}

// LoggingConfig holds logger settings. An empty File logs to stderr,
// except in the terminal UI, which never logs to the screen.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// LookupConfig holds the chemistry database client settings.
type LookupConfig struct {
	BaseURL   string        `yaml:"baseURL"`
	ViewURL   string        `yaml:"viewURL"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheTTL  time.Duration `yaml:"cacheTTL"`
	CacheSize int           `yaml:"cacheSize"`
	UserAgent string        `yaml:"userAgent"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// PluginConfig names an optional Lua script.
type PluginConfig struct {
	Script string `yaml:"script"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Sync: SyncConfig{
			OutboundDelay:    400 * time.Millisecond,
			InboundDelay:     500 * time.Millisecond,
			PollInterval:     800 * time.Millisecond,
			CallTimeout:      10 * time.Second,
			StructureVersion: molecule.VersionLegacy.String(),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Lookup: LookupConfig{
			BaseURL:   "https://pubchem.ncbi.nlm.nih.gov/rest/pug",
			ViewURL:   "https://pubchem.ncbi.nlm.nih.gov/rest/pug_view",
			Timeout:   10 * time.Second,
			CacheTTL:  time.Hour,
			CacheSize: 256,
			UserAgent: "molsync",
		},
	}
}

// Options controls Load.
type Options struct {
	// Path of a .toml, .yaml or .yml file. Empty loads no file.
	Path string
	// EnvPrefix selects environment variables; empty uses MOLSYNC_.
	EnvPrefix string
	// Environ replaces the process environment when non-nil.
	Environ []string
	// Overrides are applied last, keyed by dotted path.
	Overrides map[string]any
	// FS replaces the OS file system.
	FS loader.FileSystem
}

// Load builds a validated Config from all sources.
func Load(opts Options) (*Config, error) {
	merged, err := toMap(Default())
	if err != nil {
		return nil, err
	}

	if opts.Path != "" {
		fl, err := loader.ForPath(opts.FS, opts.Path)
		if err != nil {
			return nil, err
		}
		fileMap, err := fl.Load()
		if err != nil {
			return nil, err
		}
		if fileMap == nil {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, opts.Path)
		}
		merged = loader.DeepMerge(merged, fileMap)
	}

	prefix := opts.EnvPrefix
	if prefix == "" {
		prefix = loader.DefaultEnvPrefix
	}
	var env *loader.EnvLoader
	if opts.Environ != nil {
		env = loader.NewEnvLoaderFrom(prefix, opts.Environ)
	} else {
		env = loader.NewEnvLoader(prefix)
	}
	envMap, err := env.Load()
	if err != nil {
		return nil, err
	}
	merged = loader.DeepMerge(merged, envMap)

	over := make(map[string]any)
	for path, v := range opts.Overrides {
		loader.SetPath(over, path, v)
	}
	merged = loader.DeepMerge(merged, over)

	cfg, err := fromMap(merged)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error
	positive := func(path string, d time.Duration) {
		if d <= 0 {
			errs = append(errs, &ValidationError{Path: path, Value: d, Message: "must be positive"})
		}
	}
	positive("sync.outboundDelay", c.Sync.OutboundDelay)
	positive("sync.inboundDelay", c.Sync.InboundDelay)
	positive("sync.pollInterval", c.Sync.PollInterval)
	positive("sync.callTimeout", c.Sync.CallTimeout)
	positive("lookup.timeout", c.Lookup.Timeout)

	if _, err := molecule.ParseMolfileVersion(c.Sync.StructureVersion); err != nil {
		errs = append(errs, &ValidationError{Path: "sync.structureVersion", Value: c.Sync.StructureVersion, Message: err.Error()})
	}
	if !logging.ValidLevel(c.Logging.Level) {
		errs = append(errs, &ValidationError{Path: "logging.level", Value: c.Logging.Level, Message: "unknown level"})
	}
	if c.Lookup.CacheSize < 0 {
		errs = append(errs, &ValidationError{Path: "lookup.cacheSize", Value: c.Lookup.CacheSize, Message: "must not be negative"})
	}
	for i, p := range c.Presets {
		if p.Name == "" || molecule.Normalize(p.Text) == "" {
			errs = append(errs, &ValidationError{Path: fmt.Sprintf("presets[%d]", i), Value: p, Message: "name and text are required"})
		}
	}
	return multierr.Combine(errs...)
}

// StructureVersion returns the parsed structure file version.
func (c *Config) StructureVersion() molecule.MolfileVersion {
	v, err := molecule.ParseMolfileVersion(c.Sync.StructureVersion)
	if err != nil {
		return molecule.VersionLegacy
	}
	return v
}

// toMap turns a Config into the plain map form used for merging.
func toMap(c *Config) (map[string]any, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return m, nil
}

// fromMap decodes a merged map. Durations may be given as strings such as
// "400ms"; unknown keys are rejected.
func fromMap(m map[string]any) (*Config, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return cfg, nil
}
