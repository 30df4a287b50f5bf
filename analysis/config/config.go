// Package config holds the options of the propagation engine and the
// logging facilities shared by all analysis packages.
package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config contains the options of a points-to analysis run.
// If some field is not defined in the config file, it keeps its default value.
type Config struct {
	// Workers is the number of goroutines pulling tasks from the scheduler queue.
	// Zero or negative means one per available CPU.
	Workers int `yaml:"workers"`

	// LogLevel controls the verbosity of the log group, see LogLevel.
	LogLevel int `yaml:"log-level"`

	// StringConstantLimit is the number of distinct constants an abstract string
	// may hold before it is widened to ⊤.
	StringConstantLimit int `yaml:"string-constant-limit"`

	// CollapseCycles enables the offline pass collapsing unfiltered copy-edge
	// cycles that propagation has not discovered.
	CollapseCycles bool `yaml:"collapse-cycles"`

	// NoColorize disables coloured pretty printing.
	NoColorize bool `yaml:"no-colorize"`

	sourceFile string
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Workers:             runtime.NumCPU(),
		LogLevel:            int(InfoLevel),
		StringConstantLimit: 16,
		CollapseCycles:      true,
	}
}

// Load reads a YAML configuration file. Unset options keep their defaults.
func Load(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file %s: %w", filename, err)
	}

	cfg, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("could not load config file %s: %w", filename, err)
	}
	cfg.sourceFile = filename
	return cfg, nil
}

// Parse decodes a YAML configuration. Unset options keep their defaults.
func Parse(b []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.StringConstantLimit < 1 {
		return fmt.Errorf("string-constant-limit must be positive, got %d", c.StringConstantLimit)
	}
	if c.LogLevel < int(ErrLevel) || c.LogLevel > int(TraceLevel) {
		return fmt.Errorf("log-level must be between %d and %d, got %d", ErrLevel, TraceLevel, c.LogLevel)
	}
	return nil
}

// SourceFile is the file the configuration was loaded from, if any.
func (c *Config) SourceFile() string {
	return c.sourceFile
}
