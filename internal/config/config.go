// Package config loads the optional YAML configuration file. Every field
// has a usable default so the tool runs with no config at all; flags
// override whatever the file set.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full on-disk configuration.
type Config struct {
	ADB       ADB       `yaml:"adb"`
	Wipe      Wipe      `yaml:"wipe"`
	Logging   Logging   `yaml:"logging"`
	Reporting Reporting `yaml:"reporting"`
}

// ADB configures how the device bridge is reached and where temporary
// data lives on the device.
type ADB struct {
	// Binary is the adb executable, resolved via PATH when bare.
	Binary string `yaml:"binary"`
	// Mount is the writable mount whose free space gets overwritten.
	Mount string `yaml:"mount"`
	// TempPrefix prefixes per-run temp directories under Mount.
	TempPrefix string `yaml:"temp_prefix"`
}

// Wipe holds the wipe defaults that flags can override.
type Wipe struct {
	Mode        string `yaml:"mode"`
	Passes      int    `yaml:"passes"`
	ChunkSize   string `yaml:"chunk_size"`
	FillPercent int    `yaml:"fill_percent"`
	// IncrementMB is MiB written between progress reports and free-space
	// re-checks on the device.
	IncrementMB int `yaml:"increment_mb"`
	// OutputTimeout is how long the device may stay silent before the run
	// is treated as lost, e.g. "2m".
	OutputTimeout string `yaml:"output_timeout"`
}

// Logging configures the console and audit-file sinks.
type Logging struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Reporting configures the per-run JSON report.
type Reporting struct {
	Enabled   bool   `yaml:"enabled"`
	LocalPath string `yaml:"local_path"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		ADB: ADB{
			Binary:     "adb",
			Mount:      "/sdcard",
			TempPrefix: "securewipe_",
		},
		Wipe: Wipe{
			Mode:          "full",
			Passes:        1,
			ChunkSize:     "1G",
			FillPercent:   95,
			IncrementMB:   128,
			OutputTimeout: "2m",
		},
		Logging: Logging{
			Level:      "info",
			File:       "logs/securewipe.log",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Reporting: Reporting{
			Enabled:   true,
			LocalPath: "reports",
		},
	}
}

// Load reads the config at path, layered over the defaults. A missing file
// is not an error: the defaults are returned as-is. An unreadable or
// malformed file is an error, since running with silently-dropped settings
// would surprise the operator.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields the flag layer does not re-validate.
func (c *Config) Validate() error {
	if c.ADB.Binary == "" {
		return fmt.Errorf("adb.binary must not be empty")
	}
	if c.ADB.Mount == "" || c.ADB.Mount[0] != '/' {
		return fmt.Errorf("adb.mount must be an absolute device path, got %q", c.ADB.Mount)
	}
	if c.ADB.TempPrefix == "" {
		return fmt.Errorf("adb.temp_prefix must not be empty")
	}
	if c.Wipe.IncrementMB <= 0 {
		return fmt.Errorf("wipe.increment_mb must be positive, got %d", c.Wipe.IncrementMB)
	}
	if _, err := c.OutputTimeout(); err != nil {
		return err
	}
	return nil
}

// OutputTimeout parses the configured silence budget.
func (c *Config) OutputTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Wipe.OutputTimeout)
	if err != nil {
		return 0, fmt.Errorf("wipe.output_timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("wipe.output_timeout must be positive, got %s", d)
	}
	return d, nil
}
