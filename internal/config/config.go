// Package config loads the tool configuration from a YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"cql-guard/internal/analyzer"
	"cql-guard/internal/detector"
	"cql-guard/internal/evaluation"
)

// Config is the file-level configuration. Detector settings are flat
// key/value maps handed to detector.ParseConfig, so unrecognized keys in a
// detector block are ignored rather than rejected.
type Config struct {
	BatchThreshold int                       `yaml:"batch_threshold"`
	Tolerance      int                       `yaml:"tolerance"`
	Extensions     []string                  `yaml:"extensions"`
	Excludes       []string                  `yaml:"excludes"`
	Detectors      map[string]map[string]any `yaml:"detectors"`
}

func Default() Config {
	return Config{
		BatchThreshold: analyzer.DefaultLargeBatchThreshold,
		Tolerance:      evaluation.DefaultTolerance,
		Extensions:     []string{"java", "py", "go", "scala", "kt"},
		Excludes:       []string{"vendor", "node_modules", "*_test.go", "*Test.java"},
	}
}

// Load reads a YAML config file. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.BatchThreshold <= 0 {
		cfg.BatchThreshold = analyzer.DefaultLargeBatchThreshold
	}
	if cfg.Tolerance < 0 {
		return Config{}, fmt.Errorf("config %s: tolerance must not be negative", path)
	}
	return cfg, nil
}

// DetectorConfig resolves the settings block for one detector name.
// Absent blocks yield the defaults.
func (c Config) DetectorConfig(name string) (detector.Config, error) {
	settings, ok := c.Detectors[name]
	if !ok {
		cfg := detector.DefaultConfig()
		cfg.BatchThreshold = c.BatchThreshold
		return cfg, nil
	}
	cfg, err := detector.ParseConfig(settings)
	if err != nil {
		return detector.Config{}, fmt.Errorf("detector %s: %w", name, err)
	}
	if cfg.BatchThreshold == 0 {
		cfg.BatchThreshold = c.BatchThreshold
	}
	return cfg, nil
}
