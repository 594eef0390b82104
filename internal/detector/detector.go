// Package detector implements the anti-pattern detectors and the registry
// that runs them over extracted call sites.
package detector

import (
	"fmt"

	"cql-guard/internal/model"
)

// Detector examines one call site and reports any issues it finds.
// Implementations must not mutate or retain the CallSite; any history kept
// across calls lives in detector-owned state behind a read accessor.
type Detector interface {
	// Name returns the unique identifier of the detector
	Name() string
	// Enabled reports whether the detector should run by default
	Enabled() bool
	// Detect examines the call site and returns any issues found
	Detect(call model.CallSite) ([]model.Issue, error)
}

// Config carries the per-instance detector settings. The zero value is not
// useful; start from DefaultConfig.
type Config struct {
	Enabled        bool
	Severity       model.Severity // optional base-severity override, empty for the detector default
	Threshold      int
	BatchThreshold int
	MinExecutions  int
}

func DefaultConfig() Config {
	return Config{Enabled: true}
}

// ParseConfig builds a Config from a flat settings map as found in a config
// file. Recognized keys are enabled, severity, threshold, batch_threshold and
// min_executions; unrecognized keys are ignored and missing keys keep their
// defaults. A recognized key with an unusable value is an error.
func ParseConfig(settings map[string]any) (Config, error) {
	cfg := DefaultConfig()
	for key, value := range settings {
		switch key {
		case "enabled":
			b, ok := value.(bool)
			if !ok {
				return Config{}, fmt.Errorf("enabled: expected bool, got %T", value)
			}
			cfg.Enabled = b
		case "severity":
			s, ok := value.(string)
			if !ok {
				return Config{}, fmt.Errorf("severity: expected string, got %T", value)
			}
			sev, err := model.ParseSeverity(s)
			if err != nil {
				return Config{}, err
			}
			cfg.Severity = sev
		case "threshold":
			n, err := asInt(value)
			if err != nil {
				return Config{}, fmt.Errorf("threshold: %w", err)
			}
			cfg.Threshold = n
		case "batch_threshold":
			n, err := asInt(value)
			if err != nil {
				return Config{}, fmt.Errorf("batch_threshold: %w", err)
			}
			cfg.BatchThreshold = n
		case "min_executions":
			n, err := asInt(value)
			if err != nil {
				return Config{}, fmt.Errorf("min_executions: %w", err)
			}
			cfg.MinExecutions = n
		}
	}
	return cfg, nil
}

func asInt(value any) (int, error) {
	switch n := value.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	}
	return 0, fmt.Errorf("expected number, got %T", value)
}

// baseSeverity resolves the severity a detector reports at: the configured
// override when present, otherwise the detector's default.
func (c Config) baseSeverity(fallback model.Severity) model.Severity {
	if c.Severity != "" {
		return c.Severity
	}
	return fallback
}
