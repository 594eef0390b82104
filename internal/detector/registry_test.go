package detector

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"cql-guard/internal/log"
	"cql-guard/internal/model"
)

// stubDetector for registry tests
type stubDetector struct {
	name    string
	enabled bool
	issues  []model.Issue
	err     error
	panics  bool
	calls   int
}

func (s *stubDetector) Name() string  { return s.name }
func (s *stubDetector) Enabled() bool { return s.enabled }
func (s *stubDetector) Detect(call model.CallSite) ([]model.Issue, error) {
	s.calls++
	if s.panics {
		panic("stub detector exploded")
	}
	return append([]model.Issue(nil), s.issues...), s.err
}

func testIssue(detector string) model.Issue {
	return model.Issue{
		Detector:   detector,
		Type:       model.IssueSelectStar,
		Severity:   model.SeverityLow,
		FilePath:   "a.java",
		Line:       1,
		Confidence: 1.0,
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.Register(&stubDetector{name: "one", enabled: true}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(&stubDetector{name: "one", enabled: true}); err == nil {
		t.Error("expected error registering a duplicate name")
	}
	if err := r.Unregister("one"); err != nil {
		t.Fatalf("Unregister() error = %v", err)
	}
	if err := r.Unregister("one"); err == nil {
		t.Error("expected error unregistering an unknown name")
	}
}

func TestRegistry_RunAll(t *testing.T) {
	r := NewRegistry(nil)
	first := &stubDetector{name: "first", enabled: true, issues: []model.Issue{testIssue("first")}}
	second := &stubDetector{name: "second", enabled: true, issues: []model.Issue{testIssue("second")}}
	disabled := &stubDetector{name: "off", enabled: false, issues: []model.Issue{testIssue("off")}}
	for _, d := range []Detector{first, second, disabled} {
		if err := r.Register(d); err != nil {
			t.Fatal(err)
		}
	}

	calls := []model.CallSite{{Query: "SELECT 1"}, {Query: "SELECT 2"}}
	issues, failures := r.RunAll(calls)
	if len(failures) != 0 {
		t.Fatalf("failures = %v", failures)
	}
	if len(issues) != 4 {
		t.Errorf("got %d issues, want 4 (2 detectors x 2 calls)", len(issues))
	}
	if disabled.calls != 0 {
		t.Errorf("disabled detector ran %d times", disabled.calls)
	}
}

func TestRegistry_IsolatesFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := &log.Logger{Enabled: true, W: &buf}
	r := NewRegistry(logger)

	failing := &stubDetector{name: "failing", enabled: true, err: errors.New("boom")}
	panicking := &stubDetector{name: "panicking", enabled: true, panics: true}
	healthy := &stubDetector{name: "healthy", enabled: true, issues: []model.Issue{testIssue("healthy")}}
	for _, d := range []Detector{failing, panicking, healthy} {
		if err := r.Register(d); err != nil {
			t.Fatal(err)
		}
	}

	issues, failures := r.RunAll([]model.CallSite{{Query: "SELECT 1", FilePath: "a.java", Line: 3}})
	if len(issues) != 1 || issues[0].Detector != "healthy" {
		t.Errorf("issues = %v, want only the healthy detector's", issues)
	}
	if len(failures) != 2 {
		t.Fatalf("got %d failures, want 2", len(failures))
	}
	if healthy.calls != 1 {
		t.Error("healthy detector should still have run")
	}
	logged := buf.String()
	if !strings.Contains(logged, "failing") || !strings.Contains(logged, "panicking") {
		t.Errorf("log output %q should name both failed detectors", logged)
	}
}

func TestRegistry_EnableDisable(t *testing.T) {
	r := NewRegistry(nil)
	d := &stubDetector{name: "toggle", enabled: true, issues: []model.Issue{testIssue("toggle")}}
	if err := r.Register(d); err != nil {
		t.Fatal(err)
	}

	if err := r.Disable("toggle"); err != nil {
		t.Fatal(err)
	}
	issues, _ := r.RunAll([]model.CallSite{{Query: "SELECT 1"}})
	if len(issues) != 0 {
		t.Errorf("disabled detector produced %d issues", len(issues))
	}

	if err := r.Enable("toggle"); err != nil {
		t.Fatal(err)
	}
	issues, _ = r.RunAll([]model.CallSite{{Query: "SELECT 1"}})
	if len(issues) != 1 {
		t.Errorf("re-enabled detector produced %d issues, want 1", len(issues))
	}

	if err := r.Enable("missing"); err == nil {
		t.Error("expected error enabling an unknown detector")
	}
}

func TestRegistry_RunAllByFile(t *testing.T) {
	r := NewRegistry(nil)
	d := NewPreparedStatementDetector(DefaultConfig())
	if err := r.Register(d); err != nil {
		t.Fatal(err)
	}

	calls := []model.CallSite{
		{Query: "SELECT 1", FilePath: "a.java", Line: 1},
		{Query: "SELECT 2", FilePath: "b.java", Line: 2},
		{Query: "SELECT 3", FilePath: "a.java", Line: 3},
	}
	byFile, failures := r.RunAllByFile(calls)
	if len(failures) != 0 {
		t.Fatalf("failures = %v", failures)
	}
	if len(byFile["a.java"]) != 2 || len(byFile["b.java"]) != 1 {
		t.Errorf("byFile = %v, want 2 issues for a.java and 1 for b.java", byFile)
	}
}

func TestParseConfig(t *testing.T) {
	t.Run("full settings", func(t *testing.T) {
		cfg, err := ParseConfig(map[string]any{
			"enabled":         false,
			"severity":        "HIGH",
			"threshold":       7,
			"batch_threshold": 50,
			"min_executions":  3,
			"mystery_knob":    "ignored",
		})
		if err != nil {
			t.Fatalf("ParseConfig() error = %v", err)
		}
		if cfg.Enabled || cfg.Severity != model.SeverityHigh || cfg.Threshold != 7 ||
			cfg.BatchThreshold != 50 || cfg.MinExecutions != 3 {
			t.Errorf("cfg = %+v", cfg)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		cfg, err := ParseConfig(nil)
		if err != nil {
			t.Fatalf("ParseConfig() error = %v", err)
		}
		if !cfg.Enabled || cfg.Severity != "" || cfg.Threshold != 0 {
			t.Errorf("cfg = %+v, want defaults", cfg)
		}
	})

	t.Run("yaml numbers", func(t *testing.T) {
		cfg, err := ParseConfig(map[string]any{"threshold": float64(9)})
		if err != nil {
			t.Fatalf("ParseConfig() error = %v", err)
		}
		if cfg.Threshold != 9 {
			t.Errorf("Threshold = %d, want 9", cfg.Threshold)
		}
	})

	t.Run("bad values", func(t *testing.T) {
		if _, err := ParseConfig(map[string]any{"enabled": "yes"}); err == nil {
			t.Error("expected error for non-bool enabled")
		}
		if _, err := ParseConfig(map[string]any{"severity": "SEVERE"}); err == nil {
			t.Error("expected error for unknown severity")
		}
		if _, err := ParseConfig(map[string]any{"threshold": "many"}); err == nil {
			t.Error("expected error for non-numeric threshold")
		}
	})
}

func TestEnriched(t *testing.T) {
	inner := &stubDetector{name: "inner", enabled: true, issues: []model.Issue{testIssue("inner")}}

	t.Run("applies enrichment", func(t *testing.T) {
		d := NewEnriched(inner, enricherFunc(func(issue model.Issue) (model.Issue, error) {
			issue.Confidence = 0.5
			return issue, nil
		}))
		issues, err := d.Detect(model.CallSite{})
		if err != nil {
			t.Fatal(err)
		}
		if issues[0].Confidence != 0.5 {
			t.Errorf("Confidence = %v, want 0.5", issues[0].Confidence)
		}
	})

	t.Run("failure keeps original", func(t *testing.T) {
		d := NewEnriched(inner, enricherFunc(func(issue model.Issue) (model.Issue, error) {
			return model.Issue{}, errors.New("upstream unavailable")
		}))
		issues, err := d.Detect(model.CallSite{})
		if err != nil {
			t.Fatal(err)
		}
		if issues[0].Confidence != 1.0 {
			t.Errorf("Confidence = %v, want the original 1.0", issues[0].Confidence)
		}
	})

	t.Run("invalid enrichment keeps original", func(t *testing.T) {
		d := NewEnriched(inner, enricherFunc(func(issue model.Issue) (model.Issue, error) {
			issue.Confidence = 3.0
			return issue, nil
		}))
		issues, err := d.Detect(model.CallSite{})
		if err != nil {
			t.Fatal(err)
		}
		if issues[0].Confidence != 1.0 {
			t.Errorf("Confidence = %v, want the original 1.0", issues[0].Confidence)
		}
	})
}

type enricherFunc func(model.Issue) (model.Issue, error)

func (f enricherFunc) Enrich(issue model.Issue) (model.Issue, error) { return f(issue) }
