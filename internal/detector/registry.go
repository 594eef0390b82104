package detector

import (
	"fmt"

	"cql-guard/internal/log"
	"cql-guard/internal/model"
)

// Failure records one detector error or panic that was isolated during a run.
type Failure struct {
	Detector string
	FilePath string
	Line     int
	Err      error
}

type entry struct {
	detector Detector
	enabled  bool
}

// Registry holds named detectors and runs the enabled ones over call sites.
// It is not safe for concurrent use; shard call sites across separate
// registries instead.
type Registry struct {
	entries map[string]*entry
	order   []string
	logger  *log.Logger
}

func NewRegistry(logger *log.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

// Register adds a detector under its own name. Registering a duplicate name
// is an error.
func (r *Registry) Register(d Detector) error {
	name := d.Name()
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("detector %q already registered", name)
	}
	r.entries[name] = &entry{detector: d, enabled: d.Enabled()}
	r.order = append(r.order, name)
	return nil
}

// Unregister removes a detector by name.
func (r *Registry) Unregister(name string) error {
	if _, exists := r.entries[name]; !exists {
		return fmt.Errorf("detector %q not registered", name)
	}
	delete(r.entries, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Enable turns a registered detector on.
func (r *Registry) Enable(name string) error {
	return r.setEnabled(name, true)
}

// Disable turns a registered detector off without removing it.
func (r *Registry) Disable(name string) error {
	return r.setEnabled(name, false)
}

func (r *Registry) setEnabled(name string, enabled bool) error {
	e, exists := r.entries[name]
	if !exists {
		return fmt.Errorf("detector %q not registered", name)
	}
	e.enabled = enabled
	return nil
}

// Names returns the registered detector names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// RunAll runs every enabled detector over every call and concatenates the
// results. A failing detector is logged and recorded as a Failure but never
// aborts the remaining detectors or calls.
func (r *Registry) RunAll(calls []model.CallSite) ([]model.Issue, []Failure) {
	var issues []model.Issue
	var failures []Failure

	for _, call := range calls {
		for _, name := range r.order {
			e := r.entries[name]
			if !e.enabled {
				continue
			}
			found, err := safeDetect(e.detector, call)
			if err != nil {
				r.logger.Printf("detector %s failed on %s: %v", name, call.Location(), err)
				failures = append(failures, Failure{
					Detector: name,
					FilePath: call.FilePath,
					Line:     call.Line,
					Err:      err,
				})
				continue
			}
			issues = append(issues, found...)
		}
	}

	return issues, failures
}

// RunAllByFile runs the enabled detectors and groups the resulting issues by
// file path, the shape the evaluator consumes.
func (r *Registry) RunAllByFile(calls []model.CallSite) (map[string][]model.Issue, []Failure) {
	issues, failures := r.RunAll(calls)
	byFile := make(map[string][]model.Issue)
	for _, issue := range issues {
		byFile[issue.FilePath] = append(byFile[issue.FilePath], issue)
	}
	return byFile, failures
}

func safeDetect(d Detector, call model.CallSite) (issues []model.Issue, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			issues = nil
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return d.Detect(call)
}
