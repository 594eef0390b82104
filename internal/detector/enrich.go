package detector

import "cql-guard/internal/model"

// Enricher is an external collaborator that may refine an issue, for example
// by adjusting confidence or appending reasoning. Implementations live
// outside this module.
type Enricher interface {
	Enrich(issue model.Issue) (model.Issue, error)
}

// Enriched wraps a detector and passes every issue it produces through an
// Enricher. When enrichment fails, or returns an issue that no longer
// validates, the original issue is kept unchanged.
type Enriched struct {
	inner    Detector
	enricher Enricher
}

func NewEnriched(inner Detector, enricher Enricher) *Enriched {
	return &Enriched{inner: inner, enricher: enricher}
}

func (d *Enriched) Name() string  { return d.inner.Name() }
func (d *Enriched) Enabled() bool { return d.inner.Enabled() }

func (d *Enriched) Detect(call model.CallSite) ([]model.Issue, error) {
	issues, err := d.inner.Detect(call)
	if err != nil {
		return nil, err
	}
	for i, issue := range issues {
		enriched, err := d.enricher.Enrich(issue)
		if err != nil {
			continue
		}
		if enriched.Validate() != nil {
			continue
		}
		issues[i] = enriched
	}
	return issues, nil
}
