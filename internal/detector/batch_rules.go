package detector

import (
	"fmt"

	"cql-guard/internal/analyzer"
	"cql-guard/internal/model"
)

// BatchSizeDetector flags batches with more statements than the configured
// threshold. Counts beyond twice the threshold escalate the severity to High.
type BatchSizeDetector struct {
	cfg      Config
	analyzer *analyzer.Analyzer
}

func NewBatchSizeDetector(cfg Config) *BatchSizeDetector {
	d := &BatchSizeDetector{cfg: cfg, analyzer: analyzer.New()}
	d.analyzer.LargeBatchThreshold = d.threshold()
	return d
}

func (d *BatchSizeDetector) Name() string  { return "batch_size" }
func (d *BatchSizeDetector) Enabled() bool { return d.cfg.Enabled }

func (d *BatchSizeDetector) threshold() int {
	if d.cfg.BatchThreshold > 0 {
		return d.cfg.BatchThreshold
	}
	if d.cfg.Threshold > 0 {
		return d.cfg.Threshold
	}
	return analyzer.DefaultLargeBatchThreshold
}

func (d *BatchSizeDetector) Detect(call model.CallSite) ([]model.Issue, error) {
	analysis := d.analyzer.Analyze(call.Query)
	threshold := d.threshold()
	count := analysis.BatchStatementCount
	if !analysis.IsBatch || count <= threshold {
		return nil, nil
	}

	severity := d.cfg.baseSeverity(model.SeverityMedium)
	if count > 2*threshold && !severity.AtLeast(model.SeverityHigh) {
		severity = model.SeverityHigh
	}

	evidence := []string{
		fmt.Sprintf("statement count: %d", count),
		fmt.Sprintf("threshold: %d", threshold),
		fmt.Sprintf("overage: %d", count-threshold),
	}

	issue, err := model.NewIssue(
		d.Name(),
		model.IssueLargeBatch,
		severity,
		call,
		fmt.Sprintf("Batch contains %d statements, above the threshold of %d", count, threshold),
		fmt.Sprintf("Split the batch into %d chunks of at most %d statements each.", analyzer.ChunkCount(count, threshold), threshold),
		evidence,
		1.0,
	)
	if err != nil {
		return nil, err
	}
	return []model.Issue{issue}, nil
}
