package detector

import (
	"fmt"
	"strings"

	"cql-guard/internal/analyzer"
	"cql-guard/internal/model"
)

// AllowFilteringDetector flags queries carrying ALLOW FILTERING.
type AllowFilteringDetector struct {
	cfg      Config
	analyzer *analyzer.Analyzer
}

func NewAllowFilteringDetector(cfg Config) *AllowFilteringDetector {
	return &AllowFilteringDetector{cfg: cfg, analyzer: analyzer.New()}
}

func (d *AllowFilteringDetector) Name() string  { return "allow_filtering" }
func (d *AllowFilteringDetector) Enabled() bool { return d.cfg.Enabled }

func (d *AllowFilteringDetector) Detect(call model.CallSite) ([]model.Issue, error) {
	analysis := d.analyzer.Analyze(call.Query)
	if !analysis.HasAllowFiltering {
		return nil, nil
	}

	evidence := []string{fmt.Sprintf("query kind: %s", analysis.Kind)}
	if len(analysis.Tables) > 0 {
		evidence = append(evidence, "tables: "+strings.Join(analysis.Tables, ", "))
	}
	if analysis.Where != nil {
		evidence = append(evidence, "where: "+analysis.Where.Raw)
	}

	// ALLOW FILTERING is a lexical match, so confidence is fixed at 1.0.
	issue, err := model.NewIssue(
		d.Name(),
		model.IssueAllowFiltering,
		d.cfg.baseSeverity(model.SeverityHigh),
		call,
		"Query uses ALLOW FILTERING, which can scan the whole cluster",
		"Restructure the query or table so the filter hits the partition key, then drop ALLOW FILTERING.",
		evidence,
		1.0,
	)
	if err != nil {
		return nil, err
	}
	return []model.Issue{issue}, nil
}

// PartitionKeyDetector flags SELECTs whose WHERE clause gives no evidence of
// partition key usage. The partition key is inferred, never checked against a
// schema, so confidence is reported below 1.0.
type PartitionKeyDetector struct {
	cfg         Config
	analyzer    *analyzer.Analyzer
	knownTables map[string]struct{}
	tableOrder  []string
}

func NewPartitionKeyDetector(cfg Config) *PartitionKeyDetector {
	return &PartitionKeyDetector{
		cfg:         cfg,
		analyzer:    analyzer.New(),
		knownTables: make(map[string]struct{}),
	}
}

func (d *PartitionKeyDetector) Name() string  { return "partition_key" }
func (d *PartitionKeyDetector) Enabled() bool { return d.cfg.Enabled }

// KnownTables returns the tables seen across all calls so far, in order of
// first appearance. This is the detector's only accumulated state; it is
// owned by the instance and must not be shared across goroutines.
func (d *PartitionKeyDetector) KnownTables() []string {
	tables := make([]string, len(d.tableOrder))
	copy(tables, d.tableOrder)
	return tables
}

func (d *PartitionKeyDetector) Detect(call model.CallSite) ([]model.Issue, error) {
	analysis := d.analyzer.Analyze(call.Query)

	for _, table := range analysis.Tables {
		if _, ok := d.knownTables[table]; !ok {
			d.knownTables[table] = struct{}{}
			d.tableOrder = append(d.tableOrder, table)
		}
	}

	if analysis.Kind != model.KindSelect || analysis.UsesPartitionKey {
		return nil, nil
	}

	var evidence []string
	rangeOnly := false
	if analysis.Where != nil {
		evidence = append(evidence, "where columns: "+strings.Join(analysis.Where.Columns, ", "))
		rangeOnly = analysis.Where.HasRange && !analysis.Where.HasEquality && !analysis.Where.HasIn
	} else {
		evidence = append(evidence, "no WHERE clause")
	}
	evidence = append(evidence, fmt.Sprintf("range-only condition: %v", rangeOnly))
	if analysis.HasAllowFiltering {
		evidence = append(evidence, "compounded by ALLOW FILTERING on the same query")
	}

	issue, err := model.NewIssue(
		d.Name(),
		model.IssueNoPartitionKey,
		d.cfg.baseSeverity(model.SeverityCritical),
		call,
		"SELECT without an equality filter; no partition key usage could be inferred",
		"Filter on the partition key with an equality condition to avoid a full scan.",
		evidence,
		0.9,
	)
	if err != nil {
		return nil, err
	}
	return []model.Issue{issue}, nil
}
