package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"cql-guard/internal/model"
)

// JSONReporter writes issues as one indented JSON document with summary
// counts, for downstream tooling.
type JSONReporter struct {
	out io.Writer
}

func NewJSONReporter(out io.Writer) *JSONReporter {
	if out == nil {
		out = os.Stdout
	}
	return &JSONReporter{out: out}
}

type jsonReport struct {
	TotalIssues int                    `json:"total_issues"`
	BySeverity  map[model.Severity]int `json:"by_severity"`
	ByType      map[string]int         `json:"by_type"`
	Issues      []model.Issue          `json:"issues"`
}

func (r *JSONReporter) Report(issues []model.Issue) error {
	report := jsonReport{
		TotalIssues: len(issues),
		BySeverity:  make(map[model.Severity]int),
		ByType:      make(map[string]int),
		Issues:      issues,
	}
	for _, issue := range issues {
		report.BySeverity[issue.Severity]++
		report.ByType[issue.Type]++
	}

	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
