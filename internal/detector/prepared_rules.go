package detector

import (
	"strings"

	"cql-guard/internal/model"
)

// Tokens in a query string that suggest it was assembled by concatenation,
// a proxy for injection risk.
var concatIndicators = []string{"+", "String.format", "StringBuilder"}

// PreparedStatementDetector flags any call that does not use a prepared
// statement, regardless of query shape.
type PreparedStatementDetector struct {
	cfg Config
}

func NewPreparedStatementDetector(cfg Config) *PreparedStatementDetector {
	return &PreparedStatementDetector{cfg: cfg}
}

func (d *PreparedStatementDetector) Name() string  { return "prepared_statement" }
func (d *PreparedStatementDetector) Enabled() bool { return d.cfg.Enabled }

func (d *PreparedStatementDetector) Detect(call model.CallSite) ([]model.Issue, error) {
	if call.IsPrepared {
		return nil, nil
	}

	evidence := []string{"method: " + call.MethodName}
	if call.ConsistencyLevel != "" {
		evidence = append(evidence, "consistency level: "+call.ConsistencyLevel)
	}

	severity := d.cfg.baseSeverity(model.SeverityLow)
	recommendation := "Use a prepared statement with bind variables instead of an inline query string."
	if indicator := concatIndicator(call.Query); indicator != "" {
		if !severity.AtLeast(model.SeverityMedium) {
			severity = model.SeverityMedium
		}
		evidence = append(evidence, "string concatenation indicator: "+indicator)
		recommendation = "SECURITY WARNING: the query appears to be built by string concatenation, which risks injection. " + recommendation
	}

	issue, err := model.NewIssue(
		d.Name(),
		model.IssueUnpreparedStatement,
		severity,
		call,
		"Query is executed without a prepared statement",
		recommendation,
		evidence,
		1.0,
	)
	if err != nil {
		return nil, err
	}
	return []model.Issue{issue}, nil
}

func concatIndicator(query string) string {
	for _, indicator := range concatIndicators {
		if strings.Contains(query, indicator) {
			return indicator
		}
	}
	return ""
}
