package model

import "fmt"

// Severity defines how serious a detected issue is
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Valid reports whether s is one of the four defined severities.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// AtLeast reports whether s is as severe as other or more so.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

// ParseSeverity converts a string such as "HIGH" into a Severity.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if !sev.Valid() {
		return "", fmt.Errorf("unknown severity %q", s)
	}
	return sev, nil
}

// QueryKind classifies a query by its leading statement keyword
type QueryKind string

const (
	KindSelect  QueryKind = "SELECT"
	KindInsert  QueryKind = "INSERT"
	KindUpdate  QueryKind = "UPDATE"
	KindDelete  QueryKind = "DELETE"
	KindBatch   QueryKind = "BATCH"
	KindUnknown QueryKind = "UNKNOWN"
)

// Issue type identifiers shared by the analyzer, detectors and evaluation.
const (
	IssueAllowFiltering      = "ALLOW_FILTERING"
	IssueNoPartitionKey      = "NO_PARTITION_KEY"
	IssueLargeBatch          = "LARGE_BATCH"
	IssueSelectStar          = "SELECT_STAR"
	IssueInClause            = "IN_CLAUSE"
	IssueUnpreparedStatement = "UNPREPARED_STATEMENT"
)

// CallSite is one extracted database call from source code.
// It is produced by an extractor and never mutated afterwards.
type CallSite struct {
	MethodName       string
	Query            string
	Line             int
	IsPrepared       bool
	ConsistencyLevel string // empty when unknown
	FilePath         string
	ClassName        string // empty when unknown
	MethodContext    string // empty when unknown
}

func (c CallSite) Location() string {
	return fmt.Sprintf("%s:%d", c.FilePath, c.Line)
}

// WhereClause is the heuristic shape of a query's WHERE clause.
type WhereClause struct {
	Columns     []string // deduplicated, original case, in order of appearance
	HasEquality bool
	HasIn       bool
	HasRange    bool
	Raw         string
}

// QueryAnalysis is the structured result of analyzing one query string.
//
// UsesPartitionKey is an estimate only: it is true exactly when the WHERE
// clause contains an equality condition. No schema is consulted, so an
// equality on a non-key column still counts. Callers must treat it as a
// heuristic signal, not a verified fact.
type QueryAnalysis struct {
	Kind                QueryKind
	HasAllowFiltering   bool
	UsesPartitionKey    bool
	IsBatch             bool
	BatchStatementCount int
	Tables              []string // deduplicated, original case
	Where               *WhereClause
	HasSelectStar       bool
	DerivedIssues       []RawIssue
}

// RawIssue is an analyzer-level finding. File and line are unknown at this
// layer; a detector promotes it into a full Issue.
type RawIssue struct {
	Type           string
	Severity       Severity
	Message        string
	Recommendation string
}

// Issue is a potential problem reported by a detector.
type Issue struct {
	Detector       string   `json:"detector"`
	Type           string   `json:"type"`
	Severity       Severity `json:"severity"`
	FilePath       string   `json:"file_path"`
	Line           int      `json:"line"`
	Message        string   `json:"message"`
	Query          string   `json:"query"`
	Recommendation string   `json:"recommendation"`
	Evidence       []string `json:"evidence,omitempty"`
	Confidence     float64  `json:"confidence"`
}

// NewIssue builds an Issue for the given call and validates its severity and
// confidence. Out-of-range values indicate a bug in the calling detector and
// fail construction; they are never clamped.
func NewIssue(detector, issueType string, severity Severity, call CallSite, message, recommendation string, evidence []string, confidence float64) (Issue, error) {
	issue := Issue{
		Detector:       detector,
		Type:           issueType,
		Severity:       severity,
		FilePath:       call.FilePath,
		Line:           call.Line,
		Message:        message,
		Query:          call.Query,
		Recommendation: recommendation,
		Evidence:       evidence,
		Confidence:     confidence,
	}
	if err := issue.Validate(); err != nil {
		return Issue{}, err
	}
	return issue, nil
}

// Validate checks the construction invariants of an Issue.
func (i Issue) Validate() error {
	if !i.Severity.Valid() {
		return fmt.Errorf("issue %s: invalid severity %q", i.Type, i.Severity)
	}
	if i.Confidence < 0 || i.Confidence > 1 {
		return fmt.Errorf("issue %s: confidence %v outside [0, 1]", i.Type, i.Confidence)
	}
	return nil
}

func (i Issue) Location() string {
	return fmt.Sprintf("%s:%d", i.FilePath, i.Line)
}
