// Package analyzer turns a raw CQL query string into a structured analysis.
//
// The analysis is intentionally heuristic: queries are scanned with regular
// expressions, not parsed against a grammar, and no schema is consulted.
// Results are approximate by design and the partition-key signal in
// particular is an estimate (see model.QueryAnalysis).
package analyzer

import (
	"math"
	"regexp"
	"strings"

	"cql-guard/internal/model"
)

// DefaultLargeBatchThreshold is the statement count above which a batch is
// flagged as oversized.
const DefaultLargeBatchThreshold = 100

var (
	whitespaceRe = regexp.MustCompile(`\s+`)

	beginBatchRe = regexp.MustCompile(`(?i)\bBEGIN\s+(?:UNLOGGED\s+|COUNTER\s+)?BATCH\b`)
	applyBatchRe = regexp.MustCompile(`(?i)\bAPPLY\s+BATCH\b`)

	// FROM/INTO/UPDATE targets. The capture keeps the original case while the
	// keyword match is case-insensitive.
	tableRe = regexp.MustCompile(`(?i)\b(?:FROM|INTO|UPDATE)\s+([A-Za-z_][A-Za-z0-9_.]*)`)

	whereRe         = regexp.MustCompile(`(?i)\bWHERE\b`)
	whereTerminalRe = regexp.MustCompile(`(?i)\b(?:ALLOW|ORDER|LIMIT|GROUP)\b`)

	equalityColRe = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*=`)
	inColRe       = regexp.MustCompile(`(?i)([A-Za-z_][A-Za-z0-9_]*)\s+IN\s*\(`)
	rangeColRe    = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*(?:<=|>=|<|>)`)
)

// Analyzer performs heuristic query analysis.
type Analyzer struct {
	// LargeBatchThreshold is the batch statement count above which a
	// LARGE_BATCH issue is derived.
	LargeBatchThreshold int
}

func New() *Analyzer {
	return &Analyzer{LargeBatchThreshold: DefaultLargeBatchThreshold}
}

// Analyze inspects a query string and returns its structured analysis.
// It is deterministic and total: malformed input degrades to an
// UNKNOWN-kind analysis with no derived issues, it never fails.
func (a *Analyzer) Analyze(query string) model.QueryAnalysis {
	normalized := strings.TrimSpace(whitespaceRe.ReplaceAllString(query, " "))
	upper := strings.ToUpper(normalized)

	analysis := model.QueryAnalysis{Kind: model.KindUnknown}
	if normalized == "" {
		return analysis
	}

	analysis.IsBatch = beginBatchRe.MatchString(normalized)
	analysis.Kind = classifyKind(upper, analysis.IsBatch)
	analysis.Tables = extractTables(normalized)
	analysis.Where = extractWhere(normalized)
	analysis.UsesPartitionKey = analysis.Where != nil && analysis.Where.HasEquality
	analysis.HasAllowFiltering = strings.Contains(upper, "ALLOW FILTERING")
	analysis.HasSelectStar = analysis.Kind == model.KindSelect && strings.Contains(upper, "SELECT *")
	if analysis.IsBatch {
		analysis.BatchStatementCount = countBatchStatements(normalized)
	}
	analysis.DerivedIssues = a.deriveIssues(analysis)

	return analysis
}

func classifyKind(upper string, isBatch bool) model.QueryKind {
	if isBatch {
		return model.KindBatch
	}
	switch {
	case strings.HasPrefix(upper, "SELECT"):
		return model.KindSelect
	case strings.HasPrefix(upper, "INSERT"):
		return model.KindInsert
	case strings.HasPrefix(upper, "UPDATE"):
		return model.KindUpdate
	case strings.HasPrefix(upper, "DELETE"):
		return model.KindDelete
	}
	return model.KindUnknown
}

func extractTables(query string) []string {
	var tables []string
	seen := make(map[string]struct{})
	for _, m := range tableRe.FindAllStringSubmatch(query, -1) {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		tables = append(tables, name)
	}
	return tables
}

// extractWhere returns the clause between WHERE and the next terminal
// keyword (ALLOW, ORDER, LIMIT, GROUP) or end of string, along with the
// columns it constrains. Returns nil when the query has no WHERE clause.
func extractWhere(query string) *model.WhereClause {
	loc := whereRe.FindStringIndex(query)
	if loc == nil {
		return nil
	}
	raw := query[loc[1]:]
	if term := whereTerminalRe.FindStringIndex(raw); term != nil {
		raw = raw[:term[0]]
	}
	raw = strings.TrimSpace(raw)

	clause := &model.WhereClause{Raw: raw}
	seen := make(map[string]struct{})
	collect := func(matches [][]string) {
		for _, m := range matches {
			col := m[1]
			if _, ok := seen[col]; ok {
				continue
			}
			seen[col] = struct{}{}
			clause.Columns = append(clause.Columns, col)
		}
	}

	if matches := inColRe.FindAllStringSubmatch(raw, -1); len(matches) > 0 {
		clause.HasIn = true
		collect(matches)
	}
	if matches := equalityColRe.FindAllStringSubmatch(raw, -1); len(matches) > 0 {
		clause.HasEquality = true
		collect(matches)
	}
	if matches := rangeColRe.FindAllStringSubmatch(raw, -1); len(matches) > 0 {
		clause.HasRange = true
		collect(matches)
	}
	return clause
}

// countBatchStatements counts the inner statements of a batch. The
// BEGIN ... BATCH and APPLY BATCH markers are stripped first so fragments
// consisting only of markers or whitespace do not count.
func countBatchStatements(query string) int {
	stripped := beginBatchRe.ReplaceAllString(query, "")
	stripped = applyBatchRe.ReplaceAllString(stripped, "")

	count := 0
	for _, fragment := range strings.Split(stripped, ";") {
		if strings.TrimSpace(fragment) != "" {
			count++
		}
	}
	return count
}

func (a *Analyzer) deriveIssues(analysis model.QueryAnalysis) []model.RawIssue {
	threshold := a.LargeBatchThreshold
	if threshold <= 0 {
		threshold = DefaultLargeBatchThreshold
	}

	var issues []model.RawIssue
	if analysis.HasAllowFiltering {
		issues = append(issues, model.RawIssue{
			Type:           model.IssueAllowFiltering,
			Severity:       model.SeverityHigh,
			Message:        "Query uses ALLOW FILTERING, which can scan the whole cluster",
			Recommendation: "Restructure the query or table so the filter hits the partition key, then drop ALLOW FILTERING.",
		})
	}
	if analysis.Kind == model.KindSelect && !analysis.UsesPartitionKey {
		issues = append(issues, model.RawIssue{
			Type:           model.IssueNoPartitionKey,
			Severity:       model.SeverityCritical,
			Message:        "SELECT without an equality filter; no partition key usage could be inferred",
			Recommendation: "Filter on the partition key with an equality condition to avoid a full scan.",
		})
	}
	if analysis.IsBatch && analysis.BatchStatementCount > threshold {
		issues = append(issues, model.RawIssue{
			Type:           model.IssueLargeBatch,
			Severity:       model.SeverityMedium,
			Message:        "Batch exceeds the configured statement threshold",
			Recommendation: "Split the batch into smaller chunks.",
		})
	}
	if analysis.HasSelectStar {
		issues = append(issues, model.RawIssue{
			Type:           model.IssueSelectStar,
			Severity:       model.SeverityLow,
			Message:        "Avoid using SELECT * in production",
			Recommendation: "List needed columns explicitly to reduce I/O and coupling to the table layout.",
		})
	}
	if analysis.Where != nil && analysis.Where.HasIn {
		issues = append(issues, model.RawIssue{
			Type:           model.IssueInClause,
			Severity:       model.SeverityLow,
			Message:        "IN clause fans the query out across partitions",
			Recommendation: "Prefer one query per key, or a table designed for the access pattern.",
		})
	}
	return issues
}

// ChunkCount returns how many chunks a batch of count statements needs so
// that no chunk exceeds threshold.
func ChunkCount(count, threshold int) int {
	if threshold <= 0 {
		return count
	}
	return int(math.Ceil(float64(count) / float64(threshold)))
}
