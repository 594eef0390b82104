package extractor

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"cql-guard/internal/model"
)

// Patterns for quoted CQL strings. Non-greedy *? stops at the first closing
// quote; Go's RE2 has no backreferences, so each quote style gets its own
// pattern.
var (
	cqlStart       = `(?:SELECT|INSERT|UPDATE|DELETE|BEGIN\s+(?:UNLOGGED\s+|COUNTER\s+)?BATCH)`
	doubleQuoteCQL = regexp.MustCompile(`"(?i)` + cqlStart + `\b.*?"`)
	singleQuoteCQL = regexp.MustCompile(`'(?i)` + cqlStart + `\b.*?'`)
	backTickCQL    = regexp.MustCompile("`(?i)" + cqlStart + "\\b.*?`")

	quotePatterns = []*regexp.Regexp{doubleQuoteCQL, singleQuoteCQL, backTickCQL}

	// The call expression the quoted string appears inside, e.g.
	// session.execute("..."). The last match before the quote wins.
	callRe = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

	preparedRe    = regexp.MustCompile(`(?i)\b(?:prepare|preparestatement|prepared|boundstatement|bind)\b`)
	consistencyRe = regexp.MustCompile(`(?i)consistency(?:_level|Level)?\s*[.=:(]\s*"?'?([A-Za-z_]+)`)

	classRe  = regexp.MustCompile(`\bclass\s+([A-Za-z_][A-Za-z0-9_]*)`)
	methodRe = regexp.MustCompile(`(?:\bdef\s+|\bfunc\s+(?:\([^)]*\)\s*)?|\b(?:public|private|protected)\s+(?:static\s+)?[A-Za-z_][A-Za-z0-9_<>\[\]]*\s+)([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
)

// RegexExtractor finds CQL call sites by scanning lines for quoted query
// strings. It is a heuristic: multi-line string literals and queries built at
// runtime are missed, and line numbers point at the quote, not the statement.
type RegexExtractor struct{}

func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{}
}

func (e *RegexExtractor) Extract(filePath string, content []byte) ([]model.CallSite, error) {
	var calls []model.CallSite

	currentClass := ""
	currentMethod := ""

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		if m := classRe.FindStringSubmatch(line); m != nil {
			currentClass = m[1]
		}
		if m := methodRe.FindStringSubmatch(line); m != nil && !strings.Contains(line, `"`) {
			currentMethod = m[1]
		}

		for _, re := range quotePatterns {
			for _, loc := range re.FindAllStringIndex(line, -1) {
				match := line[loc[0]:loc[1]]
				if len(match) < 2 {
					continue
				}
				calls = append(calls, model.CallSite{
					MethodName:       callMethodName(line[:loc[0]]),
					Query:            match[1 : len(match)-1],
					Line:             lineNo,
					IsPrepared:       preparedRe.MatchString(line),
					ConsistencyLevel: consistencyLevel(line),
					FilePath:         filePath,
					ClassName:        currentClass,
					MethodContext:    currentMethod,
				})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return calls, nil
}

// callMethodName returns the name of the innermost call expression preceding
// the query string, or empty when the string stands alone.
func callMethodName(prefix string) string {
	matches := callRe.FindAllStringSubmatch(prefix, -1)
	if len(matches) == 0 {
		return ""
	}
	return matches[len(matches)-1][1]
}

func consistencyLevel(line string) string {
	if m := consistencyRe.FindStringSubmatch(line); m != nil {
		return strings.ToUpper(m[1])
	}
	return ""
}

// Manager selects the appropriate extractor based on file extension
type Manager struct {
	extractors map[string]model.Extractor
	fallback   model.Extractor
}

func NewManager() *Manager {
	return &Manager{
		extractors: make(map[string]model.Extractor),
		fallback:   NewRegexExtractor(),
	}
}

func (m *Manager) Register(ext string, extr model.Extractor) {
	m.extractors[strings.ToLower(ext)] = extr
}

func (m *Manager) Extract(filePath string) ([]model.CallSite, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filePath), "."))
	if extr, ok := m.extractors[ext]; ok {
		return extr.Extract(filePath, content)
	}
	return m.fallback.Extract(filePath, content)
}
