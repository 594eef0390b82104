package model

// Extractor is responsible for parsing a file and finding database call sites
type Extractor interface {
	// Extract parses the given file content and returns found call sites
	Extract(filePath string, content []byte) ([]CallSite, error)
}

// Reporter defines how to output results
type Reporter interface {
	Report(issues []Issue) error
}
