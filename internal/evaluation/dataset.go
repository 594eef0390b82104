// Package evaluation scores detector output against hand-annotated ground
// truth using tolerance-windowed matching and confusion-matrix statistics.
package evaluation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cql-guard/internal/log"
	"cql-guard/internal/model"
)

// GroundTruthIssue is one hand-authored reference issue.
type GroundTruthIssue struct {
	Type        string         `json:"issue_type"`
	Line        int            `json:"line_number"`
	Severity    model.Severity `json:"severity"`
	Description string         `json:"description,omitempty"`
}

// AnnotatedFile holds the ground-truth issues for one analyzed file.
type AnnotatedFile struct {
	FilePath    string             `json:"file_path"`
	GroundTruth []GroundTruthIssue `json:"ground_truth_issues"`
	Metadata    map[string]string  `json:"metadata,omitempty"`
}

// Dataset is a collection of annotated files keyed by unique file path.
type Dataset struct {
	files map[string]AnnotatedFile
	order []string
}

func NewDataset() *Dataset {
	return &Dataset{files: make(map[string]AnnotatedFile)}
}

// Add inserts an annotated file. A duplicate file path is an error.
func (d *Dataset) Add(file AnnotatedFile) error {
	if file.FilePath == "" {
		return fmt.Errorf("annotated file has no file_path")
	}
	if _, exists := d.files[file.FilePath]; exists {
		return fmt.Errorf("annotated file %q already in dataset", file.FilePath)
	}
	d.files[file.FilePath] = file
	d.order = append(d.order, file.FilePath)
	return nil
}

// Get returns the annotation for a file path.
func (d *Dataset) Get(path string) (AnnotatedFile, bool) {
	file, ok := d.files[path]
	return file, ok
}

// Files returns the annotated files in insertion order.
func (d *Dataset) Files() []AnnotatedFile {
	files := make([]AnnotatedFile, 0, len(d.order))
	for _, path := range d.order {
		files = append(files, d.files[path])
	}
	return files
}

func (d *Dataset) Len() int { return len(d.order) }

// TotalIssues counts ground-truth issues across all files.
func (d *Dataset) TotalIssues() int {
	total := 0
	for _, file := range d.files {
		total += len(file.GroundTruth)
	}
	return total
}

// ByIssueType counts ground-truth issues per issue type.
func (d *Dataset) ByIssueType() map[string]int {
	counts := make(map[string]int)
	for _, file := range d.files {
		for _, issue := range file.GroundTruth {
			counts[issue.Type]++
		}
	}
	return counts
}

// LoadDataset reads a directory of annotation documents, one JSON file per
// analyzed source file. Files without a .json extension and JSON documents
// that do not look like annotations are silently skipped; a .json annotation
// that fails to parse is skipped with a warning. Loading never aborts
// because of one bad file.
func LoadDataset(dir string, logger *log.Logger) (*Dataset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dataset dir: %w", err)
	}

	dataset := NewDataset()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			logger.Printf("skipping %s: %v", path, err)
			continue
		}
		var file AnnotatedFile
		if err := json.Unmarshal(content, &file); err != nil {
			logger.Printf("skipping %s: not valid annotation JSON: %v", path, err)
			continue
		}
		if file.FilePath == "" {
			// Some other JSON document, not an annotation.
			continue
		}
		if err := dataset.Add(file); err != nil {
			logger.Printf("skipping %s: %v", path, err)
		}
	}
	return dataset, nil
}

// Save writes the dataset as one indented JSON document per annotated file.
func (d *Dataset) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dataset dir: %w", err)
	}
	for _, file := range d.Files() {
		content, err := json.MarshalIndent(file, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal annotation for %s: %w", file.FilePath, err)
		}
		content = append(content, '\n')
		path := filepath.Join(dir, annotationFileName(file.FilePath))
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return fmt.Errorf("write annotation for %s: %w", file.FilePath, err)
		}
	}
	return nil
}

func annotationFileName(filePath string) string {
	name := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(filePath)
	return name + ".json"
}
