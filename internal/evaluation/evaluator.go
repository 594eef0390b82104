package evaluation

import (
	"cql-guard/internal/model"
)

// DefaultTolerance is the allowed line distance between a detected issue and
// its matching ground-truth issue.
const DefaultTolerance = 2

// Evaluator matches detected issues against annotated ground truth.
//
// Matching is greedy and first-found: detected issues are processed in their
// given order and each takes the first unmatched ground-truth issue of the
// same type within the tolerance window. The result is deterministic but
// order-sensitive; candidates are not sorted by line distance.
type Evaluator struct {
	Tolerance int
}

func NewEvaluator() *Evaluator {
	return &Evaluator{Tolerance: DefaultTolerance}
}

// Evaluate scores the detected issues for one file against its annotation.
func (e *Evaluator) Evaluate(detected []model.Issue, truth AnnotatedFile) EvaluationResult {
	matrix, perType := e.match(detected, truth.GroundTruth)
	return resultFrom(matrix, perType)
}

// EvaluateDataset scores detector output across a whole dataset. Confusion
// matrices are summed across files before any rate is derived; averaging
// per-file rates would lose precision. Detected issues for files the dataset
// does not annotate are not evaluable and are ignored.
func (e *Evaluator) EvaluateDataset(detectedByFile map[string][]model.Issue, dataset *Dataset) EvaluationResult {
	var total ConfusionMatrix
	perType := make(map[string]ConfusionMatrix)

	for _, file := range dataset.Files() {
		matrix, filePerType := e.match(detectedByFile[file.FilePath], file.GroundTruth)
		total = total.Add(matrix)
		for issueType, m := range filePerType {
			perType[issueType] = perType[issueType].Add(m)
		}
	}
	return resultFrom(total, perType)
}

// match runs the greedy matching algorithm and returns the overall matrix
// plus per-issue-type matrices computed by the same algorithm restricted to
// each type.
func (e *Evaluator) match(detected []model.Issue, truth []GroundTruthIssue) (ConfusionMatrix, map[string]ConfusionMatrix) {
	var matrix ConfusionMatrix
	perType := make(map[string]ConfusionMatrix)

	matched := make([]bool, len(truth))
	for _, issue := range detected {
		hit := -1
		for i, gt := range truth {
			if matched[i] || gt.Type != issue.Type {
				continue
			}
			if abs(gt.Line-issue.Line) <= e.Tolerance {
				hit = i
				break
			}
		}
		m := perType[issue.Type]
		if hit >= 0 {
			matched[hit] = true
			matrix.TruePositives++
			m.TruePositives++
		} else {
			matrix.FalsePositives++
			m.FalsePositives++
		}
		perType[issue.Type] = m
	}

	for i, gt := range truth {
		if matched[i] {
			continue
		}
		matrix.FalseNegatives++
		m := perType[gt.Type]
		m.FalseNegatives++
		perType[gt.Type] = m
	}

	return matrix, perType
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
