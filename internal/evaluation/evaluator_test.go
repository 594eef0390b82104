package evaluation

import (
	"testing"

	"cql-guard/internal/model"
)

func detectedAt(issueType string, line int) model.Issue {
	return model.Issue{
		Detector:   "test",
		Type:       issueType,
		Severity:   model.SeverityHigh,
		FilePath:   "UserDao.java",
		Line:       line,
		Confidence: 1.0,
	}
}

func truthAt(issueType string, line int) GroundTruthIssue {
	return GroundTruthIssue{Type: issueType, Line: line, Severity: model.SeverityHigh}
}

func TestEvaluator_Tolerance(t *testing.T) {
	truth := AnnotatedFile{
		FilePath:    "UserDao.java",
		GroundTruth: []GroundTruthIssue{truthAt(model.IssueAllowFiltering, 10)},
	}
	detected := []model.Issue{detectedAt(model.IssueAllowFiltering, 12)}

	t.Run("within tolerance 2", func(t *testing.T) {
		e := &Evaluator{Tolerance: 2}
		result := e.Evaluate(detected, truth)
		if result.Matrix.TruePositives != 1 || result.Matrix.FalsePositives != 0 || result.Matrix.FalseNegatives != 0 {
			t.Errorf("matrix = %+v, want one TP", result.Matrix)
		}
	})

	t.Run("outside tolerance 1", func(t *testing.T) {
		e := &Evaluator{Tolerance: 1}
		result := e.Evaluate(detected, truth)
		if result.Matrix.TruePositives != 0 || result.Matrix.FalsePositives != 1 || result.Matrix.FalseNegatives != 1 {
			t.Errorf("matrix = %+v, want one FP and one FN", result.Matrix)
		}
	})
}

// One ground-truth issue with two detected candidates in range: the first
// match wins, the second counts a false positive.
func TestEvaluator_NoDoubleCount(t *testing.T) {
	e := NewEvaluator()
	truth := AnnotatedFile{
		FilePath:    "UserDao.java",
		GroundTruth: []GroundTruthIssue{truthAt(model.IssueNoPartitionKey, 20)},
	}
	detected := []model.Issue{
		detectedAt(model.IssueNoPartitionKey, 21),
		detectedAt(model.IssueNoPartitionKey, 19),
	}

	result := e.Evaluate(detected, truth)
	if result.Matrix.TruePositives != 1 {
		t.Errorf("TruePositives = %d, want 1", result.Matrix.TruePositives)
	}
	if result.Matrix.FalsePositives != 1 {
		t.Errorf("FalsePositives = %d, want 1", result.Matrix.FalsePositives)
	}
	if result.Matrix.FalseNegatives != 0 {
		t.Errorf("FalseNegatives = %d, want 0", result.Matrix.FalseNegatives)
	}
}

func TestEvaluator_TypeMustMatch(t *testing.T) {
	e := NewEvaluator()
	truth := AnnotatedFile{
		FilePath:    "UserDao.java",
		GroundTruth: []GroundTruthIssue{truthAt(model.IssueAllowFiltering, 10)},
	}
	detected := []model.Issue{detectedAt(model.IssueSelectStar, 10)}

	result := e.Evaluate(detected, truth)
	if result.Matrix.TruePositives != 0 {
		t.Error("issues of different types must never match, even on the same line")
	}
	if result.Matrix.FalsePositives != 1 || result.Matrix.FalseNegatives != 1 {
		t.Errorf("matrix = %+v, want one FP and one FN", result.Matrix)
	}
}

func TestEvaluator_PerIssueType(t *testing.T) {
	e := NewEvaluator()
	truth := AnnotatedFile{
		FilePath: "UserDao.java",
		GroundTruth: []GroundTruthIssue{
			truthAt(model.IssueAllowFiltering, 10),
			truthAt(model.IssueSelectStar, 30),
		},
	}
	detected := []model.Issue{
		detectedAt(model.IssueAllowFiltering, 10),
		detectedAt(model.IssueSelectStar, 90),
	}

	result := e.Evaluate(detected, truth)

	af := result.PerIssueType[model.IssueAllowFiltering]
	if af.Matrix.TruePositives != 1 || af.Precision != 1.0 || af.Recall != 1.0 {
		t.Errorf("ALLOW_FILTERING metrics = %+v", af)
	}
	star := result.PerIssueType[model.IssueSelectStar]
	if star.Matrix.FalsePositives != 1 || star.Matrix.FalseNegatives != 1 || star.Precision != 0.0 {
		t.Errorf("SELECT_STAR metrics = %+v", star)
	}
}

func TestEvaluator_EvaluateDataset(t *testing.T) {
	e := NewEvaluator()
	dataset := NewDataset()
	for _, file := range []AnnotatedFile{
		{FilePath: "a.java", GroundTruth: []GroundTruthIssue{truthAt(model.IssueAllowFiltering, 5)}},
		{FilePath: "b.java", GroundTruth: []GroundTruthIssue{truthAt(model.IssueAllowFiltering, 8)}},
		{FilePath: "c.java", GroundTruth: []GroundTruthIssue{truthAt(model.IssueLargeBatch, 3)}},
	} {
		if err := dataset.Add(file); err != nil {
			t.Fatal(err)
		}
	}

	detected := map[string][]model.Issue{
		"a.java": {detectedAt(model.IssueAllowFiltering, 6)},
		"b.java": {detectedAt(model.IssueAllowFiltering, 50)},
		// c.java: nothing detected, the LARGE_BATCH annotation becomes a FN.
		"unannotated.java": {detectedAt(model.IssueSelectStar, 1)},
	}

	result := e.EvaluateDataset(detected, dataset)

	// a: TP; b: FP + FN; c: FN. The unannotated file is not evaluable.
	want := ConfusionMatrix{TruePositives: 1, FalsePositives: 1, FalseNegatives: 2}
	if result.Matrix != want {
		t.Errorf("matrix = %+v, want %+v", result.Matrix, want)
	}
	if result.Precision != 0.5 {
		t.Errorf("Precision = %v, want 0.5", result.Precision)
	}
	if result.Recall != 1.0/3.0 {
		t.Errorf("Recall = %v, want 1/3", result.Recall)
	}
	if _, ok := result.PerIssueType[model.IssueSelectStar]; ok {
		t.Error("unannotated file must not contribute per-type counts")
	}
}

func TestEvaluator_EmptyInputsProduceResult(t *testing.T) {
	e := NewEvaluator()
	result := e.Evaluate(nil, AnnotatedFile{FilePath: "a.java"})
	if result.Matrix.Total() != 0 {
		t.Errorf("matrix = %+v, want all zeros", result.Matrix)
	}
	if result.Precision != 0.0 || result.Recall != 0.0 || result.F1 != 0.0 {
		t.Error("empty evaluation must degrade to 0.0 rates, not fail")
	}
}
