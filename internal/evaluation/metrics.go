package evaluation

import "fmt"

// ConfusionMatrix counts true/false positives and negatives. True negatives
// stay 0 unless the caller supplies an external universe of non-issues.
type ConfusionMatrix struct {
	TruePositives  int `json:"true_positives"`
	FalsePositives int `json:"false_positives"`
	TrueNegatives  int `json:"true_negatives"`
	FalseNegatives int `json:"false_negatives"`
}

// NewConfusionMatrix validates the counts; negative counts are a programmer
// error and fail construction.
func NewConfusionMatrix(tp, fp, tn, fn int) (ConfusionMatrix, error) {
	m := ConfusionMatrix{TruePositives: tp, FalsePositives: fp, TrueNegatives: tn, FalseNegatives: fn}
	if err := m.Validate(); err != nil {
		return ConfusionMatrix{}, err
	}
	return m, nil
}

func (m ConfusionMatrix) Validate() error {
	if m.TruePositives < 0 || m.FalsePositives < 0 || m.TrueNegatives < 0 || m.FalseNegatives < 0 {
		return fmt.Errorf("confusion matrix has negative counts: %+v", m)
	}
	return nil
}

// Add returns the element-wise sum of two matrices.
func (m ConfusionMatrix) Add(other ConfusionMatrix) ConfusionMatrix {
	return ConfusionMatrix{
		TruePositives:  m.TruePositives + other.TruePositives,
		FalsePositives: m.FalsePositives + other.FalsePositives,
		TrueNegatives:  m.TrueNegatives + other.TrueNegatives,
		FalseNegatives: m.FalseNegatives + other.FalseNegatives,
	}
}

func (m ConfusionMatrix) Total() int {
	return m.TruePositives + m.FalsePositives + m.TrueNegatives + m.FalseNegatives
}

// Precision is TP/(TP+FP), or 0.0 when undefined.
func (m ConfusionMatrix) Precision() float64 {
	return safeRatio(m.TruePositives, m.TruePositives+m.FalsePositives)
}

// Recall is TP/(TP+FN), or 0.0 when undefined.
func (m ConfusionMatrix) Recall() float64 {
	return safeRatio(m.TruePositives, m.TruePositives+m.FalseNegatives)
}

// F1 is the harmonic mean of precision and recall, or 0.0 when undefined.
func (m ConfusionMatrix) F1() float64 {
	p, r := m.Precision(), m.Recall()
	if p+r == 0 {
		return 0.0
	}
	return 2 * p * r / (p + r)
}

// FalsePositiveRate is FP/(FP+TN), or 0.0 when undefined.
func (m ConfusionMatrix) FalsePositiveRate() float64 {
	return safeRatio(m.FalsePositives, m.FalsePositives+m.TrueNegatives)
}

// Accuracy is (TP+TN)/(TP+TN+FP+FN), or 0.0 when undefined.
func (m ConfusionMatrix) Accuracy() float64 {
	return safeRatio(m.TruePositives+m.TrueNegatives, m.Total())
}

func safeRatio(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0.0
	}
	return float64(numerator) / float64(denominator)
}

// TypeMetrics holds the confusion matrix and derived rates for one issue type.
type TypeMetrics struct {
	Matrix    ConfusionMatrix `json:"confusion_matrix"`
	Precision float64         `json:"precision"`
	Recall    float64         `json:"recall"`
	F1        float64         `json:"f1_score"`
}

// EvaluationResult is the scored outcome of comparing detected issues against
// ground truth.
type EvaluationResult struct {
	Precision         float64                `json:"precision"`
	Recall            float64                `json:"recall"`
	F1                float64                `json:"f1_score"`
	FalsePositiveRate float64                `json:"false_positive_rate"`
	Accuracy          float64                `json:"accuracy"`
	Matrix            ConfusionMatrix        `json:"confusion_matrix"`
	PerIssueType      map[string]TypeMetrics `json:"per_issue_type,omitempty"`
}

// resultFrom derives all rates from the summed matrices. Rates are always
// computed from summed counts, never by averaging per-file rates.
func resultFrom(matrix ConfusionMatrix, perType map[string]ConfusionMatrix) EvaluationResult {
	result := EvaluationResult{
		Precision:         matrix.Precision(),
		Recall:            matrix.Recall(),
		F1:                matrix.F1(),
		FalsePositiveRate: matrix.FalsePositiveRate(),
		Accuracy:          matrix.Accuracy(),
		Matrix:            matrix,
	}
	if len(perType) > 0 {
		result.PerIssueType = make(map[string]TypeMetrics, len(perType))
		for issueType, m := range perType {
			result.PerIssueType[issueType] = TypeMetrics{
				Matrix:    m,
				Precision: m.Precision(),
				Recall:    m.Recall(),
				F1:        m.F1(),
			}
		}
	}
	return result
}
