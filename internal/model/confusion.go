package model

import "fmt"

// ConfusionMatrix holds weighted true/false positive/negative counts for the question
// "does this rule predict class c?". Counters are never negative.
type ConfusionMatrix struct {
	TP float64 `json:"tp" yaml:"tp"`
	FP float64 `json:"fp" yaml:"fp"`
	TN float64 `json:"tn" yaml:"tn"`
	FN float64 `json:"fn" yaml:"fn"`
}

// AddTruePositive adds w to the true positives.
func (m *ConfusionMatrix) AddTruePositive(w float64) { m.TP += w }

// AddFalsePositive adds w to the false positives.
func (m *ConfusionMatrix) AddFalsePositive(w float64) { m.FP += w }

// AddTrueNegative adds w to the true negatives.
func (m *ConfusionMatrix) AddTrueNegative(w float64) { m.TN += w }

// AddFalseNegative adds w to the false negatives.
func (m *ConfusionMatrix) AddFalseNegative(w float64) { m.FN += w }

// Record adds one weighted observation.
func (m *ConfusionMatrix) Record(covered, positive bool, w float64) {
	switch {
	case covered && positive:
		m.TP += w
	case covered:
		m.FP += w
	case positive:
		m.FN += w
	default:
		m.TN += w
	}
}

// Add adds all counters of o.
func (m *ConfusionMatrix) Add(o ConfusionMatrix) {
	m.TP += o.TP
	m.FP += o.FP
	m.TN += o.TN
	m.FN += o.FN
}

// Positives returns TP + FN.
func (m ConfusionMatrix) Positives() float64 { return m.TP + m.FN }

// Negatives returns FP + TN.
func (m ConfusionMatrix) Negatives() float64 { return m.FP + m.TN }

// Predicted returns the weight predicted positive, TP + FP.
func (m ConfusionMatrix) Predicted() float64 { return m.TP + m.FP }

// Total returns the sum of all counters.
func (m ConfusionMatrix) Total() float64 { return m.TP + m.FP + m.TN + m.FN }

// Accuracy returns (TP + TN) / Total, 0 for an empty matrix.
func (m ConfusionMatrix) Accuracy() float64 {
	total := m.Total()
	if total == 0 {
		return 0
	}
	return (m.TP + m.TN) / total
}

// Precision returns TP / (TP + FP), 0 when nothing is predicted positive.
func (m ConfusionMatrix) Precision() float64 {
	p := m.Predicted()
	if p == 0 {
		return 0
	}
	return m.TP / p
}

// Recall returns TP / (TP + FN), 0 when there are no positives.
func (m ConfusionMatrix) Recall() float64 {
	p := m.Positives()
	if p == 0 {
		return 0
	}
	return m.TP / p
}

// ErrorRate returns FP / (TP + FP), 0 when nothing is predicted positive.
func (m ConfusionMatrix) ErrorRate() float64 {
	p := m.Predicted()
	if p == 0 {
		return 0
	}
	return m.FP / p
}

// Optimistic returns the matrix of a rule that would exclude every current false
// positive: false positives become true negatives.
func (m ConfusionMatrix) Optimistic() ConfusionMatrix {
	return ConfusionMatrix{TP: m.TP, FP: 0, TN: m.TN + m.FP, FN: m.FN}
}

func (m ConfusionMatrix) String() string {
	return fmt.Sprintf("tp=%g fp=%g tn=%g fn=%g", m.TP, m.FP, m.TN, m.FN)
}
