// Package heuristic provides the scoring strategies used to rank candidate rules.
//
// A heuristic maps the confusion matrix of a rule to a real value; larger is better.
// Every heuristic returns 0 where its formula would divide by zero, because rules are
// totally ordered by their values and NaN cannot be ordered.
package heuristic

import (
	"fmt"
	"math"
	"strings"

	"github.com/Veraticus/seco/internal/common"
	"github.com/Veraticus/seco/internal/model"
)

// Heuristic scores a confusion matrix.
type Heuristic interface {
	// Evaluate returns the score of a rule with the given confusion matrix.
	Evaluate(cm model.ConfusionMatrix) float64
	// IsValueHeuristic reports whether scores are comparable across search depths, so
	// that the best rule seen anywhere during refinement may be returned. Gain
	// heuristics return false: only the last refinement of a chain may be returned.
	IsValueHeuristic() bool
	String() string
}

// GainHeuristic is a heuristic whose score depends on the rule's parent.
type GainHeuristic interface {
	Heuristic
	// EvaluateGain scores a refinement relative to the confusion matrix of its parent.
	EvaluateGain(cm, parent model.ConfusionMatrix) float64
}

// Score evaluates a rule with h, using the rule's parent snapshot for gain heuristics.
func Score(h Heuristic, r *model.Rule, cm model.ConfusionMatrix) float64 {
	if g, ok := h.(GainHeuristic); ok && r.Parent() != nil {
		return g.EvaluateGain(cm, r.Parent().Stats)
	}
	return h.Evaluate(cm)
}

// Kind names a heuristic of the closed set that New can build.
type Kind string

// Heuristic kinds.
const (
	KindAccuracy                 Kind = "accuracy"
	KindPrecision                Kind = "precision"
	KindLaplace                  Kind = "laplace"
	KindMEstimate                Kind = "m-estimate"
	KindWeightedRelativeAccuracy Kind = "wra"
	KindLinearCost               Kind = "linear-cost"
	KindRelativeCost             Kind = "relative-cost"
	KindFMeasure                 Kind = "f-measure"
	KindKloesgen                 Kind = "kloesgen"
	KindCorrelation              Kind = "correlation"
	KindFoilGain                 Kind = "foil-gain"
)

// Kinds lists every known heuristic kind.
func Kinds() []Kind {
	return []Kind{
		KindAccuracy, KindPrecision, KindLaplace, KindMEstimate, KindWeightedRelativeAccuracy,
		KindLinearCost, KindRelativeCost, KindFMeasure, KindKloesgen, KindCorrelation, KindFoilGain,
	}
}

// DefaultParameter returns the parameter used for a kind when none is configured.
func DefaultParameter(k Kind) float64 {
	switch k {
	case KindMEstimate:
		return 22.466
	case KindLinearCost:
		return 0.437
	case KindRelativeCost:
		return 0.342
	case KindFMeasure:
		return 0.5
	case KindKloesgen:
		return 0.4323
	default:
		return 0
	}
}

// New builds the heuristic of the given kind. The parameter is used by parameterized
// heuristics only; out-of-domain values are configuration errors.
func New(kind Kind, param float64) (Heuristic, error) {
	switch Kind(strings.ToLower(string(kind))) {
	case KindAccuracy:
		return Accuracy{}, nil
	case KindPrecision:
		return Precision{}, nil
	case KindLaplace:
		return Laplace{}, nil
	case KindMEstimate:
		return NewMEstimate(param)
	case KindWeightedRelativeAccuracy:
		return WeightedRelativeAccuracy{}, nil
	case KindLinearCost:
		return NewLinearCost(param)
	case KindRelativeCost:
		return NewRelativeCost(param)
	case KindFMeasure:
		return NewFMeasure(param)
	case KindKloesgen:
		return NewKloesgen(param)
	case KindCorrelation:
		return Correlation{}, nil
	case KindFoilGain:
		return FoilGain{}, nil
	default:
		return nil, common.InvalidConfig("heuristic", "unknown heuristic %q", kind)
	}
}

// Parse builds the heuristic named in a configuration. A NaN parameter selects the
// kind's default.
func Parse(name string, param float64) (Heuristic, error) {
	kind := Kind(strings.ToLower(name))
	if math.IsNaN(param) {
		param = DefaultParameter(kind)
	}
	return New(kind, param)
}

// Accuracy is (TP + TN) / Total.
type Accuracy struct{}

// Evaluate implements Heuristic.
func (Accuracy) Evaluate(cm model.ConfusionMatrix) float64 { return cm.Accuracy() }

// IsValueHeuristic implements Heuristic.
func (Accuracy) IsValueHeuristic() bool { return true }

func (Accuracy) String() string { return string(KindAccuracy) }

// Precision is TP / (TP + FP).
type Precision struct{}

// Evaluate implements Heuristic.
func (Precision) Evaluate(cm model.ConfusionMatrix) float64 { return cm.Precision() }

// IsValueHeuristic implements Heuristic.
func (Precision) IsValueHeuristic() bool { return true }

func (Precision) String() string { return string(KindPrecision) }

// Laplace is (TP + 1) / (TP + FP + 2), and 0 when the rule predicts nothing.
type Laplace struct{}

// Evaluate implements Heuristic.
func (Laplace) Evaluate(cm model.ConfusionMatrix) float64 {
	if cm.Predicted() == 0 {
		return 0
	}
	return (cm.TP + 1) / (cm.Predicted() + 2)
}

// IsValueHeuristic implements Heuristic.
func (Laplace) IsValueHeuristic() bool { return true }

func (Laplace) String() string { return string(KindLaplace) }

// MEstimate is (TP + m·P/Total) / (TP + FP + m).
type MEstimate struct {
	M float64
}

// NewMEstimate returns an m-estimate with m >= 0.
func NewMEstimate(m float64) (MEstimate, error) {
	if m < 0 || math.IsNaN(m) || math.IsInf(m, 0) {
		return MEstimate{}, common.InvalidConfig("heuristic.parameter", "m-estimate requires m >= 0, got %v", m)
	}
	return MEstimate{M: m}, nil
}

// Evaluate implements Heuristic.
func (h MEstimate) Evaluate(cm model.ConfusionMatrix) float64 {
	total := cm.Total()
	if cm.Predicted() == 0 || total == 0 {
		return 0
	}
	return (cm.TP + h.M*cm.Positives()/total) / (cm.Predicted() + h.M)
}

// IsValueHeuristic implements Heuristic.
func (MEstimate) IsValueHeuristic() bool { return true }

func (h MEstimate) String() string { return fmt.Sprintf("%s(%g)", KindMEstimate, h.M) }

// WeightedRelativeAccuracy is coverage · (precision − prior).
type WeightedRelativeAccuracy struct{}

// Evaluate implements Heuristic.
func (WeightedRelativeAccuracy) Evaluate(cm model.ConfusionMatrix) float64 {
	total := cm.Total()
	if total == 0 || cm.Predicted() == 0 {
		return 0
	}
	return cm.Predicted() / total * (cm.Precision() - cm.Positives()/total)
}

// IsValueHeuristic implements Heuristic.
func (WeightedRelativeAccuracy) IsValueHeuristic() bool { return true }

func (WeightedRelativeAccuracy) String() string { return string(KindWeightedRelativeAccuracy) }

// LinearCost is c·TP − (1−c)·FP with c in [0,1].
type LinearCost struct {
	C float64
}

// NewLinearCost returns a linear cost measure.
func NewLinearCost(c float64) (LinearCost, error) {
	if err := unitInterval("linear-cost", c); err != nil {
		return LinearCost{}, err
	}
	return LinearCost{C: c}, nil
}

// Evaluate implements Heuristic.
func (h LinearCost) Evaluate(cm model.ConfusionMatrix) float64 {
	return h.C*cm.TP - (1-h.C)*cm.FP
}

// IsValueHeuristic implements Heuristic.
func (LinearCost) IsValueHeuristic() bool { return true }

func (h LinearCost) String() string { return fmt.Sprintf("%s(%g)", KindLinearCost, h.C) }

// RelativeCost is c·TP/P − (1−c)·FP/N with c in [0,1].
type RelativeCost struct {
	C float64
}

// NewRelativeCost returns a relative cost measure.
func NewRelativeCost(c float64) (RelativeCost, error) {
	if err := unitInterval("relative-cost", c); err != nil {
		return RelativeCost{}, err
	}
	return RelativeCost{C: c}, nil
}

// Evaluate implements Heuristic.
func (h RelativeCost) Evaluate(cm model.ConfusionMatrix) float64 {
	var tpr, fpr float64
	if p := cm.Positives(); p > 0 {
		tpr = cm.TP / p
	}
	if n := cm.Negatives(); n > 0 {
		fpr = cm.FP / n
	}
	return h.C*tpr - (1-h.C)*fpr
}

// IsValueHeuristic implements Heuristic.
func (RelativeCost) IsValueHeuristic() bool { return true }

func (h RelativeCost) String() string { return fmt.Sprintf("%s(%g)", KindRelativeCost, h.C) }

// FMeasure is the weighted harmonic mean of precision and recall.
type FMeasure struct {
	Beta float64
}

// NewFMeasure returns an F-measure with beta > 0.
func NewFMeasure(beta float64) (FMeasure, error) {
	if beta <= 0 || math.IsNaN(beta) || math.IsInf(beta, 0) {
		return FMeasure{}, common.InvalidConfig("heuristic.parameter", "f-measure requires beta > 0, got %v", beta)
	}
	return FMeasure{Beta: beta}, nil
}

// Evaluate implements Heuristic.
func (h FMeasure) Evaluate(cm model.ConfusionMatrix) float64 {
	p, r := cm.Precision(), cm.Recall()
	b2 := h.Beta * h.Beta
	denom := b2*p + r
	if denom == 0 {
		return 0
	}
	return (1 + b2) * p * r / denom
}

// IsValueHeuristic implements Heuristic.
func (FMeasure) IsValueHeuristic() bool { return true }

func (h FMeasure) String() string { return fmt.Sprintf("%s(%g)", KindFMeasure, h.Beta) }

// Kloesgen is coverage^ω · (precision − prior).
type Kloesgen struct {
	Omega float64
}

// NewKloesgen returns a Klösgen measure with ω >= 0.
func NewKloesgen(omega float64) (Kloesgen, error) {
	if omega < 0 || math.IsNaN(omega) || math.IsInf(omega, 0) {
		return Kloesgen{}, common.InvalidConfig("heuristic.parameter", "kloesgen requires omega >= 0, got %v", omega)
	}
	return Kloesgen{Omega: omega}, nil
}

// Evaluate implements Heuristic.
func (h Kloesgen) Evaluate(cm model.ConfusionMatrix) float64 {
	total := cm.Total()
	if total == 0 || cm.Predicted() == 0 {
		return 0
	}
	return math.Pow(cm.Predicted()/total, h.Omega) * (cm.Precision() - cm.Positives()/total)
}

// IsValueHeuristic implements Heuristic.
func (Kloesgen) IsValueHeuristic() bool { return true }

func (h Kloesgen) String() string { return fmt.Sprintf("%s(%g)", KindKloesgen, h.Omega) }

// Correlation is the phi coefficient between coverage and class membership.
type Correlation struct{}

// Evaluate implements Heuristic.
func (Correlation) Evaluate(cm model.ConfusionMatrix) float64 {
	denom := cm.Positives() * cm.Negatives() * cm.Predicted() * (cm.FN + cm.TN)
	if denom <= 0 {
		return 0
	}
	return (cm.TP*cm.TN - cm.FP*cm.FN) / math.Sqrt(denom)
}

// IsValueHeuristic implements Heuristic.
func (Correlation) IsValueHeuristic() bool { return true }

func (Correlation) String() string { return string(KindCorrelation) }

// FoilGain is FOIL's information gain: TP · (log2 precision − log2 parent precision).
// Without a parent the prior class probability is used as the parent precision.
type FoilGain struct{}

// Evaluate implements Heuristic.
func (g FoilGain) Evaluate(cm model.ConfusionMatrix) float64 {
	prior := model.ConfusionMatrix{TP: cm.Positives(), FP: cm.Negatives()}
	return g.EvaluateGain(cm, prior)
}

// EvaluateGain implements GainHeuristic.
func (FoilGain) EvaluateGain(cm, parent model.ConfusionMatrix) float64 {
	if cm.TP == 0 || parent.TP == 0 {
		return 0
	}
	return cm.TP * (math.Log2(cm.Precision()) - math.Log2(parent.Precision()))
}

// IsValueHeuristic implements Heuristic.
func (FoilGain) IsValueHeuristic() bool { return false }

func (FoilGain) String() string { return string(KindFoilGain) }

func unitInterval(name string, c float64) error {
	if c < 0 || c > 1 || math.IsNaN(c) {
		return common.InvalidConfig("heuristic.parameter", "%s requires a cost in [0,1], got %v", name, c)
	}
	return nil
}
