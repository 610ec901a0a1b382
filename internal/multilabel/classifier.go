package multilabel

import (
	"github.com/Veraticus/seco/internal/dataset"
	"github.com/Veraticus/seco/internal/model"
)

// Classifier predicts label sets with a learned multi-label rule set.
//
// In union mode every covering rule contributes the labels not predicted yet, a covering
// skip rule ends the scan, and the default rule fills what is left. In decision-list mode
// only the first covering rule and the default rule contribute.
type Classifier struct {
	labels       *Labels
	rules        *model.RuleSet
	decisionList bool
}

// NewClassifier wraps a rule set whose heads predict labels.
func NewClassifier(labels *Labels, rules *model.RuleSet, decisionList bool) *Classifier {
	return &Classifier{labels: labels, rules: rules, decisionList: decisionList}
}

// Labels returns the label space.
func (c *Classifier) Labels() *Labels { return c.labels }

// Rules returns the rule set.
func (c *Classifier) Rules() *model.RuleSet { return c.rules }

// DecisionList reports whether only the first covering rule is used.
func (c *Classifier) DecisionList() bool { return c.decisionList }

// PredictHead returns the label conditions predicted for inst. Label values stored in
// inst are ignored; body conditions on labels test the labels predicted so far.
func (c *Classifier) PredictHead(inst *dataset.Instance) model.Head {
	view := inst
	for _, a := range c.labels.attrs {
		view = view.WithValue(a.Index(), dataset.Missing)
	}

	predicted := model.MultiHead()
	for _, r := range c.rules.Rules() {
		if predicted.Len() == c.labels.Len() {
			break
		}
		if !r.Covers(view) {
			continue
		}
		if r.Head().IsSkip() {
			break
		}
		for _, cond := range r.Head().Conditions() {
			if !predicted.Has(cond.AttrIndex()) {
				predicted = predicted.With(cond)
				view = view.WithValue(cond.AttrIndex(), cond.Value)
			}
		}
		if c.decisionList {
			break
		}
	}

	if def := c.rules.Default(); def != nil {
		for _, cond := range def.Head().Conditions() {
			if !predicted.Has(cond.AttrIndex()) {
				predicted = predicted.With(cond)
			}
		}
	}
	return predicted
}

// Predict returns the predicted value index of every label, -1 where nothing is
// predicted.
func (c *Classifier) Predict(inst *dataset.Instance) []int {
	head := c.PredictHead(inst)
	out := make([]int, c.labels.Len())
	for j, a := range c.labels.attrs {
		out[j] = -1
		if cond, ok := head.Get(a.Index()); ok {
			out[j] = int(cond.Value)
		}
	}
	return out
}
