// Package evaluation measures trained rule sets on labeled data.
package evaluation

import (
	"fmt"

	"github.com/Veraticus/seco/internal/common"
	"github.com/Veraticus/seco/internal/dataset"
	"github.com/Veraticus/seco/internal/model"
	"github.com/Veraticus/seco/internal/multilabel"
)

// RuleReport holds the decision-list statistics of one rule: only instances no earlier
// rule covers reach it, and it is positive for an instance of its head class.
type RuleReport struct {
	Rule  *model.Rule
	Stats model.ConfusionMatrix
}

// Report summarizes a decision list on a dataset.
type Report struct {
	Rules   []RuleReport
	Default model.ConfusionMatrix
	Correct float64
	Total   float64
	// Skipped counts the weight of instances without a class value.
	Skipped float64
}

// Accuracy returns the weighted share of correctly classified instances.
func (r *Report) Accuracy() float64 {
	if r.Total == 0 {
		return 0
	}
	return r.Correct / r.Total
}

// Evaluate classifies every instance of data with rs and collects per-rule statistics.
func Evaluate(rs *model.RuleSet, data *dataset.Instances) (*Report, error) {
	if _, err := data.ClassAttribute(); err != nil {
		return nil, fmt.Errorf("failed to evaluate rule set: %w", err)
	}
	if data.Len() == 0 {
		return nil, common.ErrEmptyDataset
	}

	rep := &Report{Rules: make([]RuleReport, rs.Len())}
	for i, r := range rs.Rules() {
		rep.Rules[i].Rule = r
	}
	for _, inst := range data.All() {
		cls, ok, err := inst.ClassValue()
		if err != nil {
			return nil, fmt.Errorf("failed to read class: %w", err)
		}
		if !ok {
			rep.Skipped += inst.Weight()
			continue
		}
		rep.Total += inst.Weight()

		matched := false
		for i := range rep.Rules {
			r := rep.Rules[i].Rule
			covered := r.Covers(inst)
			rep.Rules[i].Stats.Record(covered, predicts(r, cls), inst.Weight())
			if covered {
				if predicts(r, cls) {
					rep.Correct += inst.Weight()
				}
				matched = true
				break
			}
		}
		if !matched && rs.Default() != nil {
			hit := predicts(rs.Default(), cls)
			rep.Default.Record(true, hit, inst.Weight())
			if hit {
				rep.Correct += inst.Weight()
			}
		}
	}
	return rep, nil
}

func predicts(r *model.Rule, cls float64) bool {
	c, ok := r.Head().Single()
	return ok && c.Value == cls
}

// MultiLabelReport summarizes a multi-label classifier on a dataset.
type MultiLabelReport struct {
	// PerLabel counts, for every label, value 1 as the positive class.
	PerLabel []model.ConfusionMatrix
	// HammingAccuracy is the weighted share of correctly predicted label values.
	HammingAccuracy float64
	// SubsetAccuracy is the weighted share of instances with every label correct.
	SubsetAccuracy float64
	Total          float64
}

// EvaluateMultiLabel predicts the labels of every instance of data.
func EvaluateMultiLabel(clf *multilabel.Classifier, data *dataset.Instances) (*MultiLabelReport, error) {
	if data.Len() == 0 {
		return nil, common.ErrEmptyDataset
	}
	labels := clf.Labels()
	rep := &MultiLabelReport{PerLabel: make([]model.ConfusionMatrix, labels.Len())}
	var correctValues, exact float64
	for _, inst := range data.All() {
		w := inst.Weight()
		rep.Total += w
		pred := clf.Predict(inst)
		all := true
		for j, p := range pred {
			truth := labels.Value(inst, j)
			rep.PerLabel[j].Record(p == 1, truth == 1, w)
			if p == truth {
				correctValues += w
			} else {
				all = false
			}
		}
		if all {
			exact += w
		}
	}
	if rep.Total > 0 {
		rep.HammingAccuracy = correctValues / (rep.Total * float64(labels.Len()))
		rep.SubsetAccuracy = exact / rep.Total
	}
	return rep, nil
}
