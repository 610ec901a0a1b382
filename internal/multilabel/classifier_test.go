package multilabel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/seco/internal/model"
)

func TestClassifier_PredictHead(t *testing.T) {
	data := scenes(t)
	labels, err := NewLabels(data, labelNames)
	require.NoError(t, err)
	color, size := data.Attribute(0), data.Attribute(1)
	red := model.NewNominalCondition(color, 0, true)

	ruleA := model.NewRuleWithBody(model.MultiHead(labels.Condition(0, 1)), []model.Condition{red}, nil)
	ruleB := model.NewRuleWithBody(
		model.MultiHead(labels.Condition(0, 0), labels.Condition(1, 1)),
		[]model.Condition{model.NewNumericCondition(size, 10, true)}, nil)
	onL1 := model.NewRuleWithBody(model.MultiHead(labels.Condition(2, 1)),
		[]model.Condition{labels.Condition(0, 1)}, nil)
	skip := model.NewRuleWithBody(model.SkipHead(), []model.Condition{red}, nil)
	def := model.NewRule(model.MultiHead(labels.Condition(0, 0), labels.Condition(1, 0), labels.Condition(2, 0)), nil)

	build := func(rules ...*model.Rule) *model.RuleSet {
		rs := model.NewRuleSet()
		rs.AddAll(rules)
		rs.SetDefault(def)
		return rs
	}

	tests := []struct {
		name         string
		rules        *model.RuleSet
		decisionList bool
		row          int
		want         []int
	}{
		{name: "union of covering rules", rules: build(ruleA, ruleB), row: 0, want: []int{1, 1, 0}},
		{name: "default fills the rest", rules: build(ruleA), row: 3, want: []int{0, 0, 0}},
		{name: "decision list stops at first match", rules: build(ruleA, ruleB), decisionList: true, row: 0, want: []int{1, 0, 0}},
		{name: "skip rule stops the scan", rules: build(ruleA, skip, ruleB), row: 1, want: []int{1, 0, 0}},
		{name: "skip rule ignored when not covering", rules: build(ruleA, skip, ruleB), row: 4, want: []int{0, 1, 0}},
		{name: "body tests predicted labels", rules: build(ruleA, onL1), row: 2, want: []int{1, 0, 1}},
		{name: "stored labels are ignored", rules: build(onL1), row: 2, want: []int{0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clf := NewClassifier(labels, tt.rules, tt.decisionList)
			assert.Equal(t, tt.want, clf.Predict(data.At(tt.row)))
			assert.Equal(t, labels.Len(), clf.PredictHead(data.At(tt.row)).Len())
		})
	}
}
