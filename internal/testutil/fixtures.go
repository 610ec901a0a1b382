package testutil

import (
	"testing"

	"github.com/Veraticus/seco/internal/dataset"
	"github.com/Veraticus/seco/internal/model"
)

// Weather is a two-attribute dataset: four rainy days on which play is yes followed by
// six sunny days on which it is no. The ten instances have unit weight and play is the
// class.
func Weather(t *testing.T) *dataset.Instances {
	t.Helper()
	outlook := dataset.NewNominalAttribute("outlook", []string{"sunny", "rain"})
	play := dataset.NewNominalAttribute("play", []string{"no", "yes"})
	data, err := dataset.New("weather", []*dataset.Attribute{outlook, play})
	if err != nil {
		t.Fatalf("failed to create weather dataset: %v", err)
	}
	if err := data.SetClassIndex(1); err != nil {
		t.Fatalf("failed to set class: %v", err)
	}
	for i := 0; i < 10; i++ {
		row := []float64{0, 0}
		if i < 4 {
			row = []float64{1, 1}
		}
		if _, err := data.Add(row, 1); err != nil {
			t.Fatalf("failed to add instance: %v", err)
		}
	}
	return data
}

// WeatherRules is the decision list "play = yes :- outlook = rain." with default
// "play = no" over the schema of Weather.
func WeatherRules(t *testing.T, schema *dataset.Instances) *model.RuleSet {
	t.Helper()
	outlook, err := schema.AttributeByName("outlook")
	if err != nil {
		t.Fatalf("weather schema: %v", err)
	}
	play, err := schema.AttributeByName("play")
	if err != nil {
		t.Fatalf("weather schema: %v", err)
	}

	r := model.NewRuleWithBody(model.SingleHead(model.NewNominalCondition(play, 1, true)),
		[]model.Condition{model.NewNominalCondition(outlook, 1, true)}, nil)
	r.SetEvaluation(model.ConfusionMatrix{TP: 4, FP: 1}, 0.8)
	rs := model.NewRuleSet()
	rs.Add(r)
	rs.SetDefault(model.NewRule(model.SingleHead(model.NewNominalCondition(play, 0, true)), nil))
	return rs
}

// WeatherRuleSet wraps WeatherRules in an unsaved single-label rule set.
func WeatherRuleSet(t *testing.T, name string) *model.StoredRuleSet {
	t.Helper()
	schema := Weather(t).EmptyCopy()
	return &model.StoredRuleSet{
		Schema:    schema,
		Rules:     WeatherRules(t, schema),
		Name:      name,
		Kind:      model.RuleSetSingle,
		Heuristic: "laplace",
	}
}
