package cli

import (
	"bytes"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/seco/internal/evaluation"
	"github.com/Veraticus/seco/internal/model"
	"github.com/Veraticus/seco/internal/sweep"
	"github.com/Veraticus/seco/internal/testutil"
)

func weatherRules(t *testing.T) *model.RuleSet {
	t.Helper()
	return testutil.WeatherRuleSet(t, "weather").Rules
}

func TestFormatRule(t *testing.T) {
	rs := weatherRules(t)
	out := FormatRule(rs.At(0))
	assert.Contains(t, out, "play = yes")
	assert.Contains(t, out, "outlook = rain")
	assert.Contains(t, FormatRule(rs.Default()), "true")
}

func TestRenderRuleSet(t *testing.T) {
	out := RenderRuleSet("Decision list", weatherRules(t))
	assert.Contains(t, out, "Decision list")
	assert.Contains(t, out, "1.")
	assert.Contains(t, out, "[tp=4 fp=1]")
	assert.Contains(t, out, "default:")
	assert.Contains(t, out, "play = no")

	assert.Contains(t, RenderRuleSet("Empty", model.NewRuleSet()), "no rules")
}

func TestRenderReport(t *testing.T) {
	rs := weatherRules(t)
	rep := &evaluation.Report{
		Rules:   []evaluation.RuleReport{{Rule: rs.At(0), Stats: model.ConfusionMatrix{TP: 4, FP: 1, TN: 5}}},
		Default: model.ConfusionMatrix{TP: 5},
		Correct: 9,
		Total:   10,
		Skipped: 1,
	}
	out := RenderReport(rep)
	assert.Contains(t, out, "precision")
	assert.Contains(t, out, "0.800")
	assert.Contains(t, out, "Accuracy: 90.00%")
	assert.Contains(t, out, "Skipped 1 instances")
}

func TestRenderMultiLabelReport(t *testing.T) {
	rep := &evaluation.MultiLabelReport{
		PerLabel:        []model.ConfusionMatrix{{TP: 2, TN: 1, FN: 1}, {TN: 3, FN: 1}},
		HammingAccuracy: 0.75,
		SubsetAccuracy:  0.5,
		Total:           4,
	}
	out := RenderMultiLabelReport([]string{"l1"}, rep)
	assert.Contains(t, out, "l1")
	assert.Contains(t, out, "Hamming accuracy: 75.00%")
	assert.Contains(t, out, "Subset accuracy: 50.00%")
}

func TestRenderSweep(t *testing.T) {
	rs := weatherRules(t)
	best := sweep.Result{Rules: rs, Setting: sweep.Setting{Heuristic: "laplace", Parameter: math.NaN(), BeamWidth: 1}, Accuracy: 1}
	rep := &sweep.Report{
		Best: &best,
		Results: []sweep.Result{
			best,
			{Setting: sweep.Setting{Heuristic: "bogus", Parameter: math.NaN(), BeamWidth: 1}, Err: errors.New("unknown heuristic")},
		},
		Train: 7,
		Test:  3,
	}
	out := RenderSweep(rep)
	assert.Contains(t, out, "100.00%")
	assert.Contains(t, out, "unknown heuristic")
	assert.Contains(t, out, "trained on 7, evaluated on 3 instances")
	assert.Contains(t, out, "Best: laplace(default) beam=1")
}

func TestRenderModels(t *testing.T) {
	assert.Contains(t, RenderModels(nil), "No stored rule sets")

	out := RenderModels([]model.RuleSetSummary{{
		CreatedAt: time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
		ID:        "abc",
		Name:      "weather-laplace",
		Kind:      model.RuleSetSingle,
		Relation:  "weather",
		Heuristic: "laplace",
		Rules:     1,
	}})
	assert.Contains(t, out, "weather-laplace")
	assert.Contains(t, out, "2024-03-01 12:30")
}

func TestProgressObserver(t *testing.T) {
	var buf bytes.Buffer
	obs := NewProgressObserver(&buf)
	rs := weatherRules(t)

	// Rules outside a class are counted but draw nothing.
	obs.RuleAccepted("yes", rs.At(0))
	obs.ClassFinished("yes", nil)

	obs.ClassStarted("yes", 3)
	obs.RuleAccepted("yes", rs.At(0))
	obs.RuleAccepted("yes", rs.At(0))
	obs.ClassFinished("yes", rs.Rules())

	assert.Equal(t, 3, obs.Rules())
	assert.Contains(t, buf.String(), "Covering yes")
}

func TestSweepProgress(t *testing.T) {
	var buf bytes.Buffer
	progress := SweepProgress(&buf, 2)
	progress(sweep.Result{Setting: sweep.Setting{Heuristic: "laplace"}})
	progress(sweep.Result{Setting: sweep.Setting{Heuristic: "bogus"}, Err: errors.New("failed")})
	assert.Contains(t, buf.String(), "Sweeping settings")
}
