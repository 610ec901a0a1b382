package seco

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/seco/internal/common"
	"github.com/Veraticus/seco/internal/config"
	"github.com/Veraticus/seco/internal/dataset"
	"github.com/Veraticus/seco/internal/model"
)

type mockObserver struct {
	mock.Mock
}

func (m *mockObserver) ClassStarted(class string, positives float64) {
	m.Called(class, positives)
}

func (m *mockObserver) RuleAccepted(class string, r *model.Rule) {
	m.Called(class, r)
}

func (m *mockObserver) ClassFinished(class string, rules []*model.Rule) {
	m.Called(class, rules)
}

// weather has play = yes exactly when outlook = rain; temp is constant.
func weather(t *testing.T) *dataset.Instances {
	t.Helper()
	outlook := dataset.NewNominalAttribute("outlook", []string{"sunny", "rain"})
	temp := dataset.NewNumericAttribute("temp")
	play := dataset.NewNominalAttribute("play", []string{"no", "yes"})
	data, err := dataset.New("weather", []*dataset.Attribute{outlook, temp, play})
	require.NoError(t, err)
	require.NoError(t, data.SetClassIndex(2))
	for i := 0; i < 10; i++ {
		row := []float64{0, 20, 0}
		if i < 4 {
			row = []float64{1, 20, 1}
		}
		_, err := data.Add(row, 1)
		require.NoError(t, err)
	}
	return data
}

func newTestLearner(t *testing.T, mutate func(*config.Learner), opts ...Option) *Learner {
	t.Helper()
	cfg := config.DefaultLearner()
	if mutate != nil {
		mutate(&cfg)
	}
	l, err := NewLearner(cfg, opts...)
	require.NoError(t, err)
	return l
}

func problem(t *testing.T, data *dataset.Instances, class string) Problem {
	t.Helper()
	attr, err := data.ClassAttribute()
	require.NoError(t, err)
	v, ok := attr.IndexOfValue(class)
	require.True(t, ok)
	return Problem{Data: data, Class: attr, Target: float64(v)}
}

func TestNewLearner_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Learner)
	}{
		{name: "growing fraction above one", mutate: func(c *config.Learner) { c.GrowingFraction = 1.5 }},
		{name: "unknown heuristic", mutate: func(c *config.Learner) { c.Heuristic = "entropy" }},
		{name: "cost outside unit interval", mutate: func(c *config.Learner) {
			c.Heuristic = "linear-cost"
			c.HeuristicParameter = 2
		}},
		{name: "unknown selection heuristic", mutate: func(c *config.Learner) { c.SelectionHeuristic = "nope" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultLearner()
			tt.mutate(&cfg)
			_, err := NewLearner(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestEvaluate_ConservesWeight(t *testing.T) {
	data := weather(t)
	l := newTestLearner(t, nil)
	p := problem(t, data, "yes")

	r := model.NewRuleWithBody(p.Head(), []model.Condition{
		model.NewNumericCondition(data.Attribute(1), 20, true),
	}, nil)
	l.Evaluate(r, p)

	assert.True(t, r.IsEvaluated())
	assert.InDelta(t, data.SumOfWeights(), r.Stats().Total(), 1e-12)
	assert.Equal(t, model.ConfusionMatrix{TP: 4, FP: 6}, r.Stats())
}

func TestFindBestRule_PrefersDiscriminatingCondition(t *testing.T) {
	data := weather(t)
	l := newTestLearner(t, nil)
	p := problem(t, data, "yes")

	empty := model.NewRule(p.Head(), nil)
	l.Evaluate(empty, p)
	assert.InDelta(t, 5.0/12.0, empty.Value(), 1e-12)

	best := l.FindBestRule(p)
	require.NotNil(t, best)
	assert.Equal(t, "play = yes :- outlook = rain.", best.String())
	assert.InDelta(t, 5.0/6.0, best.Value(), 1e-12)
	assert.Greater(t, best.Compare(empty), 0)
}

func TestFindBestRule_LaplaceScenario(t *testing.T) {
	a := dataset.NewNominalAttribute("a", []string{"p", "q"})
	cls := dataset.NewNominalAttribute("class", []string{"0", "1"})
	data, err := dataset.New("scenario", []*dataset.Attribute{a, cls})
	require.NoError(t, err)
	require.NoError(t, data.SetClassIndex(1))
	for i := 0; i < 10; i++ {
		row := []float64{1, 0}
		if i < 6 {
			row = []float64{0, 1}
		}
		_, err := data.Add(row, 1)
		require.NoError(t, err)
	}

	l := newTestLearner(t, nil)
	p := problem(t, data, "1")

	empty := model.NewRule(p.Head(), nil)
	l.Evaluate(empty, p)
	assert.InDelta(t, 7.0/12.0, empty.Value(), 1e-12)

	best := l.FindBestRule(p)
	require.NotNil(t, best)
	assert.InDelta(t, 0.875, best.Value(), 1e-12)
	assert.Equal(t, model.ConfusionMatrix{TP: 6, TN: 4}, best.Stats())
	assert.Equal(t, 1, best.Length())
}

func TestFindBestRule_GainHeuristic(t *testing.T) {
	data := weather(t)
	l := newTestLearner(t, func(c *config.Learner) { c.Heuristic = "foil-gain" })

	best := l.FindBestRule(problem(t, data, "yes"))
	require.NotNil(t, best)
	assert.Equal(t, "play = yes :- outlook = rain.", best.String())
	assert.Greater(t, best.Value(), 0.0)
}

func TestFindBestRule_BottomUp(t *testing.T) {
	data := weather(t)
	l := newTestLearner(t, func(c *config.Learner) {
		c.Initializer = config.InitializerBottom
		c.Refiner = config.RefinerBottomUp
	})

	best := l.FindBestRule(problem(t, data, "yes"))
	require.NotNil(t, best)
	assert.Equal(t, "play = yes :- outlook = rain.", best.String())
	assert.Equal(t, 2, best.Generalizations())
}

func TestFindBestRule_NoPositives(t *testing.T) {
	data := weather(t).Filter(func(inst *dataset.Instance) bool { return inst.Value(0) == 0 })
	l := newTestLearner(t, nil)
	assert.Nil(t, l.FindBestRule(problem(t, data, "yes")))
}

func TestBestPrefix(t *testing.T) {
	tests := []struct {
		name  string
		worth []float64
		floor float64
		want  int
	}{
		{name: "maximum in the middle", worth: []float64{0.6, 0.75, 0.70}, floor: 0.65, want: 2},
		{name: "ties keep the shorter prefix", worth: []float64{0.7, 0.7, 0.7}, floor: 0.5, want: 1},
		{name: "nothing beats the default", worth: []float64{0.4, 0.5}, floor: 0.5, want: 0},
		{name: "longest is best", worth: []float64{0.6, 0.7, 0.8}, floor: 0.5, want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, bestPrefix(tt.worth, tt.floor))
		})
	}
}

func TestPruneRule(t *testing.T) {
	a := dataset.NewNominalAttribute("a", []string{"p", "q"})
	b := dataset.NewNominalAttribute("b", []string{"x", "y"})
	cls := dataset.NewNominalAttribute("class", []string{"neg", "pos"})
	data, err := dataset.New("prune", []*dataset.Attribute{a, b, cls})
	require.NoError(t, err)
	require.NoError(t, data.SetClassIndex(2))
	rows := [][]float64{
		{0, 0, 1}, {0, 0, 1}, {0, 1, 1}, {0, 1, 1}, {0, 0, 0},
		{1, 0, 0}, {1, 1, 0}, {1, 1, 0},
	}
	for _, row := range rows {
		_, err := data.Add(row, 1)
		require.NoError(t, err)
	}
	p := problem(t, data, "pos")

	t.Run("empty body is returned unchanged", func(t *testing.T) {
		r := model.NewRule(p.Head(), nil)
		assert.Same(t, r, PruneRule(r, p, false))
		assert.Same(t, r, PruneRule(r, p, true))
	})

	t.Run("drops a condition that hurts", func(t *testing.T) {
		r := model.NewRuleWithBody(p.Head(), []model.Condition{
			model.NewNominalCondition(a, 0, true),
			model.NewNominalCondition(b, 0, true),
		}, nil)
		pruned := PruneRule(r, p, false)
		assert.Equal(t, "class = pos :- a = p.", pruned.String())
		assert.Same(t, pruned, PruneRule(pruned, p, false))
	})

	t.Run("whole-set accuracy", func(t *testing.T) {
		r := model.NewRuleWithBody(p.Head(), []model.Condition{
			model.NewNominalCondition(a, 0, true),
			model.NewNominalCondition(b, 1, true),
		}, nil)
		// a = p: (4 + 3) / 8; a = p, b = y: (2 + 4) / 8.
		assert.Equal(t, "class = pos :- a = p.", PruneRule(r, p, true).String())
	})
}

func TestErrorRate(t *testing.T) {
	data := weather(t)
	p := problem(t, data, "yes")
	outlook, temp := data.Attribute(0), data.Attribute(1)

	tests := []struct {
		name string
		body []model.Condition
		want float64
	}{
		{name: "empty body", want: 0.6},
		{name: "pure rule", body: []model.Condition{model.NewNominalCondition(outlook, 1, true)}},
		{name: "only negatives", body: []model.Condition{model.NewNominalCondition(outlook, 0, true)}, want: 1},
		{name: "covers nothing", body: []model.Condition{model.NewNumericCondition(temp, 10, true)}, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := model.NewRuleWithBody(p.Head(), tt.body, nil)
			assert.InDelta(t, tt.want, errorRate(r, p), 1e-12)
		})
	}
}

func TestSeparateAndConquer(t *testing.T) {
	data := weather(t)
	obs := &mockObserver{}
	obs.On("ClassStarted", "yes", 4.0).Once()
	obs.On("RuleAccepted", "yes", mock.AnythingOfType("*model.Rule")).Once()
	obs.On("ClassFinished", "yes", mock.Anything).Once()

	l := newTestLearner(t, nil, WithObserver(obs))
	rs, err := l.SeparateAndConquer(context.Background(), data)
	require.NoError(t, err)
	obs.AssertExpectations(t)

	require.Equal(t, 1, rs.Len())
	assert.Equal(t, "play = yes :- outlook = rain.", rs.At(0).String())
	require.NotNil(t, rs.Default())
	assert.Equal(t, "play = no :- true.", rs.Default().String())

	for _, inst := range data.All() {
		got, ok := rs.Classify(inst)
		require.True(t, ok)
		want, _, err := inst.ClassValue()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestSeparateAndConquer_Variants(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Learner)
	}{
		{name: "reweighting covered positives", mutate: func(c *config.Learner) { c.CoveredWeight = 0.5 }},
		{name: "reduced error pruning", mutate: func(c *config.Learner) {
			c.Prune = true
			c.GrowingFraction = 2.0 / 3.0
		}},
		{name: "ripper", mutate: func(c *config.Learner) {
			c.MDL = true
			c.GrowingFraction = 2.0 / 3.0
			c.Optimizations = 2
			c.Abridge = true
		}},
		{name: "ripper with selection heuristic", mutate: func(c *config.Learner) {
			c.MDL = true
			c.GrowingFraction = 2.0 / 3.0
			c.Optimizations = 1
			c.SelectionHeuristic = "accuracy"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := weather(t)
			l := newTestLearner(t, tt.mutate)
			rs, err := l.SeparateAndConquer(context.Background(), data)
			require.NoError(t, err)
			require.Equal(t, 1, rs.Len())
			assert.Equal(t, "play = yes :- outlook = rain.", rs.At(0).String())
		})
	}
}

func TestSeparateAndConquer_Errors(t *testing.T) {
	t.Run("no class attribute", func(t *testing.T) {
		x := dataset.NewNumericAttribute("x")
		data, err := dataset.New("noclass", []*dataset.Attribute{x})
		require.NoError(t, err)
		_, err = newTestLearner(t, nil).SeparateAndConquer(context.Background(), data)
		assert.ErrorIs(t, err, dataset.ErrClassUnassigned)
	})

	t.Run("empty dataset", func(t *testing.T) {
		data := weather(t).EmptyCopy()
		_, err := newTestLearner(t, nil).SeparateAndConquer(context.Background(), data)
		assert.ErrorIs(t, err, common.ErrEmptyDataset)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newTestLearner(t, nil).SeparateAndConquer(ctx, weather(t))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestOrderClasses(t *testing.T) {
	assert.Equal(t, []int{2, 0, 1}, OrderClasses([]float64{5, 9, 1}))
	assert.Equal(t, []int{0, 1, 2}, OrderClasses([]float64{3, 3, 3}))
}
