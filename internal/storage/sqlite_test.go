package storage

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/seco/internal/common"
	"github.com/Veraticus/seco/internal/dataset"
	"github.com/Veraticus/seco/internal/model"
	"github.com/Veraticus/seco/internal/service"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}
	return store, func() { _ = store.Close() }
}

// weatherRuleSet is a single-label decision list over outlook and temp.
func weatherRuleSet(t *testing.T) *model.StoredRuleSet {
	t.Helper()
	outlook := dataset.NewNominalAttribute("outlook", []string{"sunny", "rain"})
	temp := dataset.NewNumericAttribute("temp")
	play := dataset.NewNominalAttribute("play", []string{"no", "yes"})
	schema, err := dataset.New("weather", []*dataset.Attribute{outlook, temp, play})
	require.NoError(t, err)
	require.NoError(t, schema.SetClassIndex(2))

	rain := model.NewRuleWithBody(model.SingleHead(model.NewNominalCondition(play, 1, true)),
		[]model.Condition{model.NewNominalCondition(outlook, 1, true)}, nil)
	rain.SetEvaluation(model.ConfusionMatrix{TP: 4, FP: 1, TN: 5}, 0.8)
	cold := model.NewRuleWithBody(model.SingleHead(model.NewNominalCondition(play, 1, true)),
		[]model.Condition{
			model.NewNumericCondition(temp, 20.5, true),
			model.NewNominalCondition(outlook, 0, false),
		}, nil)
	def := model.NewRule(model.SingleHead(model.NewNominalCondition(play, 0, true)), nil)
	def.SetEvaluation(model.ConfusionMatrix{TP: 5}, math.NaN())

	rules := model.NewRuleSet()
	rules.AddAll([]*model.Rule{rain, cold})
	rules.SetDefault(def)
	return &model.StoredRuleSet{
		Schema:    schema,
		Rules:     rules,
		Name:      "weather-laplace",
		Kind:      model.RuleSetSingle,
		Heuristic: "laplace",
	}
}

// scenesRuleSet is a multi-label rule set with a skip rule.
func scenesRuleSet(t *testing.T) *model.StoredRuleSet {
	t.Helper()
	color := dataset.NewNominalAttribute("color", []string{"red", "blue"})
	l1 := dataset.NewNominalAttribute("l1", []string{"0", "1"})
	l2 := dataset.NewNominalAttribute("l2", []string{"0", "1"})
	schema, err := dataset.New("scenes", []*dataset.Attribute{color, l1, l2})
	require.NoError(t, err)

	red := model.NewNominalCondition(color, 0, true)
	rules := model.NewRuleSet()
	rules.Add(model.NewRuleWithBody(
		model.MultiHead(model.NewNominalCondition(l1, 1, true), model.NewNominalCondition(l2, 0, true)),
		[]model.Condition{red}, nil))
	rules.Add(model.NewRuleWithBody(model.MultiHead(model.NewNominalCondition(l2, 1, true)),
		[]model.Condition{model.NewNominalCondition(l1, 0, true)}, nil))
	rules.Add(model.NewRuleWithBody(model.SkipHead(), []model.Condition{model.NewNominalCondition(color, 1, true)}, nil))
	rules.SetDefault(model.NewRule(model.MultiHead(
		model.NewNominalCondition(l1, 0, true), model.NewNominalCondition(l2, 0, true)), nil))
	return &model.StoredRuleSet{
		Schema:    schema,
		Rules:     rules,
		Name:      "scenes",
		Kind:      model.RuleSetMultiLabel,
		Heuristic: "precision",
		Labels:    []string{"l1", "l2"},
	}
}

func TestSQLiteStorage_SaveAndGet(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	rs := weatherRuleSet(t)
	require.NoError(t, store.SaveRuleSet(ctx, rs))
	_, err := uuid.Parse(rs.ID)
	require.NoError(t, err)
	assert.False(t, rs.CreatedAt.IsZero())

	got, err := store.GetRuleSet(ctx, rs.ID)
	require.NoError(t, err)
	assert.Equal(t, rs.Name, got.Name)
	assert.Equal(t, model.RuleSetSingle, got.Kind)
	assert.Equal(t, "laplace", got.Heuristic)
	assert.Equal(t, "weather", got.Relation())
	assert.Equal(t, 2, got.Schema.ClassIndex())
	assert.WithinDuration(t, rs.CreatedAt, got.CreatedAt, time.Second)
	assert.Equal(t, rs.Rules.String(), got.Rules.String())

	require.Equal(t, 2, got.Rules.Len())
	first := got.Rules.At(0)
	assert.Equal(t, model.ConfusionMatrix{TP: 4, FP: 1, TN: 5}, first.Stats())
	assert.InDelta(t, 0.8, first.Value(), 1e-12)
	assert.False(t, got.Rules.At(1).IsEvaluated())
	assert.True(t, math.IsNaN(got.Rules.At(1).Value()))
	assert.Equal(t, model.ConfusionMatrix{TP: 5}, got.Rules.Default().Stats())

	byName, err := store.GetRuleSetByName(ctx, "weather-laplace")
	require.NoError(t, err)
	assert.Equal(t, rs.ID, byName.ID)

	// The restored rules classify against the restored schema.
	inst, err := got.Schema.Add([]float64{1, 30, dataset.Missing}, 1)
	require.NoError(t, err)
	cls, ok := got.Rules.Classify(inst)
	require.True(t, ok)
	assert.InDelta(t, 1.0, cls, 1e-12)
}

func TestSQLiteStorage_MultiLabelRoundTrip(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	rs := scenesRuleSet(t)
	require.NoError(t, store.SaveRuleSet(ctx, rs))
	got, err := store.GetRuleSet(ctx, rs.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{"l1", "l2"}, got.Labels)
	assert.Equal(t, -1, got.Schema.ClassIndex())
	assert.Equal(t, rs.Rules.String(), got.Rules.String())
	assert.True(t, got.Rules.At(2).Head().IsSkip())
	assert.Equal(t, 2, got.Rules.At(0).Head().Len())
}

func TestSQLiteStorage_SaveReplaces(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	rs := weatherRuleSet(t)
	require.NoError(t, store.SaveRuleSet(ctx, rs))
	_, err := store.GetRuleSet(ctx, rs.ID)
	require.NoError(t, err)

	require.NoError(t, rs.Rules.Remove(1))
	rs.Heuristic = "precision"
	require.NoError(t, store.SaveRuleSet(ctx, rs))

	got, err := store.GetRuleSet(ctx, rs.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Rules.Len())
	assert.Equal(t, "precision", got.Heuristic)

	other := weatherRuleSet(t)
	err = store.SaveRuleSet(ctx, other)
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)
}

func TestSQLiteStorage_NotFound(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.GetRuleSet(ctx, uuid.NewString())
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = store.GetRuleSetByName(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, store.DeleteRuleSet(ctx, "missing"), common.ErrNotFound)

	_, err = store.GetRuleSet(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyString)
	//nolint:staticcheck // nil context is the case under test
	assert.ErrorIs(t, store.SaveRuleSet(nil, weatherRuleSet(t)), ErrNilContext)
}

func TestSQLiteStorage_ListAndDelete(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	weather := weatherRuleSet(t)
	weather.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	scenes := scenesRuleSet(t)
	scenes.CreatedAt = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveRuleSet(ctx, weather))
	require.NoError(t, store.SaveRuleSet(ctx, scenes))

	tests := []struct {
		name   string
		filter service.RuleSetFilter
		want   []string
	}{
		{name: "all newest first", want: []string{"scenes", "weather-laplace"}},
		{name: "by kind", filter: service.RuleSetFilter{Kind: model.RuleSetSingle}, want: []string{"weather-laplace"}},
		{name: "by relation", filter: service.RuleSetFilter{Relation: "scenes"}, want: []string{"scenes"}},
		{name: "limit", filter: service.RuleSetFilter{Limit: 1}, want: []string{"scenes"}},
		{name: "offset", filter: service.RuleSetFilter{Limit: 1, Offset: 1}, want: []string{"weather-laplace"}},
		{name: "no match", filter: service.RuleSetFilter{Relation: "iris"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := store.ListRuleSets(ctx, tt.filter)
			require.NoError(t, err)
			var names []string
			for _, s := range list {
				names = append(names, s.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}

	list, err := store.ListRuleSets(ctx, service.RuleSetFilter{Kind: model.RuleSetMultiLabel})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 3, list[0].Rules)
	assert.Equal(t, "precision", list[0].Heuristic)

	require.NoError(t, store.DeleteRuleSet(ctx, scenes.ID))
	_, err = store.GetRuleSet(ctx, scenes.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	var conditions int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM conditions WHERE rule_set_id = ?`, scenes.ID).Scan(&conditions))
	assert.Zero(t, conditions)
}

func TestSQLiteStorage_Transaction(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	rs := weatherRuleSet(t)
	require.NoError(t, tx.SaveRuleSet(ctx, rs))
	inside, err := tx.GetRuleSetByName(ctx, rs.Name)
	require.NoError(t, err)
	assert.Equal(t, rs.ID, inside.ID)
	require.NoError(t, tx.Rollback())

	_, err = store.GetRuleSet(ctx, rs.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	tx, err = store.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SaveRuleSet(ctx, rs))
	list, err := tx.ListRuleSets(ctx, service.RuleSetFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Error(t, tx.Migrate(ctx))
	_, err = tx.BeginTx(ctx)
	assert.Error(t, err)
	assert.Error(t, tx.Close())
	require.NoError(t, tx.Commit())

	got, err := store.GetRuleSet(ctx, rs.ID)
	require.NoError(t, err)
	assert.Equal(t, rs.Rules.String(), got.Rules.String())
}

func TestSQLiteStorage_Migrate(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Migrate(ctx))
	var version int
	require.NoError(t, store.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, ExpectedSchemaVersion, version)

	var indexCount int
	require.NoError(t, store.db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='index' AND name='idx_rule_sets_kind'
	`).Scan(&indexCount))
	assert.Equal(t, 1, indexCount)
}

func TestNewSQLiteStorage_File(t *testing.T) {
	path := t.TempDir() + "/nested/seco.db"
	store, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	assert.Equal(t, path, store.Path())
	require.NoError(t, store.Migrate(context.Background()))

	_, err = NewSQLiteStorage("")
	assert.ErrorIs(t, err, ErrEmptyString)
}
