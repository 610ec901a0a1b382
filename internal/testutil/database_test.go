package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/seco/internal/service"
)

func TestSetupTestDB(t *testing.T) {
	db := SetupTestDB(t, WeatherRuleSet(t, "a"), WeatherRuleSet(t, "b"))

	list, err := db.Storage.ListRuleSets(context.Background(), service.RuleSetFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, 1, list[0].Rules)
}

func TestTestDB_WithTransaction(t *testing.T) {
	db := SetupTestDB(t)
	ctx := context.Background()

	err := db.WithTransaction(func(tx service.Transaction) error {
		return tx.SaveRuleSet(ctx, WeatherRuleSet(t, "committed"))
	})
	require.NoError(t, err)

	errBoom := errors.New("boom")
	err = db.WithTransaction(func(tx service.Transaction) error {
		if err := tx.SaveRuleSet(ctx, WeatherRuleSet(t, "rolled-back")); err != nil {
			return err
		}
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)

	list, err := db.Storage.ListRuleSets(ctx, service.RuleSetFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "committed", list[0].Name)
}

func TestWeather(t *testing.T) {
	data := Weather(t)
	assert.Equal(t, 10, data.Len())
	counts, err := data.ClassCounts()
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 4}, counts)

	rs := WeatherRuleSet(t, "w")
	v, ok := rs.Rules.Classify(data.At(0))
	require.True(t, ok)
	assert.InDelta(t, 1.0, v, 1e-12)
}
