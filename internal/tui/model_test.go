package tui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/seco/internal/model"
	"github.com/Veraticus/seco/internal/service"
	"github.com/Veraticus/seco/internal/testutil"
)

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// step applies msg and runs the returned command once, feeding its message back.
func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd != nil {
		next, _ = m.Update(cmd())
		m = next.(Model)
	}
	return m
}

func TestModel_Browse(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	store := db.Storage
	saved := db.MustSave(testutil.WeatherRuleSet(t, "weather-laplace"))

	m := New(ctx, Config{Storage: store})
	assert.Equal(t, StateList, m.State())
	assert.Contains(t, m.View(), "Loading rule sets")

	next, _ := m.Update(m.Init()())
	m = next.(Model)
	view := m.View()
	assert.Contains(t, view, "Rule sets (1)")
	assert.Contains(t, view, "weather-laplace")

	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, StateDetail, m.State())
	require.NotNil(t, m.Selected())
	assert.Equal(t, saved.ID, m.Selected().ID)
	assert.Contains(t, m.View(), "outlook = rain")

	m = step(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, StateList, m.State())
	assert.Nil(t, m.Selected())

	next, cmd := m.Update(keyRunes("q"))
	m = next.(Model)
	require.NotNil(t, cmd)
	_, quit := cmd().(tea.QuitMsg)
	assert.True(t, quit)
	assert.Empty(t, m.View())
}

func TestModel_Empty(t *testing.T) {
	store := testutil.SetupTestDB(t, testutil.WeatherRuleSet(t, "weather-laplace")).Storage
	m := New(context.Background(), Config{Storage: store, Filter: service.RuleSetFilter{Kind: model.RuleSetMultiLabel}})
	next, _ := m.Update(m.Init()())
	m = next.(Model)
	assert.Contains(t, m.View(), "No stored rule sets")

	// Selecting without rows does nothing.
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	assert.Equal(t, StateList, m.State())
	if cmd != nil {
		_, isLoad := cmd().(ruleSetLoadedMsg)
		assert.False(t, isLoad)
	}
}

func TestModel_Refresh(t *testing.T) {
	db := testutil.SetupTestDB(t)
	m := New(context.Background(), Config{Storage: db.Storage})
	next, _ := m.Update(m.Init()())
	m = next.(Model)
	assert.Contains(t, m.View(), "Rule sets (0)")

	db.MustSave(testutil.WeatherRuleSet(t, "later"))
	m = step(t, m, keyRunes("r"))
	assert.Contains(t, m.View(), "Rule sets (1)")
	assert.Contains(t, m.View(), "later")
}

func TestModel_LoadError(t *testing.T) {
	store := testutil.SetupTestDB(t).Storage
	m := New(context.Background(), Config{Storage: store})
	next, _ := m.Update(m.Init()())
	m = next.(Model)

	next, _ = m.Update(loadRuleSet(context.Background(), store, "missing")())
	m = next.(Model)
	assert.Equal(t, StateList, m.State())
	assert.Contains(t, m.View(), "failed to load rule set")
}

func TestModel_WindowSize(t *testing.T) {
	m := New(context.Background(), Config{Storage: testutil.SetupTestDB(t).Storage})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 140, Height: 40})
	m = next.(Model)
	assert.Equal(t, 140, m.width)
	assert.Equal(t, 40, m.height)
	assert.Equal(t, 140, m.viewport.Width)
}

func TestKeyMap_Help(t *testing.T) {
	k := DefaultKeyMap()
	assert.Len(t, k.ShortHelp(), 4)
	assert.Len(t, k.FullHelp(), 3)
}

func TestRun_RequiresStorage(t *testing.T) {
	err := Run(context.Background(), Config{}, RunOptions{})
	assert.Error(t, err)
}
