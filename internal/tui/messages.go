package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/seco/internal/model"
	"github.com/Veraticus/seco/internal/service"
)

// Data loading messages.
type ruleSetsLoadedMsg struct {
	err       error
	summaries []model.RuleSetSummary
}

type ruleSetLoadedMsg struct {
	err     error
	ruleSet *model.StoredRuleSet
}

func loadRuleSets(ctx context.Context, store service.Storage, filter service.RuleSetFilter) tea.Cmd {
	return func() tea.Msg {
		summaries, err := store.ListRuleSets(ctx, filter)
		if err != nil {
			return ruleSetsLoadedMsg{err: fmt.Errorf("failed to list rule sets: %w", err)}
		}
		return ruleSetsLoadedMsg{summaries: summaries}
	}
}

func loadRuleSet(ctx context.Context, store service.Storage, id string) tea.Cmd {
	return func() tea.Msg {
		rs, err := store.GetRuleSet(ctx, id)
		if err != nil {
			return ruleSetLoadedMsg{err: fmt.Errorf("failed to load rule set: %w", err)}
		}
		return ruleSetLoadedMsg{ruleSet: rs}
	}
}
