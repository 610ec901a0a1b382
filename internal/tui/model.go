// Package tui provides an interactive terminal browser for stored rule sets.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/seco/internal/cli"
	"github.com/Veraticus/seco/internal/model"
	"github.com/Veraticus/seco/internal/service"
)

// State represents the current state of the browser.
type State int

// Browser states.
const (
	StateList State = iota
	StateDetail
)

// Config holds the browser configuration.
type Config struct {
	Storage service.Storage
	Filter  service.RuleSetFilter
	Theme   *Theme
	Width   int
	Height  int
}

// Model holds the browser state.
type Model struct {
	ctx       context.Context
	storage   service.Storage
	lastError error
	selected  *model.StoredRuleSet
	theme     Theme
	help      help.Model
	summaries []model.RuleSetSummary
	config    Config
	keymap    KeyMap
	table     table.Model
	viewport  viewport.Model
	height    int
	width     int
	state     State
	quitting  bool
	ready     bool
}

var columns = []table.Column{
	{Title: "Name", Width: 24},
	{Title: "Kind", Width: 10},
	{Title: "Relation", Width: 16},
	{Title: "Heuristic", Width: 16},
	{Title: "Rules", Width: 6},
	{Title: "Created", Width: 16},
}

// New creates a browser over the rule sets in cfg.Storage.
func New(ctx context.Context, cfg Config) Model {
	if cfg.Width == 0 {
		cfg.Width = 100
	}
	if cfg.Height == 0 {
		cfg.Height = 24
	}
	theme := DefaultTheme
	if cfg.Theme != nil {
		theme = *cfg.Theme
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(cfg.Height-6),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(theme.Border).
		BorderBottom(true).
		Bold(false)
	s.Selected = theme.Selected
	t.SetStyles(s)

	return Model{
		ctx:      ctx,
		storage:  cfg.Storage,
		config:   cfg,
		theme:    theme,
		keymap:   DefaultKeyMap(),
		help:     help.New(),
		table:    t,
		viewport: viewport.New(cfg.Width, cfg.Height-4),
		width:    cfg.Width,
		height:   cfg.Height,
		state:    StateList,
	}
}

// Init loads the rule-set listing.
func (m Model) Init() tea.Cmd {
	return loadRuleSets(m.ctx, m.storage, m.config.Filter)
}

// State returns the current state.
func (m Model) State() State { return m.state }

// Selected returns the rule set shown in the detail view.
func (m Model) Selected() *model.StoredRuleSet { return m.selected }

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(max(m.height-6, 3))
		m.viewport.Width = m.width
		m.viewport.Height = max(m.height-4, 3)
		m.help.Width = m.width

	case ruleSetsLoadedMsg:
		m.ready = true
		m.lastError = msg.err
		if msg.err == nil {
			m.summaries = msg.summaries
			m.table.SetRows(rows(msg.summaries))
		}
		return m, nil

	case ruleSetLoadedMsg:
		m.lastError = msg.err
		if msg.err == nil {
			m.selected = msg.ruleSet
			m.viewport.SetContent(renderDetail(msg.ruleSet))
			m.viewport.GotoTop()
			m.state = StateDetail
		}
		return m, nil
	}

	var cmd tea.Cmd
	switch m.state {
	case StateList:
		m.table, cmd = m.table.Update(msg)
	case StateDetail:
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

// handleKey handles the keys of the browser itself. Other keys are passed to the
// active component.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return tea.Quit, true
	case key.Matches(msg, m.keymap.Help):
		m.help.ShowAll = !m.help.ShowAll
		return nil, true
	case key.Matches(msg, m.keymap.Refresh):
		return loadRuleSets(m.ctx, m.storage, m.config.Filter), true
	}

	switch m.state {
	case StateList:
		if key.Matches(msg, m.keymap.Select) && len(m.summaries) > 0 {
			return loadRuleSet(m.ctx, m.storage, m.summaries[m.table.Cursor()].ID), true
		}
	case StateDetail:
		if key.Matches(msg, m.keymap.Back) {
			m.state = StateList
			m.selected = nil
			return nil, true
		}
	}
	return nil, false
}

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return m.theme.Subtitle.Render("Loading rule sets...")
	}

	var b strings.Builder
	switch m.state {
	case StateList:
		b.WriteString(m.theme.Title.Render(fmt.Sprintf("%s Rule sets (%d)", cli.FolderIcon, len(m.summaries))))
		b.WriteByte('\n')
		if len(m.summaries) == 0 {
			b.WriteString(m.theme.Subtitle.Render("No stored rule sets"))
		} else {
			b.WriteString(m.table.View())
		}
	case StateDetail:
		b.WriteString(m.viewport.View())
	}
	if m.lastError != nil {
		b.WriteString("\n" + m.theme.StatusError.Render(m.lastError.Error()))
	}
	b.WriteString("\n" + m.help.View(m.keymap))
	return b.String()
}

func rows(summaries []model.RuleSetSummary) []table.Row {
	out := make([]table.Row, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, table.Row{
			s.Name,
			string(s.Kind),
			s.Relation,
			s.Heuristic,
			fmt.Sprint(s.Rules),
			s.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	return out
}

func renderDetail(rs *model.StoredRuleSet) string {
	details := []string{
		"ID:        " + rs.ID,
		"Kind:      " + string(rs.Kind),
		"Relation:  " + rs.Relation(),
		"Heuristic: " + rs.Heuristic,
	}
	if len(rs.Labels) > 0 {
		details = append(details, "Labels:    "+strings.Join(rs.Labels, ", "))
	}
	return strings.Join(details, "\n") + "\n\n" + cli.RenderRuleSet(cli.RuleIcon+" "+rs.Name, rs.Rules)
}
