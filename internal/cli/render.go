package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/seco/internal/evaluation"
	"github.com/Veraticus/seco/internal/model"
	"github.com/Veraticus/seco/internal/sweep"
)

// FormatRule renders one rule with a highlighted head.
func FormatRule(r *model.Rule) string {
	body := "true"
	if !r.IsEmpty() {
		parts := make([]string, 0, r.Length())
		for _, c := range r.Body() {
			parts = append(parts, c.String())
		}
		body = strings.Join(parts, ", ")
	}
	return HeadStyle.Render(r.Head().String()) + " :- " + BodyStyle.Render(body) + "."
}

func formatStats(m model.ConfusionMatrix) string {
	return SubtleStyle.Render(fmt.Sprintf("[tp=%g fp=%g]", m.TP, m.FP))
}

// RenderRuleSet renders a numbered rule list followed by the default rule.
func RenderRuleSet(title string, rs *model.RuleSet) string {
	var b strings.Builder
	for i, r := range rs.Rules() {
		fmt.Fprintf(&b, "%3d. %s", i+1, FormatRule(r))
		if r.IsEvaluated() {
			b.WriteString(" " + formatStats(r.Stats()))
		}
		b.WriteByte('\n')
	}
	if def := rs.Default(); def != nil {
		b.WriteString("  default: " + HeadStyle.Render(def.Head().String()) + "\n")
	}
	if rs.Len() == 0 && rs.Default() == nil {
		b.WriteString(SubtleStyle.Render("no rules") + "\n")
	}
	return RenderBox(title, strings.TrimRight(b.String(), "\n"))
}

func table(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	render := func(cells []string, style lipgloss.Style) string {
		out := make([]string, len(cells))
		for i, cell := range cells {
			out[i] = TableCellStyle.Width(widths[i] + 2).Render(cell)
		}
		return style.Render(lipgloss.JoinHorizontal(lipgloss.Top, out...))
	}

	lines := []string{render(headers, TableHeaderStyle)}
	for _, row := range rows {
		lines = append(lines, render(row, lipgloss.NewStyle()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// RenderReport renders per-rule statistics and the accuracy of a decision list.
func RenderReport(rep *evaluation.Report) string {
	rows := make([][]string, 0, len(rep.Rules)+1)
	for i, rr := range rep.Rules {
		rows = append(rows, []string{
			fmt.Sprint(i + 1),
			rr.Rule.String(),
			fmt.Sprintf("%g", rr.Stats.TP),
			fmt.Sprintf("%g", rr.Stats.FP),
			fmt.Sprintf("%.3f", rr.Stats.Precision()),
		})
	}
	rows = append(rows, []string{"-", "default", fmt.Sprintf("%g", rep.Default.TP), fmt.Sprintf("%g", rep.Default.FP),
		fmt.Sprintf("%.3f", rep.Default.Precision())})

	summary := fmt.Sprintf("%s Accuracy: %.2f%% (%g of %g)", ChartIcon, rep.Accuracy()*100, rep.Correct, rep.Total)
	if rep.Skipped > 0 {
		summary += "\n" + FormatWarning(fmt.Sprintf("Skipped %g instances without a class", rep.Skipped))
	}
	return RenderBox("Evaluation", table([]string{"#", "rule", "tp", "fp", "precision"}, rows)+"\n\n"+summary)
}

// RenderMultiLabelReport renders per-label statistics of a multi-label classifier.
func RenderMultiLabelReport(labels []string, rep *evaluation.MultiLabelReport) string {
	rows := make([][]string, 0, len(rep.PerLabel))
	for j, m := range rep.PerLabel {
		name := fmt.Sprint(j)
		if j < len(labels) {
			name = labels[j]
		}
		rows = append(rows, []string{
			name,
			fmt.Sprintf("%.3f", m.Precision()),
			fmt.Sprintf("%.3f", m.Recall()),
			fmt.Sprintf("%.3f", m.Accuracy()),
		})
	}
	summary := fmt.Sprintf("%s Hamming accuracy: %.2f%%\n%s Subset accuracy: %.2f%%",
		ChartIcon, rep.HammingAccuracy*100, ChartIcon, rep.SubsetAccuracy*100)
	return RenderBox("Evaluation", table([]string{"label", "precision", "recall", "accuracy"}, rows)+"\n\n"+summary)
}

// RenderSweep renders the ranked results of a sweep.
func RenderSweep(rep *sweep.Report) string {
	rows := make([][]string, 0, len(rep.Results))
	for i, res := range rep.Results {
		if res.Err != nil {
			rows = append(rows, []string{fmt.Sprint(i + 1), res.Setting.String(), "-", StyleError(res.Err.Error())})
			continue
		}
		rows = append(rows, []string{
			fmt.Sprint(i + 1),
			res.Setting.String(),
			fmt.Sprint(res.Rules.Len()),
			fmt.Sprintf("%.2f%%", res.Accuracy*100),
		})
	}
	out := table([]string{"rank", "setting", "rules", "accuracy"}, rows)
	out += "\n\n" + SubtleStyle.Render(fmt.Sprintf("trained on %d, evaluated on %d instances", rep.Train, rep.Test))
	if rep.Best != nil {
		out += "\n" + FormatSuccess("Best: "+rep.Best.Setting.String())
	}
	return RenderBox("Sweep", out)
}

// RenderModels renders a listing of stored rule sets.
func RenderModels(list []model.RuleSetSummary) string {
	if len(list) == 0 {
		return FormatInfo("No stored rule sets")
	}
	rows := make([][]string, 0, len(list))
	for _, s := range list {
		rows = append(rows, []string{
			s.ID,
			s.Name,
			string(s.Kind),
			s.Relation,
			s.Heuristic,
			fmt.Sprint(s.Rules),
			s.CreatedAt.Format("2006-01-02 15:04"),
		})
	}
	return RenderBox(FolderIcon+" Rule sets",
		table([]string{"id", "name", "kind", "relation", "heuristic", "rules", "created"}, rows))
}
