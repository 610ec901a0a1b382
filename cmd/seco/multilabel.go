package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/seco/internal/cli"
	"github.com/Veraticus/seco/internal/config"
	"github.com/Veraticus/seco/internal/dataset"
	"github.com/Veraticus/seco/internal/evaluation"
	"github.com/Veraticus/seco/internal/model"
	"github.com/Veraticus/seco/internal/multilabel"
)

var multiLabelFlags = map[string]string{
	"heuristic":        "multilabel.heuristic",
	"param":            "multilabel.heuristic_parameter",
	"evaluation":       "multilabel.evaluation",
	"beam-width":       "multilabel.beam_width",
	"min-coverage":     "multilabel.min_coverage",
	"skip-threshold":   "multilabel.skip_threshold",
	"max-rules":        "multilabel.max_rules",
	"bottom-up":        "multilabel.bottom_up",
	"randomize":        "multilabel.randomize",
	"decision-list":    "multilabel.decision_list",
	"predict-zero":     "multilabel.predict_zero",
	"label-conditions": "multilabel.label_conditions",
	"seed":             "multilabel.seed",
}

func (a *app) multiLabelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "multilabel <data.csv>",
		Short: "Learn multi-label rules from a CSV dataset",
		Long: `Learn rules whose heads predict several labels at once.

Label columns are given with --labels and must hold two values each. Rules are found
with a beam search over bodies, top-down or bottom-up, and each head is chosen to
maximize the heuristic over the labels its body covers.`,
		Args: cobra.ExactArgs(1),
		RunE: a.runMultiLabel,
	}

	d := config.DefaultMultiLabel()
	cmd.Flags().StringSlice("labels", nil, "label columns")
	cmd.Flags().String("heuristic", d.Heuristic, "rule evaluation heuristic")
	cmd.Flags().Float64("param", d.HeuristicParameter, "heuristic parameter (NaN: heuristic default)")
	cmd.Flags().String("evaluation", string(d.Evaluation), "head evaluation (decomposable, anti-monotonic)")
	cmd.Flags().Int("beam-width", d.BeamWidth, "rules kept per refinement round")
	cmd.Flags().Float64("min-coverage", d.MinCoverage, "minimum unpredicted label weight a rule must cover")
	cmd.Flags().Float64("skip-threshold", d.SkipThreshold, "share of fully predicted covered instances that adds a skip rule")
	cmd.Flags().Int("max-rules", d.MaxRules, "maximum number of rules (0: unlimited)")
	cmd.Flags().Bool("bottom-up", d.BottomUp, "generalize instance bodies instead of specializing the empty rule")
	cmd.Flags().Bool("randomize", d.Randomize, "shuffle bottom-up seed instances")
	cmd.Flags().Bool("decision-list", d.DecisionList, "learn an ordered decision list")
	cmd.Flags().Bool("predict-zero", d.PredictZero, "allow heads predicting absent labels")
	cmd.Flags().Bool("label-conditions", d.LabelConditions, "allow label tests in rule bodies")
	cmd.Flags().Int64("seed", d.Seed, "random seed")
	cmd.Flags().String("test", "", "CSV file to evaluate on (default: the training data)")
	cmd.Flags().Bool("save", false, "store the learned rule set")
	cmd.Flags().String("name", "", "name of the stored rule set (default: <relation>-<heuristic>)")

	return cmd
}

func (a *app) runMultiLabel(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := a.load(cmd, multiLabelFlags)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("labels") {
		cfg.MultiLabel.Labels, _ = cmd.Flags().GetStringSlice("labels")
	}
	testPath, _ := cmd.Flags().GetString("test")
	save, _ := cmd.Flags().GetBool("save")
	name, _ := cmd.Flags().GetString("name")

	learner, err := multilabel.NewLearner(cfg.MultiLabel, multilabel.WithLogger(a.logger))
	if err != nil {
		return err
	}
	data, err := loadDataset(args[0], dataset.CSVOptions{Class: "-", Nominal: cfg.MultiLabel.Labels}, a.logger)
	if err != nil {
		return err
	}

	clf, err := learner.Learn(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to learn rules: %w", err)
	}
	out := cmd.OutOrStdout()
	title := cli.RuleIcon + " Multi-label rules for " + data.Relation()
	if clf.DecisionList() {
		title += " (decision list)"
	}
	fmt.Fprintln(out, cli.RenderRuleSet(title, clf.Rules()))

	eval, err := loadEvaluationSet(testPath, data, a.logger)
	if err != nil {
		return err
	}
	rep, err := evaluation.EvaluateMultiLabel(clf, eval)
	if err != nil {
		return fmt.Errorf("failed to evaluate rules: %w", err)
	}
	fmt.Fprintln(out, cli.RenderMultiLabelReport(cfg.MultiLabel.Labels, rep))

	if !save {
		return nil
	}
	stored := &model.StoredRuleSet{
		Schema:       data.EmptyCopy(),
		Rules:        clf.Rules(),
		Name:         defaultName(name, data.Relation(), cfg.MultiLabel.Heuristic),
		Kind:         model.RuleSetMultiLabel,
		Heuristic:    cfg.MultiLabel.Heuristic,
		Labels:       cfg.MultiLabel.Labels,
		DecisionList: clf.DecisionList(),
	}
	if err := saveRuleSet(ctx, cfg.Storage.Path, stored); err != nil {
		return err
	}
	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Saved rule set %s (%s)", stored.Name, stored.ID)))
	return nil
}
